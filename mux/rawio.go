//go:build linux

package mux

import (
	"io"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"
)

// setNonblock puts fd into O_NONBLOCK mode so every syscall against it
// either makes progress or fails with EAGAIN instead of parking the whole
// process, matching the framer package's non-blocking-first stance.
func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// rawRead performs one non-blocking read, translating the descriptor's
// EAGAIN into iox.ErrWouldBlock and a zero-byte result into io.EOF so
// callers can treat every fd uniformly regardless of its kind (socket,
// pipe, tty, regular file).
func rawRead(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, iox.ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// rawWrite performs one non-blocking write, translating EAGAIN the same
// way rawRead does.
func rawWrite(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, iox.ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}
