//go:build linux

package mux

import (
	"io"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"

	"github.com/mkoncek/daiyousei/wire"
)

const (
	readChunkSize = 32 * 1024
	highWaterMark = 1 << 20
)

// Loop is the single-threaded, readiness-driven multiplexer over the
// socket, local stdin, stdout and stderr descriptors. One epoll set
// backs all four; Run blocks until the run is decided one way or another
// and returns the process exit code.
//
// Loop owns exactly one decode pass (one Parser, one Controller) and is
// not reusable across runs.
type Loop struct {
	pl *poller

	sockFd, stdinFd, stdoutFd, stderrFd int

	sockEvents, stdinEvents, stdoutEvents, stderrEvents uint32

	socketOut *ringBuffer
	stdoutBuf *ringBuffer
	stderrBuf *ringBuffer

	parser wire.Parser
	ctrl   Controller
	enc    *wire.Encoder
	stdin  LocalStdinState

	readBuf      [readChunkSize]byte
	frameScratch []byte

	sockReadClosed    bool
	sockWriteShutdown bool
	terminating       bool
	exitCode          int
}

// NewLoop builds a Loop around four already-open descriptors. Run puts all
// four into non-blocking mode; callers should not use them directly once
// Run has started.
func NewLoop(sockFd, stdinFd, stdoutFd, stderrFd int) (*Loop, error) {
	pl, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &Loop{
		pl:       pl,
		sockFd:   sockFd,
		stdinFd:  stdinFd,
		stdoutFd: stdoutFd,
		stderrFd: stderrFd,

		socketOut: newRingBuffer(highWaterMark),
		stdoutBuf: newRingBuffer(highWaterMark),
		stderrBuf: newRingBuffer(highWaterMark),

		enc: wire.NewEncoder(),
	}, nil
}

// Run drives the event loop to completion and returns the process exit
// code: the server-reported code on a clean finish, or 255 with a
// diagnostic line already queued to stderr on any protocol or I/O
// failure.
func (l *Loop) Run() int {
	defer l.pl.Close()

	l.socketOut.Write(wire.Open(nil))

	if err := l.register(); err != nil {
		// epoll is unusable if registration itself failed; fall back to a
		// bounded best-effort write instead of looping on a poller that
		// would never report any descriptor ready.
		l.terminateFromOutcome(err)
		l.bestEffortFlushStderr()
		return l.exitCode
	}

	events := make([]unix.EpollEvent, 8)
	for !l.readyToExit() {
		l.syncInterests()
		n, err := l.pl.wait(events)
		if err != nil {
			l.terminateFromOutcome(err)
			break
		}
		for i := 0; i < n; i++ {
			l.dispatch(events[i])
		}
	}
	return l.drainRemainderAndFinish()
}

// drainRemainderAndFinish keeps servicing stdout/stderr writability after
// the outcome is decided, since a diagnostic line or trailing server
// output may still be sitting in those ring buffers.
func (l *Loop) drainRemainderAndFinish() int {
	events := make([]unix.EpollEvent, 4)
	for l.stdoutBuf.Len() > 0 || l.stderrBuf.Len() > 0 {
		l.syncInterests()
		n, err := l.pl.wait(events)
		if err != nil {
			break
		}
		for i := 0; i < n; i++ {
			l.dispatch(events[i])
		}
	}
	return l.exitCode
}

func (l *Loop) dispatch(ev unix.EpollEvent) {
	fd := int(ev.Fd)
	switch fd {
	case l.sockFd:
		if ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			l.handleSocketReadable()
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			l.handleSocketWritable()
		}
	case l.stdinFd:
		if ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			l.handleStdinReadable()
		}
	case l.stdoutFd:
		if ev.Events&unix.EPOLLOUT != 0 {
			l.drainTo(l.stdoutFd, l.stdoutBuf)
		}
	case l.stderrFd:
		if ev.Events&unix.EPOLLOUT != 0 {
			l.drainTo(l.stderrFd, l.stderrBuf)
		}
	}
}

func (l *Loop) register() error {
	for _, fd := range [...]int{l.sockFd, l.stdinFd, l.stdoutFd, l.stderrFd} {
		if err := setNonblock(fd); err != nil {
			return err
		}
		if err := l.pl.add(fd, 0); err != nil {
			return err
		}
	}
	return nil
}

// syncInterests recomputes the epoll interest mask for each descriptor
// from current buffer state and issues epoll_ctl only where it changed.
func (l *Loop) syncInterests() {
	sockWant := uint32(0)
	if !l.sockReadClosed && !l.stdoutBuf.AboveHighWater() && !l.stderrBuf.AboveHighWater() {
		sockWant |= unix.EPOLLIN
	}
	if l.socketOut.Len() > 0 {
		sockWant |= unix.EPOLLOUT
	}
	l.setInterest(l.sockFd, &l.sockEvents, sockWant)

	stdinWant := uint32(0)
	if !l.enc.Closed() && !l.socketOut.AboveHighWater() && !l.terminating {
		stdinWant = unix.EPOLLIN
	}
	l.setInterest(l.stdinFd, &l.stdinEvents, stdinWant)

	stdoutWant := uint32(0)
	if l.stdoutBuf.Len() > 0 {
		stdoutWant = unix.EPOLLOUT
	}
	l.setInterest(l.stdoutFd, &l.stdoutEvents, stdoutWant)

	stderrWant := uint32(0)
	if l.stderrBuf.Len() > 0 {
		stderrWant = unix.EPOLLOUT
	}
	l.setInterest(l.stderrFd, &l.stderrEvents, stderrWant)
}

func (l *Loop) setInterest(fd int, cur *uint32, want uint32) {
	if *cur == want {
		return
	}
	_ = l.pl.modify(fd, want)
	*cur = want
}

// bestEffortFlushStderr writes the queued diagnostic directly, without
// epoll, for the rare case registration failed before the event loop
// could even start. Bounded so a truly stuck descriptor cannot hang the
// process forever.
func (l *Loop) bestEffortFlushStderr() {
	for attempts := 0; l.stderrBuf.Len() > 0 && attempts < 1000; attempts++ {
		n, err := rawWrite(l.stderrFd, l.stderrBuf.Pending())
		if n > 0 {
			l.stderrBuf.Advance(n)
		}
		if err != nil && err != iox.ErrWouldBlock {
			return
		}
	}
}

func (l *Loop) readyToExit() bool {
	return l.terminating && l.stdoutBuf.Len() == 0 && l.stderrBuf.Len() == 0
}

func (l *Loop) handleSocketReadable() {
	if l.sockReadClosed {
		return
	}
	for {
		n, err := rawRead(l.sockFd, l.readBuf[:])
		if err != nil {
			if err == iox.ErrWouldBlock {
				return
			}
			l.sockReadClosed = true
			if err == io.EOF {
				l.terminateFromOutcome(nil)
			} else {
				l.terminateFromOutcome(err)
			}
			return
		}
		if ferr := l.parser.Feed(l.readBuf[:n], l); ferr != nil {
			l.sockReadClosed = true
			l.terminateFromOutcome(ferr)
			return
		}
		if l.parser.Done() || l.ctrl.Err() != nil {
			l.sockReadClosed = true
			l.terminateFromOutcome(nil)
			return
		}
		if n < len(l.readBuf) {
			return
		}
	}
}

func (l *Loop) handleSocketWritable() {
	l.drainTo(l.sockFd, l.socketOut)
	if l.socketOut.Len() == 0 && l.enc.Closed() {
		l.stdin.MarkSentinelFlushed()
		if !l.sockWriteShutdown {
			l.sockWriteShutdown = true
			_ = unix.Shutdown(l.sockFd, unix.SHUT_WR)
		}
	}
}

func (l *Loop) handleStdinReadable() {
	if l.enc.Closed() {
		return
	}
	for {
		n, err := rawRead(l.stdinFd, l.readBuf[:])
		if n > 0 {
			l.frameScratch = l.enc.Frame(l.frameScratch[:0], l.readBuf[:n])
			l.socketOut.Write(l.frameScratch)
		}
		if err != nil {
			if err == iox.ErrWouldBlock {
				return
			}
			// EOF or any other local read failure closes out the frame the
			// same way: there is nothing more useful to do with stdin.
			l.stdin.MarkEOF()
			l.frameScratch = l.enc.Close(l.frameScratch[:0])
			l.socketOut.Write(l.frameScratch)
			return
		}
		if n < len(l.readBuf) {
			return
		}
	}
}

// drainTo writes as much of rb's pending bytes to fd as a non-blocking
// write allows.
func (l *Loop) drainTo(fd int, rb *ringBuffer) {
	for rb.Len() > 0 {
		n, err := rawWrite(fd, rb.Pending())
		if n > 0 {
			rb.Advance(n)
		}
		if err != nil {
			if err == iox.ErrWouldBlock {
				return
			}
			// A local write failure past the point the outcome is already
			// decided changes nothing further; only record it if this is
			// the first failure observed.
			if !l.terminating {
				l.terminateFromOutcome(err)
			}
			return
		}
	}
}

// terminateFromOutcome resolves the controller's outcome (decodeErr takes
// priority when non-nil) and latches it as the loop's final exit code,
// queuing a diagnostic line to stderr the same way any other stderr
// content is delivered.
func (l *Loop) terminateFromOutcome(decodeErr error) {
	if l.terminating {
		return
	}
	l.terminating = true
	l.sockReadClosed = true
	code, diag := l.ctrl.Outcome(decodeErr)
	l.exitCode = code
	if diag != nil {
		l.stderrBuf.Write([]byte(diag.Error() + "\n"))
	}
}

// Chunk, ExitCode and EndOfMessage implement wire.Sink.

func (l *Loop) Chunk(s wire.Stream, p []byte) {
	if s == wire.Stdout {
		l.stdoutBuf.Write(p)
	} else {
		l.stderrBuf.Write(p)
	}
}

func (l *Loop) ExitCode(n int64) { l.ctrl.ExitCode(n) }

func (l *Loop) EndOfMessage() { l.ctrl.EndOfMessage() }
