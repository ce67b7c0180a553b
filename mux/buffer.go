// Package mux implements the single-threaded, readiness-driven event loop
// that multiplexes the socket, local stdin, stdout and stderr descriptors
// over one epoll set, and the termination controller that decides the
// process's final exit code.
package mux

// ringBuffer is a bounded-growth byte FIFO used as the pending-write sink
// for each descriptor the loop owns (socket-out, stdout, stderr). highWater
// is a soft mark: AboveHighWater turns true once Len exceeds it, which the
// loop reads as a signal to stop polling the buffer's producer for
// readability (stdin for socket-out, the socket for stdout and stderr) —
// it is backpressure, not a hard cap, and Write never fails or drops bytes.
type ringBuffer struct {
	buf       []byte
	off       int
	highWater int
}

func newRingBuffer(highWater int) *ringBuffer {
	return &ringBuffer{highWater: highWater}
}

// Write appends p to the buffer.
func (b *ringBuffer) Write(p []byte) {
	if len(p) == 0 {
		return
	}
	b.buf = append(b.buf, p...)
}

// Len reports the number of unread bytes.
func (b *ringBuffer) Len() int { return len(b.buf) - b.off }

// AboveHighWater reports whether the buffer has grown past its soft limit.
func (b *ringBuffer) AboveHighWater() bool {
	return b.highWater > 0 && b.Len() > b.highWater
}

// Pending returns the unread bytes. The caller may write a prefix of them
// to a descriptor and report progress back through Advance.
func (b *ringBuffer) Pending() []byte { return b.buf[b.off:] }

// Advance records that n bytes at the front of Pending have been written
// out successfully. It reclaims the backing array once fully drained, or
// periodically, so an idle buffer does not hold onto an ever-growing slice.
func (b *ringBuffer) Advance(n int) {
	b.off += n
	switch {
	case b.off == len(b.buf):
		b.buf = b.buf[:0]
		b.off = 0
	case b.off > 64*1024:
		copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:len(b.buf)-b.off]
		b.off = 0
	}
}
