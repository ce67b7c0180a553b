package wire

import "strconv"

// stdinKey is the literal key byte string the server recognizes for a
// stdin frame: the 7 bytes "5:stdin" (a length-5 ByteString whose payload
// happens to spell the key name).
const stdinKey = "5:stdin"

// Open appends the outbound top-level list opener to dst. The reference
// server implementation waits for at least one byte on the socket before
// doing anything else, even on a run that never touches local stdin, so
// the caller should append this immediately after connecting rather than
// deferring it to the first stdin frame (see SPEC_FULL.md).
func Open(dst []byte) []byte { return append(dst, 'l') }

// Encoder frames local stdin reads into the form the server expects: one
// "5:stdin<N>:<bytes>" frame per non-empty read, and a single closing 'e'
// sentinel once local stdin reaches EOF.
type Encoder struct {
	closed bool
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Frame appends one frame carrying chunk verbatim to dst and returns the
// extended slice. A zero-length chunk produces no frame, matching the
// contract that the encoder never emits an empty stdin value.
func (e *Encoder) Frame(dst []byte, chunk []byte) []byte {
	if len(chunk) == 0 {
		return dst
	}
	dst = append(dst, stdinKey...)
	dst = strconv.AppendInt(dst, int64(len(chunk)), 10)
	dst = append(dst, ':')
	dst = append(dst, chunk...)
	return dst
}

// Close appends the closing sentinel byte exactly once; subsequent calls
// are a no-op. Callers invoke this when local stdin reaches EOF.
func (e *Encoder) Close(dst []byte) []byte {
	if e.closed {
		return dst
	}
	e.closed = true
	return append(dst, 'e')
}

// Closed reports whether the sentinel has already been appended.
func (e *Encoder) Closed() bool { return e.closed }
