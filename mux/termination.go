package mux

import "errors"

// ErrMultipleExitCodes is the protocol violation raised when the server
// sends a second `exitcode` entry in the same message. The substring
// "multiple exit codes set" is part of the diagnostic contract.
var ErrMultipleExitCodes = errors.New("protocol violation: multiple exit codes set")

// ErrCommunicationTerminated covers every way the server can stop talking
// to us before a well-formed, exit-code-bearing message has been fully
// received: a closed socket, or a top-level list that closes without ever
// reporting an exitcode. The substring "communication terminated" is part
// of the diagnostic contract.
var ErrCommunicationTerminated = errors.New("communication terminated")

// internalFailureExitCode is returned when the client itself cannot
// complete the protocol (malformed wire data, a protocol violation, a
// local I/O failure, a disconnect before an exit code arrives).
const internalFailureExitCode = 255

// ExitCodeCell holds the server-reported exit code. It starts Unset and
// may move to Set exactly once; a second report is a protocol violation
// the caller surfaces as ErrMultipleExitCodes.
type ExitCodeCell struct {
	set   bool
	value int32
}

// Record transitions Unset to Set with n folded into POSIX's 8-bit exit
// status range. Calling Record again after the cell is already Set is a
// protocol violation.
func (c *ExitCodeCell) Record(n int64) error {
	if c.set {
		return ErrMultipleExitCodes
	}
	c.set = true
	c.value = foldExitCode(n)
	return nil
}

// Set reports whether an exit code has been recorded.
func (c *ExitCodeCell) Set() bool { return c.set }

// Value returns the recorded exit code, or 0 if none was ever recorded.
func (c *ExitCodeCell) Value() int32 { return c.value }

func foldExitCode(n int64) int32 {
	m := n % 256
	if m < 0 {
		m += 256
	}
	return int32(m)
}

// stdinPhase tracks the lifecycle of the local stdin side of the
// connection, independent of anything the server has said.
type stdinPhase uint8

const (
	stdinOpen stdinPhase = iota
	stdinEOFSeen
	stdinSentinelFlushed
)

// LocalStdinState is the small state machine the loop advances as local
// stdin is read and its framed sentinel is handed off to the socket-write
// buffer: Open -> EOFSeen (local read returned EOF) -> SentinelFlushed
// (the closing 'e' byte has left the ring buffer onto the socket).
type LocalStdinState struct {
	phase stdinPhase
}

func (s *LocalStdinState) MarkEOF() {
	if s.phase == stdinOpen {
		s.phase = stdinEOFSeen
	}
}

func (s *LocalStdinState) MarkSentinelFlushed() {
	s.phase = stdinSentinelFlushed
}

func (s *LocalStdinState) EOFSeen() bool { return s.phase != stdinOpen }

func (s *LocalStdinState) SentinelFlushed() bool { return s.phase == stdinSentinelFlushed }

// Controller owns the ExitCodeCell and decides, from parser events, when
// the run is Finished: the top-level message closed AND an exit code was
// recorded. Anything else — EndOfMessage with no exit code, or the socket
// closing first — is ErrCommunicationTerminated.
type Controller struct {
	cell      ExitCodeCell
	eom       bool
	violation error
}

// ExitCode is called by the loop's Sink adapter for every exitcode event
// the decoder reports. A second call records the violation instead of
// returning it immediately, matching the decoder's own stance that a
// repeated exitcode is not itself a framing error.
func (c *Controller) ExitCode(n int64) {
	if err := c.cell.Record(n); err != nil && c.violation == nil {
		c.violation = err
	}
}

// EndOfMessage is called once the decoder reports the top-level list has
// closed.
func (c *Controller) EndOfMessage() {
	c.eom = true
}

// Err returns the first protocol violation observed (currently only
// ErrMultipleExitCodes), or nil.
func (c *Controller) Err() error { return c.violation }

// Finished reports whether the message closed with a recorded exit code.
func (c *Controller) Finished() bool { return c.eom && c.cell.Set() }

// Outcome resolves the controller's state once the loop has no more bytes
// to feed it (whether because the parser finished or because the socket
// went away): it returns the process exit code to use, and a diagnostic
// error when the run did not complete the protocol.
func (c *Controller) Outcome(decodeErr error) (code int, diagnostic error) {
	if decodeErr != nil {
		return internalFailureExitCode, decodeErr
	}
	if c.violation != nil {
		return internalFailureExitCode, c.violation
	}
	if !c.Finished() {
		return internalFailureExitCode, ErrCommunicationTerminated
	}
	return int(c.cell.Value()), nil
}
