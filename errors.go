package pconn

import "fmt"

// IOError wraps a read, write, connect, accept, shutdown, or close
// failure coming from the underlying net.Conn or net.Listener.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("pconn: %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

func newIOError(op string, err error) *IOError {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}

// FramingError reports a malformed frame: a declared body size above
// MaxFrameSize. A short read of the size header is reported as an IOError.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string { return "pconn: framing: " + e.Reason }

// CodecError reports a Payload Pop call that underflowed the buffer. The
// payload carries no type information, so a Pop of a different type than
// was pushed is not detected: it decodes whatever bytes are at the tail.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string { return "pconn: codec: " + e.Reason }

// PingExpiredError reports that no PingResponse arrived within PingTimeout
// of a PingRequest being written to the wire.
type PingExpiredError struct{}

func (e *PingExpiredError) Error() string { return "pconn: ping expired" }

// PingSendFailedError reports that a PingRequest could not be written.
// It wraps the underlying write failure.
type PingSendFailedError struct {
	Err error
}

func (e *PingSendFailedError) Error() string {
	return fmt.Sprintf("pconn: ping send failed: %v", e.Err)
}
func (e *PingSendFailedError) Unwrap() error { return e.Err }

// HandlerPanicError reports that a user-supplied handler panicked. The
// session recovers from it so one misbehaving handler cannot take down the
// process; the session is still treated as failed since its dispatch loop
// state is no longer trustworthy.
type HandlerPanicError struct {
	Recovered any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("pconn: handler panicked: %v", e.Recovered)
}

// ErrClosed is returned by Send when called on a Session that has already
// been closed.
var ErrClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "pconn: use of closed session" }

// ErrNotAccepting is returned by StartAccept when called before Bind.
var ErrNotAccepting = &notAcceptingError{}

type notAcceptingError struct{}

func (*notAcceptingError) Error() string { return "pconn: acceptor is not bound" }
