package pconn

import (
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func fastKeepaliveOptions() Options {
	o := DefaultOptions()
	o.PingTimeout = 300 * time.Millisecond
	o.PingDelay = 60 * time.Millisecond
	return o
}

// S3 — keepalive steady: two cooperating peers must stay connected and
// never report a ping timeout across several ping cycles.
func TestKeepaliveSteady(t *testing.T) {
	c1, c2 := net.Pipe()
	opts := fastKeepaliveOptions()
	a := newSession(c1, opts)
	b := newSession(c2, opts)
	defer a.Close()
	defer b.Close()

	var timedOut atomic.Bool
	a.OnPingTimeout = func(error) { timedOut.Store(true) }
	b.OnPingTimeout = func(error) { timedOut.Store(true) }

	a.Start()
	b.Start()

	time.Sleep(10 * opts.PingDelay)

	if timedOut.Load() {
		t.Fatal("OnPingTimeout fired between cooperating peers")
	}
	if !a.Connected() || !b.Connected() {
		t.Fatalf("Connected() = (%v, %v), want (true, true)", a.Connected(), b.Connected())
	}
}

// S4 — keepalive break: a peer whose PingRequest handler is disabled never
// answers; the initiator's OnPingTimeout must fire within
// PingDelay+PingTimeout, and Connected() must become false.
func TestKeepaliveTimeout(t *testing.T) {
	c1, c2 := net.Pipe()
	opts := fastKeepaliveOptions()

	silentOpts := opts
	silentOpts.PingEnabled = false
	silentOpts.PingResponseEnabled = false

	a := newSession(c1, opts)
	b := newSession(c2, silentOpts)
	defer a.Close()
	defer b.Close()

	timedOut := make(chan error, 1)
	a.OnPingTimeout = func(err error) { timedOut <- err }

	a.Start()
	b.Start()

	select {
	case err := <-timedOut:
		if _, ok := err.(*PingExpiredError); !ok {
			t.Fatalf("OnPingTimeout cause = %T, want *PingExpiredError", err)
		}
	case <-time.After(opts.PingDelay + opts.PingTimeout + 2*time.Second):
		t.Fatal("OnPingTimeout never fired against a silent peer")
	}

	if a.Connected() {
		t.Fatal("Connected() true after ping timeout")
	}

	// No further writes from a: the session was closed before
	// OnPingTimeout fired, so Send refuses to queue (active is false).
	if err := a.Send(NewPayload()); err != ErrClosed {
		t.Fatalf("Send after ping timeout = %v, want ErrClosed", err)
	}
}

// A response that arrives after the initiator has already declared a
// timeout must be silently dropped rather than panicking or re-arming.
func TestKeepaliveLateResponseDropped(t *testing.T) {
	s := newSession(&discardConn{}, fastKeepaliveOptions())
	s.pingWaiting = false
	s.pingWaitCh = nil
	// Must not panic even though there is nothing waiting.
	s.handlePingResponse(NewPayload(), s)
}

// discardConn is a minimal net.Conn that never returns from Read, so
// sessions built on it can be exercised without a real peer.
type discardConn struct{}

func (discardConn) Read(b []byte) (int, error)       { select {} }
func (discardConn) Write(b []byte) (int, error)      { return len(b), nil }
func (discardConn) Close() error                     { return nil }
func (discardConn) LocalAddr() net.Addr              { return nil }
func (discardConn) RemoteAddr() net.Addr             { return nil }
func (discardConn) SetDeadline(time.Time) error      { return nil }
func (discardConn) SetReadDeadline(time.Time) error  { return nil }
func (discardConn) SetWriteDeadline(time.Time) error { return nil }
