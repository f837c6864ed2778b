package pconn

import (
	"net"
	"sync"
)

// Acceptor is the server-side factory of started Sessions. It owns a
// bound net.Listener, the keepalive defaults stamped into every Session it
// produces, and the exclusive registry of live Sessions.
type Acceptor struct {
	opts Options

	mu        sync.Mutex
	listener  net.Listener
	accepting bool
	sessions  map[*Session]struct{}
}

// NewAcceptor returns an unbound Acceptor configured with opts. Call Bind
// then StartAccept to begin producing Sessions.
func NewAcceptor(opts Options) *Acceptor {
	return &Acceptor{
		opts:     opts,
		sessions: make(map[*Session]struct{}),
	}
}

// Bind opens the listening endpoint. network/address follow net.Listen's
// conventions ("tcp", "host:port").
func (a *Acceptor) Bind(network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return newIOError("bind", err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()
	return nil
}

// Addr returns the bound listener's address, or nil if Bind has not been
// called yet.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// StartAccept launches the accept loop. A single Accept is ever in flight;
// each accepted connection is wrapped in a Session pre-configured with the
// Acceptor's keepalive defaults and started, then onConnected is invoked
// on its own goroutine while the loop immediately re-arms the next Accept.
// If the connection completes after StopAccept was called, onForbidden is
// invoked instead and the Session is closed without ever being handed to
// onConnected.
//
// StartAccept returns nil once CloseAll has closed the listener; any
// other Accept failure is returned wrapped in an IOError. It is meant to be run in its own goroutine by
// the caller, matching the teacher's detached-task handling of accept
// completions.
func (a *Acceptor) StartAccept(onConnected, onForbidden func(*Session)) error {
	a.mu.Lock()
	ln := a.listener
	a.accepting = true
	a.mu.Unlock()

	if ln == nil {
		return ErrNotAccepting
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			a.mu.Lock()
			closed := a.listener == nil
			a.mu.Unlock()
			if closed {
				return nil
			}
			return newIOError("accept", err)
		}
		a.handleAccepted(conn, onConnected, onForbidden)
	}
}

// handleAccepted wraps one freshly accepted conn in a Session and routes
// it to onConnected or onForbidden depending on whether the Acceptor was
// still accepting at the instant this accept completed. Split out of
// StartAccept's loop so the forbidden-routing path (scenario S5) can be
// exercised deterministically without racing a real listener shutdown.
func (a *Acceptor) handleAccepted(conn net.Conn, onConnected, onForbidden func(*Session)) {
	session := newSession(conn, a.opts)

	a.mu.Lock()
	accepting := a.accepting
	if accepting {
		a.sessions[session] = struct{}{}
	}
	a.mu.Unlock()

	session.Start()

	if accepting {
		go onConnected(session)
	} else {
		go func() {
			if onForbidden != nil {
				onForbidden(session)
			}
			_ = a.Close(session)
		}()
	}
}

// StopAccept stops handing new connections to onConnected: every
// connection accepted from this point on is routed to onForbidden instead
// and immediately closed. The listener itself keeps running — a single
// Accept stays in flight at all times, so a connection whose handshake
// was already completing when StopAccept was called is still picked up
// and correctly forbidden rather than left stranded. Sessions already in
// the registry are unaffected. Use CloseAll to also tear down the
// listener and every registered session.
func (a *Acceptor) StopAccept() {
	a.mu.Lock()
	a.accepting = false
	a.mu.Unlock()
}

// Close removes session from the registry and shuts its connection down.
func (a *Acceptor) Close(session *Session) error {
	a.mu.Lock()
	delete(a.sessions, session)
	a.mu.Unlock()
	return session.Close()
}

// CloseAll stops the accept loop for good, closing the listener, and
// closes every Session currently in the registry.
func (a *Acceptor) CloseAll() {
	a.mu.Lock()
	sessions := make([]*Session, 0, len(a.sessions))
	for s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.sessions = make(map[*Session]struct{})
	ln := a.listener
	a.listener = nil
	a.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, s := range sessions {
		_ = s.Close()
	}
}

// Sessions returns a snapshot of the currently registered Sessions.
func (a *Acceptor) Sessions() []*Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Session, 0, len(a.sessions))
	for s := range a.sessions {
		out = append(out, s)
	}
	return out
}
