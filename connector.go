package pconn

import (
	"context"
	"net"
)

// Connector is the client-side factory of exactly one Session. It holds
// the keepalive defaults stamped into the Session it produces.
type Connector struct {
	opts   Options
	dialer net.Dialer
}

// NewConnector returns a Connector configured with opts.
func NewConnector(opts Options) *Connector {
	return &Connector{opts: opts}
}

// Connect resolves address and dials it (honoring ctx's deadline and
// cancellation), wraps the resulting connection in a Session using the
// Connector's keepalive defaults, starts it, and invokes onConnected on
// its own goroutine so a slow callback never delays the caller. Connect
// itself returns synchronously once the dial either succeeds or fails;
// all further session events are delivered through the Session's own
// callbacks and the returned Session's dispatch table.
func (c *Connector) Connect(ctx context.Context, network, address string, onConnected func(*Session, error)) (*Session, error) {
	conn, err := c.dialer.DialContext(ctx, network, address)
	if err != nil {
		wrapped := newIOError("connect", err)
		if onConnected != nil {
			go onConnected(nil, wrapped)
		}
		return nil, wrapped
	}

	session := newSession(conn, c.opts)
	session.Start()

	if onConnected != nil {
		go onConnected(session, nil)
	}
	return session, nil
}
