// MIT License
//
// Copyright (c) 2016-2017 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package pconn

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Handler is invoked for every accepted inbound frame whose message id has
// an enabled dispatch entry. It runs on its own goroutine, decoupled from
// the session's read loop, so a slow handler never stalls the next frame.
type Handler func(payload *Payload, session *Session)

type handlerEntry struct {
	fn      Handler
	enabled bool
}

// sendItem is one entry in the outbound FIFO. result is nil for ordinary
// Send calls (fire-and-forget); the keepalive loop uses a non-nil result
// channel so it can classify a write failure on its own ping as
// PingSendFailedError rather than the generic OnFailedSend path, mirroring
// the teacher's writeRequest/writeResult round trip through its send loop.
type sendItem struct {
	payload *Payload
	result  chan error
}

// Options configures the keepalive parameters and frame limits stamped
// into a Session at construction time. Acceptor and Connector both carry
// an Options value used as the default for every Session they produce.
type Options struct {
	// PingEnabled starts the keepalive initiator loop for sessions built
	// with these options.
	PingEnabled bool
	// PingResponseEnabled controls whether the default PingRequest
	// handler replies with a PingResponse. Disabling it makes the
	// session opaque to pings from the peer (used by scenario S4).
	PingResponseEnabled bool
	// ReceiveEnabled controls whether the inbound read loop (and
	// therefore all dispatch, including keepalive) runs at all. Mirrors
	// the original's independent enable_receiving_messages toggle.
	ReceiveEnabled bool
	// PingTimeout is how long the initiator waits for a PingResponse
	// before declaring the peer dead.
	PingTimeout time.Duration
	// PingDelay is the steady-state interval between successful pings.
	PingDelay time.Duration
	// MaxFrameSize caps the declared body size of an inbound frame. Zero
	// disables the cap.
	MaxFrameSize uint64
}

// DefaultOptions returns the Options a new Acceptor/Connector uses unless
// overridden: keepalive on, default ping responder on, receiving on, a
// 10s ping timeout, a 5s ping delay, and DefaultMaxFrameSize.
func DefaultOptions() Options {
	return Options{
		PingEnabled:         true,
		PingResponseEnabled: true,
		ReceiveEnabled:      true,
		PingTimeout:         10 * time.Second,
		PingDelay:           5 * time.Second,
		MaxFrameSize:        DefaultMaxFrameSize,
	}
}

// Session is the per-peer engine: one net.Conn, one outbound FIFO, one
// inbound dispatch table, and (optionally) one keepalive loop. A Session
// is produced by an Acceptor or a Connector and is never constructed
// directly by library users.
type Session struct {
	conn net.Conn
	opts Options

	// OnFailedSend, OnFailedRead and OnPingTimeout are invoked on their
	// own goroutine (never on sendLoop/recvLoop) when the corresponding
	// failure occurs. All three default to nil (silent no-op); set them
	// before Start to observe failures.
	OnFailedSend  func(payload *Payload, err error)
	OnFailedRead  func(err error)
	OnPingTimeout func(err error)
	// Debug, if set, receives human-readable trace lines at keepalive
	// transition points (ping request sent or received, ping response
	// received, ping timeout). Socket open/close is not traced. Nil by
	// default; the session never logs on its own.
	Debug func(format string, args ...any)

	connected atomic.Bool
	active    atomic.Bool

	startOnce sync.Once
	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup

	sendMu    sync.Mutex
	sendQueue []*sendItem
	sendWake  chan struct{}

	handlersMu sync.RWMutex
	handlers   map[MessageID]*handlerEntry

	recvFailOnce sync.Once

	pingMu      sync.Mutex
	pingWaitCh  chan struct{}
	pingWaiting bool

	// onDispatch, if set, is invoked synchronously from recvLoop right
	// after a frame's message id is popped, before its handler is handed
	// to its own goroutine. It exists for tests that need to observe the
	// read loop's wire-order guarantee independently of concurrent
	// handler execution (handler start order is not guaranteed by the Go
	// scheduler even when goroutines are launched in wire order); nil in
	// production use.
	onDispatch func(id MessageID, payload *Payload)
}

func newSession(conn net.Conn, opts Options) *Session {
	s := &Session{
		conn:     conn,
		opts:     opts,
		closeCh:  make(chan struct{}),
		sendWake: make(chan struct{}, 1),
		handlers: make(map[MessageID]*handlerEntry),
	}
	s.handlers[PingRequest] = &handlerEntry{fn: s.handlePingRequest, enabled: opts.PingResponseEnabled}
	return s
}

// Start marks the session connected, launches the inbound read loop (if
// ReceiveEnabled) and the outbound write loop, and, if PingEnabled,
// launches the keepalive initiator. Start is idempotent: calling it more
// than once has no additional effect.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.active.Store(true)
		s.connected.Store(true)

		s.wg.Add(1)
		go s.sendLoop()

		if s.opts.ReceiveEnabled {
			s.wg.Add(1)
			go s.recvLoop()
		}

		if s.opts.PingEnabled {
			s.wg.Add(1)
			go s.pingLoop()
		}
	})
}

// Close marks the session inactive, shuts the underlying conn down for
// both directions, and unblocks every loop waiting on it. Safe to call
// more than once and from any goroutine.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.active.Store(false)
		s.connected.Store(false)
		close(s.closeCh)
		if cerr := s.conn.Close(); cerr != nil {
			err = newIOError("close", cerr)
		}
	})
	return err
}

// Connected reports the session's observable liveness: true from Start
// until a terminal I/O failure, a ping timeout, or Close.
func (s *Session) Connected() bool { return s.connected.Load() }

// LocalAddr returns the local endpoint of the underlying connection.
func (s *Session) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr returns the remote endpoint of the underlying connection.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Send schedules payload for transmission and returns once it has been
// appended to the outbound queue; it does not wait for the frame to reach
// the wire. Safe to call from any goroutine, including from within a
// Handler. Frames are written in the order Send was observed to be
// called by the outbound queue.
func (s *Session) Send(payload *Payload) error {
	_, err := s.enqueue(payload, nil)
	return err
}

// enqueueAndWait appends payload to the outbound FIFO like Send, but
// blocks until that specific frame has been written (or has failed, or
// the session closes), returning the write's outcome. Used by the
// keepalive initiator, which needs to distinguish "could not send the
// ping" from "sent fine, but no response arrived".
func (s *Session) enqueueAndWait(payload *Payload) error {
	result := make(chan error, 1)
	if _, err := s.enqueue(payload, result); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-s.closeCh:
		return ErrClosed
	}
}

func (s *Session) enqueue(payload *Payload, result chan error) (*sendItem, error) {
	if !s.active.Load() {
		return nil, ErrClosed
	}
	item := &sendItem{payload: payload, result: result}

	s.sendMu.Lock()
	s.sendQueue = append(s.sendQueue, item)
	becameFirst := len(s.sendQueue) == 1
	s.sendMu.Unlock()

	if becameFirst {
		select {
		case s.sendWake <- struct{}{}:
		default:
		}
	}
	return item, nil
}

// SetHandler installs or replaces the dispatch entry for id. enabled=false
// suppresses invocation while retaining the entry, which is how the
// default PingRequest responder is toggled off for scenario S4.
func (s *Session) SetHandler(id MessageID, fn Handler, enabled bool) {
	s.handlersMu.Lock()
	s.handlers[id] = &handlerEntry{fn: fn, enabled: enabled}
	s.handlersMu.Unlock()
}

func (s *Session) debugf(format string, args ...any) {
	if s.Debug != nil {
		s.Debug(format, args...)
	}
}

// sendLoop is the single writer: it holds the only reference that ever
// calls writeFrame on s.conn, so writes are strictly serialized without
// any lock around the conn itself.
func (s *Session) sendLoop() {
	defer s.wg.Done()
	for {
		s.sendMu.Lock()
		if len(s.sendQueue) == 0 {
			s.sendMu.Unlock()
			select {
			case <-s.sendWake:
				continue
			case <-s.closeCh:
				return
			}
		}
		next := s.sendQueue[0]
		s.sendMu.Unlock()

		err := writeFrame(s.conn, next.payload)

		s.sendMu.Lock()
		s.sendQueue = s.sendQueue[1:]
		s.sendMu.Unlock()

		if next.result != nil {
			next.result <- err
		}

		if err != nil {
			// next.result != nil means this item is an internal round trip
			// (the keepalive ping via enqueueAndWait); its waiter already
			// classifies the error (PingSendFailedError -> OnFailedRead), so
			// OnFailedSend must not also fire for it, or the owner would see
			// both callbacks for the same failure.
			if next.result == nil && s.OnFailedSend != nil {
				go s.OnFailedSend(next.payload, err)
			}
			s.Close()
			return
		}
	}
}

// recvLoop is the single reader: at most one read_size/read_body pair is
// in flight at any instant, matching the one-outstanding-read invariant.
func (s *Session) recvLoop() {
	defer s.wg.Done()
	for {
		size, err := readSize(s.conn, s.opts.MaxFrameSize)
		if err != nil {
			s.failRead(err)
			return
		}
		body, err := readBody(s.conn, size)
		if err != nil {
			s.failRead(err)
			return
		}
		id, err := body.PopMessageID()
		if err != nil {
			s.failRead(err)
			return
		}

		if s.onDispatch != nil {
			s.onDispatch(id, body)
		}

		s.handlersMu.RLock()
		entry, ok := s.handlers[id]
		s.handlersMu.RUnlock()

		if ok && entry.enabled && entry.fn != nil {
			s.wg.Add(1)
			go s.invokeHandler(entry.fn, body)
		}

		select {
		case <-s.closeCh:
			return
		default:
		}
	}
}

func (s *Session) invokeHandler(fn Handler, payload *Payload) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.failRead(&HandlerPanicError{Recovered: r})
		}
	}()
	fn(payload, s)
}

// failRead marks the session disconnected, invokes OnFailedRead exactly
// once for the lifetime of the session, and closes the conn. The read
// loop funnels its terminal I/O failures through this path, and so does
// the keepalive loop when its ping request cannot be written; a ping
// timeout goes through failPingTimeout instead.
func (s *Session) failRead(cause error) {
	s.recvFailOnce.Do(func() {
		s.connected.Store(false)
		if s.OnFailedRead != nil {
			go s.OnFailedRead(cause)
		}
		s.Close()
	})
}

// failPingTimeout marks the session disconnected and invokes
// OnPingTimeout exactly once with the PingExpiredError that triggered it.
// It shares the terminal-failure gate with failRead so whichever failure
// is observed first wins and no contradictory pair of callbacks can fire
// for one session.
func (s *Session) failPingTimeout(cause *PingExpiredError) {
	s.recvFailOnce.Do(func() {
		s.connected.Store(false)
		s.Close()
		if s.OnPingTimeout != nil {
			go s.OnPingTimeout(cause)
		}
	})
}

func (s *Session) handlePingRequest(_ *Payload, _ *Session) {
	s.debugf("pconn: received ping request")
	resp := NewPayload()
	resp.PushMessageID(PingResponse)
	_ = s.Send(resp)
}
