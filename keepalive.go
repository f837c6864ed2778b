package pconn

import "time"

// pingLoop is the keepalive initiator. It runs once per Session when
// Options.PingEnabled is set. Each cycle: send PingRequest, wait for a
// PingResponse within PingTimeout; on timeout, fail the session and stop;
// on success, sleep the remainder of PingDelay before the next cycle. At
// most one ping is ever outstanding.
func (s *Session) pingLoop() {
	defer s.wg.Done()

	s.SetHandler(PingResponse, s.handlePingResponse, true)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}
		if !s.connected.Load() {
			return
		}

		respCh := make(chan struct{}, 1)
		s.pingMu.Lock()
		s.pingWaiting = true
		s.pingWaitCh = respCh
		s.pingMu.Unlock()

		sendTime := time.Now()
		ping := NewPayload()
		ping.PushMessageID(PingRequest)

		if err := s.enqueueAndWait(ping); err != nil {
			if err == ErrClosed {
				return
			}
			s.failRead(&PingSendFailedError{Err: err})
			return
		}
		s.debugf("pconn: sent ping request")

		timeout := time.NewTimer(s.opts.PingTimeout)
		select {
		case <-respCh:
			timeout.Stop()
			elapsed := time.Since(sendTime)
			s.debugf("pconn: received ping response after %s", elapsed)

			delay := s.opts.PingDelay - elapsed
			if delay < 0 {
				delay = 0
			}
			sleep := time.NewTimer(delay)
			select {
			case <-sleep.C:
			case <-s.closeCh:
				sleep.Stop()
				return
			}
		case <-timeout.C:
			s.pingMu.Lock()
			s.pingWaiting = false
			s.pingWaitCh = nil
			s.pingMu.Unlock()
			s.debugf("pconn: ping timed out after %s", s.opts.PingTimeout)
			s.failPingTimeout(&PingExpiredError{})
			return
		case <-s.closeCh:
			timeout.Stop()
			return
		}
	}
}

// handlePingResponse is the dispatch-table entry the keepalive initiator
// installs for PingResponse. It wakes the one outstanding pingLoop wait,
// if any; a response that arrives after the wait already timed out (the
// flag was reset by the expiry path) is silently dropped.
func (s *Session) handlePingResponse(_ *Payload, _ *Session) {
	s.pingMu.Lock()
	ch := s.pingWaitCh
	waiting := s.pingWaiting
	s.pingWaiting = false
	s.pingMu.Unlock()

	if waiting && ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
