package wsx

import (
	"bytes"
	"crypto/rand"
	"time"
)

// runPingLoop is the single server-wide periodic ping dispatcher (§4.4 "Outbound pings").
// It runs for the lifetime of the Server in its own goroutine, woken either by its own
// timer or by a reschedule request from SetPingDelay, so a config change takes effect
// "atomically" (§4.7) without restarting the loop.
func (s *Server) runPingLoop() {
	defer close(s.pingLoopDone)

	var timer *time.Timer
	reset := func(d time.Duration) {
		if timer != nil {
			timer.Stop()
		}
		if d > 0 {
			timer = time.NewTimer(d)
		} else {
			timer = nil
		}
	}
	reset(s.getPingDelay())

	for {
		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C
		}

		select {
		case <-s.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case d := <-s.pingReschedule:
			reset(d)
		case <-fire:
			s.pingAll()
			reset(s.getPingDelay())
		}
	}
}

// pingAll sends a fresh ping token to every registered client and arms each one's pong
// deadline unless one is already outstanding, per §4.4 and open-question decision #2 (periodic pings use a random token,
// not the clientId).
func (s *Server) pingAll() {
	pongTimeout := s.getPongTimeout()
	for _, c := range s.registry.snapshot() {
		token := make([]byte, 16)
		if _, err := rand.Read(token); err != nil {
			continue
		}

		c.mu.Lock()
		if !c.alive {
			c.mu.Unlock()
			continue
		}
		c.ping.expectedContent = token
		t := c.transport
		c.mu.Unlock()

		if _, err := t.Write(Encode(token, OpPing)); err != nil {
			s.emit.emitError(c.id, err)
			continue
		}
		s.armPongDeadline(c, pongTimeout)
	}
}

// armPongDeadline schedules the deadline timer that fires CloseUnexpectedCondition when a
// ping goes unanswered (§4.4, I4). Looked-up by id inside the callback per §9's
// cyclic-reference note, never by captured pointer. A deadline already armed for an
// earlier, still unanswered ping is left in place, so later pings never push it back.
func (s *Server) armPongDeadline(c *client, pongTimeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ping.deadlineTimer != nil {
		return
	}
	if pongTimeout <= 0 {
		return
	}
	id := c.id
	c.ping.deadlineTimer = time.AfterFunc(pongTimeout, func() {
		s.onPongDeadlineExpired(id)
	})
}

func (s *Server) onPongDeadlineExpired(id string) {
	c, ok := s.registry.get(id)
	if !ok {
		return
	}
	c.mu.Lock()
	alive := c.alive
	c.mu.Unlock()
	if !alive {
		return
	}
	s.terminate(id, CloseUnexpectedCondition)
}

// handlePong matches an inbound pong payload against the outstanding ping, rotating
// expectedContent and clearing the deadline on a match (§4.3, I4). Non-matching pongs are
// tolerated silently per §4.4.
func (s *Server) handlePong(c *client, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ping.expectedContent == nil || !bytes.Equal(payload, c.ping.expectedContent) {
		return
	}
	c.ping.expectedContent = nil
	if c.ping.deadlineTimer != nil {
		c.ping.deadlineTimer.Stop()
		c.ping.deadlineTimer = nil
	}
}

// handlePing engages the anti-DoS pong-coalescing pair for an inbound client ping
// (§4.4 "Inbound pings"): at most one pong echoed per 3s regardless of inbound rate, and
// a peer that never lets the 3s timer settle is disconnected after 9s.
func (s *Server) handlePing(c *client, payload []byte) {
	c.mu.Lock()
	id := c.id
	if c.pong.emitTimer != nil {
		c.pong.emitTimer.Stop()
	}
	c.pong.emitTimer = time.AfterFunc(3*time.Second, func() {
		s.emitPong(id, payload)
	})
	if c.pong.abortTimer == nil {
		c.pong.abortTimer = time.AfterFunc(9*time.Second, func() {
			s.onPongAbort(id)
		})
	}
	c.mu.Unlock()
}

func (s *Server) emitPong(id string, payload []byte) {
	c, ok := s.registry.get(id)
	if !ok {
		return
	}
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.pong.emitTimer = nil
	if c.pong.abortTimer != nil {
		c.pong.abortTimer.Stop()
		c.pong.abortTimer = nil
	}
	t := c.transport
	c.mu.Unlock()

	if _, err := t.Write(Encode(payload, OpPong)); err != nil {
		s.emit.emitError(id, err)
	}
}

func (s *Server) onPongAbort(id string) {
	c, ok := s.registry.get(id)
	if !ok {
		return
	}
	c.mu.Lock()
	alive := c.alive
	c.mu.Unlock()
	if !alive {
		return
	}
	s.terminate(id, CloseAbnormal)
}

// clearTimers stops every timer owned by c. Called synchronously from terminate/Close
// before registry removal, per §5's cancellation guarantee.
func (c *client) clearTimers() {
	if c.ping.deadlineTimer != nil {
		c.ping.deadlineTimer.Stop()
		c.ping.deadlineTimer = nil
	}
	if c.pong.emitTimer != nil {
		c.pong.emitTimer.Stop()
		c.pong.emitTimer = nil
	}
	if c.pong.abortTimer != nil {
		c.pong.abortTimer.Stop()
		c.pong.abortTimer = nil
	}
}
