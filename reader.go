package wsx

import (
	"errors"
	"io"
	"time"
)

// readLoop owns c's per-connection receive buffer (§3 ClientRecord.receiveBuffer) and is
// the Connection Reader (§4.2): it drains the transport, runs the codec repeatedly over
// whatever has accumulated, and dispatches every fully decoded frame to the Frame Handler
// in order. It runs for the lifetime of the connection in its own goroutine (§5's
// "one reader goroutine per connection" adaptation).
func (s *Server) readLoop(c *client) {
	buf := make([]byte, 4096)

	for {
		if c.transport.IsPaused() {
			time.Sleep(25 * time.Millisecond)
			continue
		}

		n, err := c.transport.Read(buf)
		if n > 0 {
			if !s.feed(c, append([]byte(nil), buf[:n]...)) {
				return
			}
		}
		if err != nil {
			s.onTransportClosed(c, err)
			return
		}
	}
}

// feed implements §4.2 steps 1-4. It returns false once c has been torn down (by a
// protocol violation found mid-sequence, a close frame, or a limit violation), signalling
// the read loop to stop.
func (s *Server) feed(c *client, chunk []byte) bool {
	c.mu.Lock()
	data := append(c.receiveBuffer, chunk...)
	c.receiveBuffer = nil
	c.mu.Unlock()

	for {
		frame, err := Decode(data)
		if err != nil {
			s.terminate(c.id, CloseUnacceptableData)
			return false
		}

		if frame.Waiting {
			c.mu.Lock()
			c.receiveBuffer = frame.Remainder
			c.mu.Unlock()
			return true
		}

		s.handleFrame(c, frame)

		c.mu.Lock()
		alive := c.alive
		c.mu.Unlock()
		if !alive {
			return false
		}

		if len(frame.Remainder) == 0 {
			return true
		}
		data = frame.Remainder
	}
}

// onTransportClosed handles the transport ending the connection from underneath the
// reader (clean EOF or a transport error), per the close-code table's "Transport ended
// cleanly" / "Transport ended with error flag" rows.
func (s *Server) onTransportClosed(c *client, err error) {
	c.mu.Lock()
	alive := c.alive
	c.mu.Unlock()
	if !alive {
		return
	}

	if errors.Is(err, io.EOF) {
		s.terminate(c.id, CloseNormal)
		return
	}

	s.emit.emitError(c.id, err)
	s.terminate(c.id, CloseAbnormal)
}
