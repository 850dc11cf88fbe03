package wsx

import (
	"encoding/base64"
	"encoding/hex"
	"unicode/utf16"
)

// handleFrame is the Frame Handler's per-frame entry point (§4.3): it enforces the RSV
// REDESIGN FLAG, routes control frames to the Liveness Manager, and drives the
// fragmentation state machine for data frames.
func (s *Server) handleFrame(c *client, frame Frame) {
	if s.getRejectRSV() && frame.RSV != 0 {
		s.terminate(c.id, CloseProtocolError)
		return
	}

	switch {
	case frame.Opcode.isReserved():
		s.terminate(c.id, CloseUnacceptableData)
	case frame.Opcode.isControl():
		s.handleControlFrame(c, frame)
	default:
		s.handleDataFrame(c, frame)
	}
}

func (s *Server) handleControlFrame(c *client, frame Frame) {
	switch frame.Opcode {
	case OpClose:
		s.terminate(c.id, CloseNormal)
	case OpPing:
		if len(frame.Payload) > 125 {
			s.terminate(c.id, CloseUnacceptableData)
			return
		}
		s.handlePing(c, frame.Payload)
	case OpPong:
		if len(frame.Payload) > 125 {
			s.terminate(c.id, CloseUnacceptableData)
			return
		}
		s.handlePong(c, frame.Payload)
	}
}

// handleDataFrame implements §4.3's state table for opcodes 0/1/2: Idle/Assembling
// transitions, I2's first-fragment-opcode rule, and I3's cumulative payload check.
func (s *Server) handleDataFrame(c *client, frame Frame) {
	c.mu.Lock()
	assembling := len(c.pendingFragments) > 0
	c.mu.Unlock()

	switch frame.Opcode {
	case OpText, OpBinary:
		if assembling {
			s.terminate(c.id, CloseUnacceptableData)
			return
		}
		if !s.checkPayloadLimit(c, frame.PayloadLength) {
			return
		}
		if frame.Fin {
			s.deliverMessage(c, frame.Opcode, frame.Payload)
			return
		}
		c.mu.Lock()
		c.pendingFragments = append(c.pendingFragments, frame)
		c.mu.Unlock()

	case OpContinuation:
		if !assembling {
			s.terminate(c.id, CloseUnacceptableData)
			return
		}
		if !s.checkPayloadLimit(c, frame.PayloadLength) {
			return
		}

		c.mu.Lock()
		c.pendingFragments = append(c.pendingFragments, frame)
		if !frame.Fin {
			c.mu.Unlock()
			return
		}

		first := c.pendingFragments[0]
		total := make([]byte, 0, totalLen(c.pendingFragments))
		for _, f := range c.pendingFragments {
			total = append(total, f.Payload...)
		}
		c.pendingFragments = nil
		c.mu.Unlock()

		s.deliverMessage(c, first.Opcode, total)
	}
}

func totalLen(frames []Frame) int {
	n := 0
	for _, f := range frames {
		n += len(f.Payload)
	}
	return n
}

// checkPayloadLimit enforces I3/§4.3's maxPayload check: the sum of every pending
// fragment's length plus the incoming frame's length must not exceed MaxPayload (when
// MaxPayload > 0). Violation terminates the connection with code 1009.
func (s *Server) checkPayloadLimit(c *client, incoming uint64) bool {
	if s.getMaxPayload() <= 0 {
		return true
	}

	c.mu.Lock()
	total := incoming
	for _, f := range c.pendingFragments {
		total += f.PayloadLength
	}
	c.mu.Unlock()

	if total > uint64(s.getMaxPayload()) {
		s.terminate(c.id, CloseMessageTooBig)
		return false
	}
	return true
}

// deliverMessage emits a fully-reassembled application message on c's topic, decoding
// opcode-1 payloads per the configured Encoding (§9's "intent appears to be: use the
// first fragment's opcode to choose text vs binary decoding").
func (s *Server) deliverMessage(c *client, opcode Opcode, payload []byte) {
	if opcode == OpText {
		payload = applyEncoding(payload, s.getEncoding())
	}
	s.emit.emitTopic(c.topic, c.id, payload)
}

// applyEncoding transcodes a text-frame payload per §6's Encoding option. utf8/ascii/
// binary payloads travel unmodified (text frames are already UTF-8 on the wire); the
// remaining encodings are applied as a byte transcode with no additional validation.
func applyEncoding(payload []byte, enc Encoding) []byte {
	switch enc {
	case EncodingBase64:
		out := make([]byte, base64.StdEncoding.EncodedLen(len(payload)))
		base64.StdEncoding.Encode(out, payload)
		return out
	case EncodingHex:
		out := make([]byte, hex.EncodedLen(len(payload)))
		hex.Encode(out, payload)
		return out
	case EncodingUTF16LE, EncodingUCS2:
		if len(payload)%2 != 0 {
			return payload
		}
		units := make([]uint16, len(payload)/2)
		for i := range units {
			units[i] = uint16(payload[2*i]) | uint16(payload[2*i+1])<<8
		}
		return []byte(string(utf16.Decode(units)))
	default:
		return payload
	}
}
