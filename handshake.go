package wsx

import (
	"crypto/sha1"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// websocketGUID is the RFC 6455 §1.3 magic string used to compute Sec-WebSocket-Accept.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ServeHTTP is the Handshake Controller (§4.6). It is modeled as an http.Handler so the
// module plugs into an existing HTTP server — mount it at a route with http.ServeMux
// rather than owning its own raw TCP listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		origin = strings.TrimSpace(r.Header.Get("Sec-WebSocket-Origin"))
	}

	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		s.reject(w, http.StatusBadRequest, nil)
		return
	}

	version := r.Header.Get("Sec-WebSocket-Version")
	if version != "8" && version != "13" {
		s.reject(w, http.StatusUpgradeRequired, map[string]string{"Sec-WebSocket-Version": "13, 8"})
		return
	}

	if !s.originAllowed(origin, r.Host) {
		s.logger().Warn("handshake rejected: origin policy", slog.String("origin", origin), slog.String("host", r.Host))
		s.reject(w, http.StatusForbidden, nil)
		return
	}

	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		s.reject(w, http.StatusBadRequest, nil)
		return
	}

	peer := peerIPFromAddr(r.RemoteAddr)
	limit := s.getLimitByIP()
	if limit > 0 && s.registry.countByIP(peer) >= limit {
		s.logger().Warn("handshake rejected: per-IP cap", slog.String("peer", peer), slog.Int("limit", limit))
		s.reject(w, http.StatusTooManyRequests, nil)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		s.reject(w, http.StatusInternalServerError, nil)
		return
	}

	rawConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		s.logger().Error("handshake hijack failed", slog.Any("error", ErrHandshake), slog.Any("cause", err))
		return
	}

	var cookieID string
	if ck, err := r.Cookie(sessionCookieName); err == nil {
		cookieID = ck.Value
	}
	id, expires := s.registry.resolveID(cookieID, s.getSessionExpires(), time.Now())

	accept := computeAccept(key)

	rawConn.SetReadDeadline(time.Time{})
	transport := newConnTransport(rawConn)
	c := newClient(id, transport, r.URL)

	// Register before the 101 response reaches the peer, so a concurrently admitted
	// connection's per-IP count (§4.5 I6) is never short by one in-flight handshake.
	s.registry.add(c)

	bufrw.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	bufrw.WriteString("Upgrade: websocket\r\n")
	bufrw.WriteString("Connection: Upgrade\r\n")
	bufrw.WriteString("Sec-WebSocket-Accept: " + accept + "\r\n")
	if s.getSessionExpires() > 0 {
		bufrw.WriteString("Set-Cookie: " + sessionCookieName + "=" + id + "; Expires=" + expires.UTC().Format(http.TimeFormat) + "\r\n")
	}
	bufrw.WriteString("\r\n")
	if err := bufrw.Flush(); err != nil {
		s.registry.remove(id)
		rawConn.Close()
		return
	}

	s.logger().Info("client connected", slog.String("client_id", id), slog.String("peer", peer), slog.String("topic", c.topic))
	s.emit.emitOpen(id)

	go s.readLoop(c)
}

func (s *Server) reject(w http.ResponseWriter, status int, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
}

// originAllowed implements §4.6 step 4 with open-question decision #3 applied: reject
// when Origin is missing or violates policy, with no implicit pass-through for an absent
// header.
func (s *Server) originAllowed(origin, host string) bool {
	if origin == "" {
		return false
	}
	if strings.Contains(origin, host) {
		return true
	}

	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	for _, allowed := range s.cfg.AllowOrigin {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func computeAccept(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}
