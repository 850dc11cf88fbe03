package wsx

import "log/slog"

// logger returns the configured structured logger (default slog.Default(), per
// ws-mesh's Logger *slog.Logger config field), used by the handshake controller and
// terminal-close path to log at Info/Warn with structured attributes.
func (s *Server) logger() *slog.Logger {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Logger
}
