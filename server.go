package wsx

import (
	"encoding/binary"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Server is the Public Facade (§4.7): it owns the Client Registry, the topic emitter, and
// the background Liveness Manager goroutine, and satisfies http.Handler so it mounts
// directly onto an existing net/http server's mux as a pluggable component.
type Server struct {
	cfgMu sync.RWMutex
	cfg   Config

	registry *registry
	emit     *emitter

	pingReschedule chan time.Duration
	closeCh        chan struct{}
	pingLoopDone   chan struct{}
	closeOnce      sync.Once
}

// NewServer constructs a Server from cfg, filling any unset fields via Config.normalize,
// and starts the periodic ping goroutine (§4.4).
func NewServer(cfg Config) *Server {
	cfg.normalize()

	s := &Server{
		cfg:            cfg,
		registry:       newRegistry(),
		emit:           newEmitter(),
		pingReschedule: make(chan time.Duration, 1),
		closeCh:        make(chan struct{}),
		pingLoopDone:   make(chan struct{}),
	}

	go s.runPingLoop()
	return s
}

// Shutdown stops the ping loop and terminates every registered client with a normal
// close. It does not stop any net/http server the facade was mounted on — that remains
// the caller's responsibility per §1's scoping of the HTTP server as an external
// collaborator.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() { close(s.closeCh) })
	<-s.pingLoopDone

	for _, c := range s.registry.snapshot() {
		s.terminate(c.id, CloseNormal)
	}
}

// --- event registration (§DOMAIN STACK topic emitter) ---

func (s *Server) On(topic string, fn TopicHandler) { s.emit.on(topic, fn) }
func (s *Server) OnOpen(fn OpenHandler)            { s.emit.onOpen(fn) }
func (s *Server) OnClose(fn CloseHandler)          { s.emit.onClose(fn) }
func (s *Server) OnError(fn ErrorHandler)          { s.emit.onError(fn) }

// --- per-client facade operations (§4.7) ---

// Send writes data to id as a single unfragmented server frame: opcode 1 when asText,
// opcode 2 otherwise.
func (s *Server) Send(id string, data []byte, asText bool) error {
	c, ok := s.registry.get(id)
	if !ok {
		return ErrNotFound
	}
	op := OpBinary
	if asText {
		op = OpText
	}
	_, err := c.transport.Write(Encode(data, op))
	return err
}

// Ping sends an explicit opcode-9 frame to id carrying id itself as payload (open-question
// decision #2: this explicit facade call, distinct from the background liveness pinger,
// follows §4.7's literal text). If pongTimeout > 0 a deadline is armed per §4.4.
func (s *Server) Ping(id string, pongTimeout time.Duration) error {
	c, ok := s.registry.get(id)
	if !ok {
		return ErrNotFound
	}

	payload := []byte(id)
	c.mu.Lock()
	c.ping.expectedContent = payload
	c.mu.Unlock()

	if _, err := c.transport.Write(Encode(payload, OpPing)); err != nil {
		return err
	}
	if pongTimeout > 0 {
		s.armPongDeadline(c, pongTimeout)
	}
	return nil
}

// Close gracefully ends and destroys id's connection, removing it from the registry.
// It returns (true, nil) when this call tore the connection down and (false, nil) when a
// teardown of id is already in progress. An unknown id, including one whose connection
// has already been destroyed and removed, returns (false, ErrNotFound).
func (s *Server) Close(id string) (bool, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return false, ErrNotFound
	}

	c.mu.Lock()
	alreadyDead := !c.alive
	c.mu.Unlock()
	if alreadyDead {
		return false, nil
	}

	s.terminate(id, CloseNormal)
	return true, nil
}

// Client returns a read-mostly handle for id's transport inspectors (§4.7).
func (s *Server) Client(id string) (ClientHandle, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return ClientHandle{}, ErrNotFound
	}
	return ClientHandle{c: c}, nil
}

// URL returns the parsed request URL id connected with.
func (s *Server) URL(id string) (*url.URL, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return c.url, nil
}

func (s *Server) BytesRead(id string) (uint64, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return 0, ErrNotFound
	}
	return c.transport.BytesRead(), nil
}

func (s *Server) BytesWritten(id string) (uint64, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return 0, ErrNotFound
	}
	return c.transport.BytesWritten(), nil
}

func (s *Server) IsPaused(id string) (bool, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return false, ErrNotFound
	}
	return c.transport.IsPaused(), nil
}

func (s *Server) Pause(id string) error {
	c, ok := s.registry.get(id)
	if !ok {
		return ErrNotFound
	}
	c.transport.Pause()
	return nil
}

func (s *Server) Resume(id string) error {
	c, ok := s.registry.get(id)
	if !ok {
		return ErrNotFound
	}
	c.transport.Resume()
	return nil
}

func (s *Server) ReadyState(id string) (ReadyState, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return StateClosed, ErrNotFound
	}
	return c.transport.ReadyState(), nil
}

func (s *Server) SetClientNoDelay(id string, v bool) error {
	c, ok := s.registry.get(id)
	if !ok {
		return ErrNotFound
	}
	return c.transport.SetNoDelay(v)
}

func (s *Server) SetClientKeepAlive(id string, v bool) error {
	c, ok := s.registry.get(id)
	if !ok {
		return ErrNotFound
	}
	return c.transport.SetKeepAlive(v)
}

// --- terminal close (§4.6 close-code table) ---

// terminate is the single path every close-code condition funnels through: it is
// idempotent (guarded by client.alive under its mutex), clears all timers before
// touching the transport (§5's cancellation guarantee), best-effort writes a close frame
// (none for 1006, which RFC 6455 §7.4.1 reserves from use on the wire), and removes the record from the registry before emitting the close event.
func (s *Server) terminate(id string, code CloseCode) {
	c, ok := s.registry.get(id)
	if !ok {
		return
	}

	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.alive = false
	c.clearTimers()
	t := c.transport
	c.mu.Unlock()

	if code != CloseAbnormal {
		closePayload := make([]byte, 2)
		binary.BigEndian.PutUint16(closePayload, uint16(code))
		t.Write(Encode(closePayload, OpClose))
	}
	t.Close()
	s.registry.remove(id)

	s.logger().Info("client disconnected",
		slog.String("client_id", id), slog.Int("close_code", int(code)))
	s.emit.emitClose(id, newCloseError(code))
}

// --- configuration setters (§4.7: "validate types and ranges silently; invalid values
// are ignored (keep prior value)") ---

func (s *Server) getPingDelay() time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.PingDelay
}

func (s *Server) getPongTimeout() time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.PongTimeout
}

func (s *Server) getSessionExpires() time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.SessionExpires
}

func (s *Server) getLimitByIP() int {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.LimitByIP
}

func (s *Server) getMaxPayload() int64 {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.MaxPayload
}

func (s *Server) getEncoding() Encoding {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Encoding
}

func (s *Server) getRejectRSV() bool {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.RejectRSV
}

// SetPingDelay reschedules the background ping loop atomically, per §4.7.
func (s *Server) SetPingDelay(d time.Duration) {
	s.cfgMu.Lock()
	s.cfg.PingDelay = d
	s.cfgMu.Unlock()

	for {
		select {
		case s.pingReschedule <- d:
			return
		default:
			select {
			case <-s.pingReschedule:
			default:
			}
		}
	}
}

func (s *Server) SetPongTimeout(d time.Duration) {
	s.cfgMu.Lock()
	s.cfg.PongTimeout = d
	s.cfgMu.Unlock()
}

func (s *Server) SetSessionExpires(d time.Duration) {
	s.cfgMu.Lock()
	s.cfg.SessionExpires = d
	s.cfgMu.Unlock()
}

func (s *Server) SetLimitByIP(n int) {
	s.cfgMu.Lock()
	s.cfg.LimitByIP = n
	s.cfgMu.Unlock()
}

func (s *Server) SetMaxPayload(n int64) {
	s.cfgMu.Lock()
	s.cfg.MaxPayload = n
	s.cfgMu.Unlock()
}

func (s *Server) SetAllowOrigin(origins []string) {
	s.cfgMu.Lock()
	s.cfg.AllowOrigin = origins
	s.cfgMu.Unlock()
}

// SetEncoding ignores unrecognized values, keeping the prior one.
func (s *Server) SetEncoding(e Encoding) {
	switch e {
	case EncodingUTF8, EncodingASCII, EncodingBase64, EncodingHex, EncodingBinary, EncodingUTF16LE, EncodingUCS2:
		s.cfgMu.Lock()
		s.cfg.Encoding = e
		s.cfgMu.Unlock()
	}
}

func (s *Server) SetRejectRSV(v bool) {
	s.cfgMu.Lock()
	s.cfg.RejectRSV = v
	s.cfgMu.Unlock()
}
