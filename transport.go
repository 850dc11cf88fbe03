package wsx

import (
	"net"
	"sync"
	"sync/atomic"
)

// ReadyState mirrors the small state machine a transport inspector exposes to
// application code (§4.7).
type ReadyState int

const (
	StateOpen ReadyState = iota
	StatePaused
	StateClosed
)

// Transport is the narrow bidirectional-byte-stream collaborator TCP/TLS setup is left
// to: it's owned by the caller's net.Conn, this module only reads and writes framed bytes
// over it and tracks the counters/flags the facade exposes.
//
// Generalized from a bare net.Conn field into an interface so tests can substitute an
// in-memory net.Pipe half.
type Transport interface {
	net.Conn
	BytesRead() uint64
	BytesWritten() uint64
	IsPaused() bool
	Pause()
	Resume()
	ReadyState() ReadyState
	SetNoDelay(bool) error
	SetKeepAlive(bool) error
}

type connTransport struct {
	net.Conn

	mu       sync.Mutex
	paused   bool
	closed   bool
	read     atomic.Uint64
	written  atomic.Uint64
}

func newConnTransport(c net.Conn) *connTransport {
	return &connTransport{Conn: c}
}

func (t *connTransport) Read(b []byte) (int, error) {
	n, err := t.Conn.Read(b)
	if n > 0 {
		t.read.Add(uint64(n))
	}
	return n, err
}

func (t *connTransport) Write(b []byte) (int, error) {
	n, err := t.Conn.Write(b)
	if n > 0 {
		t.written.Add(uint64(n))
	}
	return n, err
}

func (t *connTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.Conn.Close()
}

func (t *connTransport) BytesRead() uint64    { return t.read.Load() }
func (t *connTransport) BytesWritten() uint64 { return t.written.Load() }

func (t *connTransport) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *connTransport) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *connTransport) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

func (t *connTransport) ReadyState() ReadyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.closed:
		return StateClosed
	case t.paused:
		return StatePaused
	default:
		return StateOpen
	}
}

func (t *connTransport) SetNoDelay(v bool) error {
	if tc, ok := t.Conn.(*net.TCPConn); ok {
		return tc.SetNoDelay(v)
	}
	return nil
}

func (t *connTransport) SetKeepAlive(v bool) error {
	if tc, ok := t.Conn.(*net.TCPConn); ok {
		return tc.SetKeepAlive(v)
	}
	return nil
}
