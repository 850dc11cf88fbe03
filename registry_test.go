package wsx

import (
	"net"
	"net/url"
	"testing"
	"time"
)

// fakeAddr/fakeTransport let registry/client unit tests exercise the Transport interface
// without a real socket.
type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

type fakeTransport struct {
	remote string
	paused bool
}

func (f *fakeTransport) Read(b []byte) (int, error)       { return 0, nil }
func (f *fakeTransport) Write(b []byte) (int, error)      { return len(b), nil }
func (f *fakeTransport) Close() error                     { return nil }
func (f *fakeTransport) LocalAddr() net.Addr              { return fakeAddr("local") }
func (f *fakeTransport) RemoteAddr() net.Addr             { return fakeAddr(f.remote) }
func (f *fakeTransport) SetDeadline(time.Time) error      { return nil }
func (f *fakeTransport) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeTransport) BytesRead() uint64                { return 0 }
func (f *fakeTransport) BytesWritten() uint64             { return 0 }
func (f *fakeTransport) IsPaused() bool                   { return f.paused }
func (f *fakeTransport) Pause()                           { f.paused = true }
func (f *fakeTransport) Resume()                          { f.paused = false }
func (f *fakeTransport) ReadyState() ReadyState           { return StateOpen }
func (f *fakeTransport) SetNoDelay(bool) error            { return nil }
func (f *fakeTransport) SetKeepAlive(bool) error          { return nil }

func newFakeClient(id, remoteIP string) *client {
	u, _ := url.Parse("/chat")
	return newClient(id, &fakeTransport{remote: remoteIP + ":12345"}, u)
}

func TestRegistryPerIPCount(t *testing.T) {
	r := newRegistry()
	r.add(newFakeClient("a", "10.0.0.1"))
	r.add(newFakeClient("b", "10.0.0.1"))
	r.add(newFakeClient("c", "10.0.0.2"))

	if n := r.countByIP("10.0.0.1"); n != 2 {
		t.Fatalf("got %d want 2", n)
	}
	if n := r.countByIP("10.0.0.2"); n != 1 {
		t.Fatalf("got %d want 1", n)
	}
	if n := r.countByIP("10.0.0.3"); n != 0 {
		t.Fatalf("got %d want 0", n)
	}
}

func TestRegistryResolveIDFreshWhenNoCookie(t *testing.T) {
	r := newRegistry()
	id, expires := r.resolveID("", time.Hour, time.Now())
	if id == "" {
		t.Fatal("expected a generated id")
	}
	if !expires.After(time.Now()) {
		t.Fatal("expected future expiry")
	}
}

func TestRegistryResolveIDReusesNonLiveSession(t *testing.T) {
	r := newRegistry()
	now := time.Now()

	id, _ := r.resolveID("", time.Hour, now)
	// id is not added to r.clients (never went "live" for this unit test), so it should
	// be reusable by a reconnecting peer presenting the same cookie.
	reused, _ := r.resolveID(id, time.Hour, now.Add(time.Minute))
	if reused != id {
		t.Fatalf("expected sticky reuse of %q, got %q", id, reused)
	}
}

func TestRegistryResolveIDDoesNotReuseLiveSession(t *testing.T) {
	r := newRegistry()
	now := time.Now()

	id, _ := r.resolveID("", time.Hour, now)
	r.add(newFakeClient(id, "10.0.0.1"))

	other, _ := r.resolveID(id, time.Hour, now.Add(time.Minute))
	if other == id {
		t.Fatalf("must not hand a live id to a second connection")
	}
}

func TestRegistryResolveIDExpiredSessionNotReused(t *testing.T) {
	r := newRegistry()
	now := time.Now()

	id, _ := r.resolveID("", 10*time.Millisecond, now)
	other, _ := r.resolveID(id, 10*time.Millisecond, now.Add(time.Hour))
	if other == id {
		t.Fatalf("expired session must not be reused")
	}
}

func TestRegistryAddRemove(t *testing.T) {
	r := newRegistry()
	c := newFakeClient("x", "10.0.0.5")
	r.add(c)

	if _, ok := r.get("x"); !ok {
		t.Fatal("expected client to be present")
	}
	r.remove("x")
	if _, ok := r.get("x"); ok {
		t.Fatal("expected client to be removed")
	}
}
