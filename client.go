package wsx

import (
	"net/url"
	"sync"
	"time"
)

// pingState tracks the outstanding server->client liveness ping (§3, §4.4).
type pingState struct {
	expectedContent []byte
	deadlineTimer   *time.Timer
}

// pongState tracks the anti-DoS coalescing timers for inbound client pings (§4.4).
type pongState struct {
	emitTimer  *time.Timer
	abortTimer *time.Timer
}

// client is the internal ClientRecord (§3). Exported accessors live on *ClientHandle,
// a thin read-mostly view returned by the registry so application code never touches
// these fields directly.
//
// Grounded on the per-session struct in ramory-l-gosocketio's engineio/session.go
// (id, conn, ping timer, ping-timeout timer, mutex) generalized to the fuller
// fragmentation/liveness state this spec requires.
type client struct {
	mu sync.Mutex

	id        string
	transport Transport
	url       *url.URL
	topic     string

	receiveBuffer    []byte
	pendingFragments []Frame

	ping pingState
	pong pongState

	alive bool
}

func newClient(id string, t Transport, u *url.URL) *client {
	topic := u.Path
	if topic == "" || topic == "/" {
		topic = "message"
	}
	return &client{
		id:        id,
		transport: t,
		url:       u,
		topic:     topic,
		alive:     true,
	}
}

// ClientHandle is the read-only view of a client exposed to application code via the
// facade's per-client accessors (§4.7).
type ClientHandle struct {
	c *client
}

func (h ClientHandle) ID() string { return h.c.id }

func (h ClientHandle) URL() *url.URL { return h.c.url }

func (h ClientHandle) BytesRead() uint64 { return h.c.transport.BytesRead() }

func (h ClientHandle) BytesWritten() uint64 { return h.c.transport.BytesWritten() }

func (h ClientHandle) IsPaused() bool { return h.c.transport.IsPaused() }

func (h ClientHandle) Pause() { h.c.transport.Pause() }

func (h ClientHandle) Resume() { h.c.transport.Resume() }

func (h ClientHandle) ReadyState() ReadyState { return h.c.transport.ReadyState() }

func (h ClientHandle) SetNoDelay(v bool) error { return h.c.transport.SetNoDelay(v) }

func (h ClientHandle) SetKeepAlive(v bool) error { return h.c.transport.SetKeepAlive(v) }
