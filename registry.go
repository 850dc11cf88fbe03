package wsx

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionCookieName is the sticky-identity cookie per §4.5/§6.
const sessionCookieName = "jadsonlucena-websocket"

// session records an issued client id's expiry so a reconnecting peer presenting the same
// cookie within SessionExpires gets the same id back (§4.5 "sticky session"), even after
// its prior connection has already been torn down.
type session struct {
	id      string
	expires time.Time
}

// registry is the Client Registry (§4.5): id -> *client, plus a peer-IP count for the
// per-IP admission cap and an issued-session table for sticky identity.
//
// Grounded on ramory-l-gosocketio's Adapter abstraction (engineio/adapter.go) for a
// swappable id->session mapping, generalized to also enforce I6 (per-IP cap).
type registry struct {
	mu sync.RWMutex

	clients  map[string]*client
	sessions map[string]session
}

func newRegistry() *registry {
	return &registry{
		clients:  make(map[string]*client),
		sessions: make(map[string]session),
	}
}

// get returns the live client for id, satisfying I1 (a record exists iff its transport is
// still live).
func (r *registry) get(id string) (*client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// snapshot returns the live clients at the moment of the call, safe to range over without
// holding the registry lock (used by the ping loop, which may run concurrently with
// connection goroutines adding/removing entries).
func (r *registry) snapshot() []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *registry) countByIP(ip string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.clients {
		if peerIP(c.transport) == ip {
			n++
		}
	}
	return n
}

// add registers c under c.id. Callers must have already checked the per-IP cap (admission
// happens while the handshake response is still being composed, §4.6 step 5).
func (r *registry) add(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.id] = c
}

// remove deletes id from the live set. It does not touch the sticky-session table: a
// removed id remains reusable by a reconnecting peer until its session expires.
func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// resolveID implements §4.5's identity assignment: reuse the cookie-supplied id when it
// names a known, not-currently-live session within SessionExpires; otherwise mint a fresh
// id, retrying on collision. Returns the id and its expiry for the Set-Cookie header.
func (r *registry) resolveID(cookieID string, sessionExpires time.Duration, now time.Time) (string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked(now)

	if sessionExpires > 0 && cookieID != "" {
		if s, ok := r.sessions[cookieID]; ok {
			if _, live := r.clients[cookieID]; !live && now.Before(s.expires) {
				expires := now.Add(sessionExpires)
				r.sessions[cookieID] = session{id: cookieID, expires: expires}
				return cookieID, expires
			}
		}
	}

	var id string
	for {
		id = uuid.New().String()
		if _, exists := r.sessions[id]; !exists {
			if _, live := r.clients[id]; !live {
				break
			}
		}
	}

	expires := now
	if sessionExpires > 0 {
		expires = now.Add(sessionExpires)
		r.sessions[id] = session{id: id, expires: expires}
	}
	return id, expires
}

func (r *registry) evictExpiredLocked(now time.Time) {
	for id, s := range r.sessions {
		if !now.Before(s.expires) {
			delete(r.sessions, id)
		}
	}
}

// peerIP extracts the host part of a transport's remote address, defensively falling back
// to the full string if it cannot be split (e.g. a pipe-based test transport).
func peerIP(t Transport) string {
	addr := t.RemoteAddr()
	if addr == nil {
		return ""
	}
	return peerIPFromAddr(addr.String())
}

// peerIPFromAddr extracts the host part of a "host:port" (or "[host]:port") address
// string, defensively falling back to the full string if it cannot be split.
func peerIPFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
