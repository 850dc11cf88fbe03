// Package wire reproduces the literal end-to-end byte sequences from spec.md §8 as
// black-box tests against the public wsx API, distinct from the behavioral table tests
// in the wsx package itself.
package wire

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jadsonlucena/wsx"
	"github.com/jadsonlucena/wsx/internal/wstest"
)

func TestScenario1LiteralHandshake(t *testing.T) {
	srv := wsx.NewServer(wsx.DefaultConfig())
	ts := httptest.NewServer(srv)
	defer func() {
		srv.Shutdown()
		ts.Close()
	}()

	addr := ts.Listener.Addr().(*net.TCPAddr).String()
	req := "GET /chat HTTP/1.1\r\nHost: " + addr + "\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Origin: http://" + addr + "\r\nSec-WebSocket-Version: 13\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"

	resp, err := wstest.RawHandshake(addr, req)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Sec-WebSocket-Accept"); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("got Sec-WebSocket-Accept %q", got)
	}
}

func TestScenario2LiteralSmallTextEcho(t *testing.T) {
	srv := wsx.NewServer(wsx.DefaultConfig())
	ts := httptest.NewServer(srv)
	defer func() {
		srv.Shutdown()
		ts.Close()
	}()

	got := make(chan string, 1)
	srv.On("/chat", func(id string, payload []byte) { got <- string(payload) })

	addr := ts.Listener.Addr().(*net.TCPAddr).String()
	c, resp, err := wstest.Dial(addr, "/chat", "dGhlIHNhbXBsZSBub25jZQ==", "http://"+addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	// The literal masked frame from spec §8 scenario 2: fin=1 text opcode, payload "Hello".
	if err := c.SendRaw([]byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}); err != nil {
		t.Fatalf("send raw frame: %v", err)
	}

	select {
	case payload := <-got:
		if payload != "Hello" {
			t.Fatalf("got %q want Hello", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestScenario3LiteralFragmentation(t *testing.T) {
	srv := wsx.NewServer(wsx.DefaultConfig())
	ts := httptest.NewServer(srv)
	defer func() {
		srv.Shutdown()
		ts.Close()
	}()

	got := make(chan string, 1)
	srv.On("/chat", func(id string, payload []byte) { got <- string(payload) })

	addr := ts.Listener.Addr().(*net.TCPAddr).String()
	c, _, err := wstest.Dial(addr, "/chat", "dGhlIHNhbXBsZSBub25jZQ==", "http://"+addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Conn.Close()

	c.SendFrame(false, 0x1, []byte("A"))
	c.SendFrame(true, 0x0, []byte("B"))

	select {
	case payload := <-got:
		if payload != "AB" {
			t.Fatalf("got %q want AB", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
