// Package wstest is a minimal client-side WebSocket implementation used only to drive
// this module's server from the wire side in tests. It is not a public API: client-mode
// operation is not a feature of this module.
//
// Same handshake request shape and masked-frame send/receive logic as a standard
// RFC 6455 client, trimmed to what tests need (arbitrary-chunk writes to exercise
// re-segmentation, raw frame injection for protocol-violation scenarios).
package wstest

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Client is a bare-bones masked-frame WebSocket client for tests.
type Client struct {
	Conn net.Conn
}

// Dial performs the HTTP Upgrade handshake against addr/path and returns a connected
// Client. key is the literal Sec-WebSocket-Key to send (callers pass the RFC 6455 §1.2
// worked example key to reproduce the literal scenario in spec §8).
func Dial(addr, path, key, origin string) (*Client, *http.Response, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	req := "GET " + path + " HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Origin: " + origin + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n\r\n"

	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, nil, err
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, &http.Request{Method: "GET"})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	return &Client{Conn: conn}, resp, nil
}

// SendFrame writes one masked client->server frame, fin/opcode/payload chosen by the
// caller, so tests can construct fragmentation and protocol-violation sequences exactly.
func (c *Client) SendFrame(fin bool, opcode byte, payload []byte) error {
	var header byte
	if fin {
		header |= 0x80
	}
	header |= opcode & 0x0F

	buf := []byte{header}

	n := len(payload)
	switch {
	case n <= 125:
		buf = append(buf, 0x80|byte(n))
	case n <= 0xFFFF:
		buf = append(buf, 0x80|126)
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(n))
		buf = append(buf, ext...)
	default:
		buf = append(buf, 0x80|127)
		ext := make([]byte, 8)
		binary.BigEndian.PutUint64(ext, uint64(n))
		buf = append(buf, ext...)
	}

	key := make([]byte, 4)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	buf = append(buf, key...)

	masked := make([]byte, n)
	for i := range payload {
		masked[i] = payload[i] ^ key[i%4]
	}
	buf = append(buf, masked...)

	_, err := c.Conn.Write(buf)
	return err
}

// SendRaw writes b to the wire unmodified, for tests that need to inject bytes in
// arbitrary chunks to exercise §4.2's re-segmentation handling.
func (c *Client) SendRaw(b []byte) error {
	_, err := c.Conn.Write(b)
	return err
}

// ReadFrame reads exactly one server->client frame (unmasked, per §4.1) and returns its
// opcode and payload.
func (c *Client) ReadFrame() (opcode byte, payload []byte, err error) {
	header := make([]byte, 2)
	if _, err = readFull(c.Conn, header); err != nil {
		return 0, nil, err
	}

	opcode = header[0] & 0x0F
	length7 := header[1] & 0x7F

	var n int
	switch length7 {
	case 126:
		ext := make([]byte, 2)
		if _, err = readFull(c.Conn, ext); err != nil {
			return 0, nil, err
		}
		n = int(binary.BigEndian.Uint16(ext))
	case 127:
		ext := make([]byte, 8)
		if _, err = readFull(c.Conn, ext); err != nil {
			return 0, nil, err
		}
		n = int(binary.BigEndian.Uint64(ext))
	default:
		n = int(length7)
	}

	payload = make([]byte, n)
	if _, err = readFull(c.Conn, payload); err != nil {
		return 0, nil, err
	}

	return opcode, payload, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// BuildUpgradeRequest renders the literal handshake request from spec §8 scenario 1,
// for byte-exact tests.
func BuildUpgradeRequest(host, path, key, version string) string {
	return fmt.Sprintf(
		"GET %s HTTP/1.1\r\nHost: %s\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nOrigin: http://%s\r\nSec-WebSocket-Version: %s\r\nSec-WebSocket-Key: %s\r\n\r\n",
		path, host, strings.TrimSuffix(host, ":0"), version, key,
	)
}

// BuildUpgradeRequestNoOrigin is BuildUpgradeRequest without an Origin header, for
// exercising the tightened origin policy (missing Origin is rejected, §9 decision 3).
func BuildUpgradeRequestNoOrigin(host, path, key, version string) string {
	return fmt.Sprintf(
		"GET %s HTTP/1.1\r\nHost: %s\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Version: %s\r\nSec-WebSocket-Key: %s\r\n\r\n",
		path, host, version, key,
	)
}

// RawHandshake dials addr, writes req verbatim, and parses the HTTP response, for tests
// that need to inspect rejection status codes/headers without a successful upgrade.
func RawHandshake(addr, req string) (*http.Response, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(req)); err != nil {
		return nil, err
	}

	br := bufio.NewReader(conn)
	return http.ReadResponse(br, &http.Request{Method: "GET"})
}
