package wsx

import (
	"log/slog"
	"time"
)

// Encoding selects how opcode-1 (text) payloads are decoded for delivery to application
// code. utf8, ascii and binary deliver the payload bytes unmodified; base64, hex, utf16le
// and ucs2 are applied as a byte transcode. No encoding validates the payload.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf8"
	EncodingASCII   Encoding = "ascii"
	EncodingBase64  Encoding = "base64"
	EncodingHex     Encoding = "hex"
	EncodingBinary  Encoding = "binary"
	EncodingUTF16LE Encoding = "utf16le"
	EncodingUCS2    Encoding = "ucs2"
)

// Config holds every tunable named in §6. Zero-value Config is not valid; use
// DefaultConfig and override individual fields, following ws-mesh's
// DefaultServerConfig()/DefaultClientConfig() pattern (pkg/ws/server.go, client.go).
type Config struct {
	// AllowOrigin is nil for same-host-only, or a list containing "*" or exact origins.
	AllowOrigin []string
	Encoding    Encoding
	LimitByIP   int
	MaxPayload  int64
	PingDelay   time.Duration
	PongTimeout time.Duration

	// SessionExpires controls sticky-identity cookie lifetime; < 1 disables reuse.
	SessionExpires time.Duration

	// RejectRSV enables strict RSV1/2/3 rejection, off by default for
	// compatibility with peers that negotiate extensions using those bits.
	RejectRSV bool

	Logger *slog.Logger
}

// DefaultConfig returns the defaults enumerated in §6.
func DefaultConfig() Config {
	return Config{
		AllowOrigin:    nil,
		Encoding:       EncodingUTF8,
		LimitByIP:      256,
		MaxPayload:     2_621_440,
		PingDelay:      180 * time.Second,
		PongTimeout:    5 * time.Second,
		SessionExpires: 12 * time.Hour,
		RejectRSV:      false,
		Logger:         slog.Default(),
	}
}

func (c *Config) normalize() {
	if c.Encoding == "" {
		c.Encoding = EncodingUTF8
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
