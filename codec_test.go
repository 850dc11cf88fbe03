package wsx

import (
	"bytes"
	"math/rand"
	"testing"
)

func maskedFrame(fin bool, op Opcode, payload []byte, key [4]byte) []byte {
	n := len(payload)
	var header []byte
	switch {
	case n <= 125:
		header = []byte{0, byte(0x80 | n)}
	case n <= 0xFFFF:
		header = []byte{0, 0x80 | 126, byte(n >> 8), byte(n)}
	default:
		header = []byte{0, 0x80 | 127, 0, 0, 0, 0, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	}
	if fin {
		header[0] |= 0x80
	}
	header[0] |= byte(op)

	out := append([]byte{}, header...)
	out = append(out, key[:]...)
	masked := make([]byte, n)
	for i := range payload {
		masked[i] = payload[i] ^ key[i%4]
	}
	return append(out, masked...)
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	payload := []byte("Hello")
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}

	// Encode yields an unmasked server frame; set MASK, insert the key and mask the
	// payload so Decode, which requires client masking, accepts it.
	enc := Encode(payload, OpText)
	wire := append([]byte{enc[0], enc[1] | 0x80}, key[:]...)
	for i, b := range enc[2:] {
		wire = append(wire, b^key[i%4])
	}

	frame, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !frame.Fin || frame.Opcode != OpText || frame.PayloadLength != uint64(len(payload)) {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("got %q want %q", frame.Payload, payload)
	}
	if len(frame.Remainder) != 0 {
		t.Fatalf("expected empty remainder, got %d bytes", len(frame.Remainder))
	}
}

func TestSpecScenario2LiteralBytes(t *testing.T) {
	wire := []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}

	frame, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(frame.Payload) != "Hello" {
		t.Fatalf("got %q want Hello", frame.Payload)
	}
}

func TestEncodeLengthEncoding(t *testing.T) {
	cases := []struct {
		name    string
		n       int
		length7 byte
	}{
		{"short", 10, 10},
		{"16bit", 1000, 126},
		{"64bit", 70000, 127},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{'x'}, c.n)
			wire := Encode(payload, OpBinary)
			if wire[0] != 0x80|byte(OpBinary) {
				t.Fatalf("bad header byte: %x", wire[0])
			}
			if wire[1]&0x80 != 0 {
				t.Fatalf("server frame must be unmasked")
			}
			if wire[1]&0x7F != c.length7 {
				t.Fatalf("length field %d, want %d", wire[1]&0x7F, c.length7)
			}
		})
	}
}

func TestDecodeRejectsUnmasked(t *testing.T) {
	wire := []byte{0x81, 0x05, 'H', 'e', 'l', 'l', 'o'}
	_, err := Decode(wire)
	if err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestDecodeWaitingOnShortHeader(t *testing.T) {
	frame, err := Decode([]byte{0x81})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.Waiting {
		t.Fatalf("expected waiting=true")
	}
}

func TestDecodeWaitingOnIncompleteBody(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	wire := maskedFrame(true, OpText, []byte("Hello"), key)

	frame, err := Decode(wire[:len(wire)-2])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.Waiting {
		t.Fatalf("expected waiting=true")
	}
	if !bytes.Equal(frame.Remainder, wire[:len(wire)-2]) {
		t.Fatalf("remainder must equal original input when waiting")
	}
}

func TestDecodeRejects64BitLengthWithNonzeroHighBits(t *testing.T) {
	wire := []byte{0x82, 0xFF, 0, 0, 0, 1, 0, 0, 0, 0, 1, 2, 3, 4}
	_, err := Decode(wire)
	if err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame for nonzero high 32 bits, got %v", err)
	}
}

// TestResegmentationIsOrderIndependent is the property-based test from §8: partitioning
// a valid byte stream into k random chunks must yield the same frame sequence as a
// single-read delivery, for k in [1, len(stream)].
func TestResegmentationIsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var stream []byte
	var wantPayloads [][]byte
	for i := 0; i < 5; i++ {
		payload := make([]byte, rng.Intn(300)+1)
		rng.Read(payload)
		key := [4]byte{byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256))}
		stream = append(stream, maskedFrame(true, OpBinary, payload, key)...)
		wantPayloads = append(wantPayloads, payload)
	}

	for trial := 0; trial < 20; trial++ {
		k := rng.Intn(len(stream)) + 1
		chunks := partition(stream, k, rng)

		var buf []byte
		var got [][]byte
		for _, chunk := range chunks {
			buf = append(buf, chunk...)
			for {
				frame, err := Decode(buf)
				if err != nil {
					t.Fatalf("decode error mid-stream: %v", err)
				}
				if frame.Waiting {
					buf = frame.Remainder
					break
				}
				got = append(got, frame.Payload)
				buf = frame.Remainder
				if len(buf) == 0 {
					break
				}
			}
		}

		if len(got) != len(wantPayloads) {
			t.Fatalf("trial %d: got %d frames, want %d", trial, len(got), len(wantPayloads))
		}
		for i := range got {
			if !bytes.Equal(got[i], wantPayloads[i]) {
				t.Fatalf("trial %d frame %d: payload mismatch", trial, i)
			}
		}
	}
}

func partition(b []byte, k int, rng *rand.Rand) [][]byte {
	if k > len(b) {
		k = len(b)
	}
	if k < 1 {
		k = 1
	}
	cuts := make([]int, 0, k-1)
	for i := 0; i < k-1; i++ {
		cuts = append(cuts, 1+rng.Intn(len(b)-1))
	}
	cuts = append(cuts, 0, len(b))

	for i := 1; i < len(cuts); i++ {
		for j := i; j > 0 && cuts[j] < cuts[j-1]; j-- {
			cuts[j], cuts[j-1] = cuts[j-1], cuts[j]
		}
	}

	out := make([][]byte, 0, len(cuts)-1)
	for i := 1; i < len(cuts); i++ {
		out = append(out, b[cuts[i-1]:cuts[i]])
	}
	return out
}
