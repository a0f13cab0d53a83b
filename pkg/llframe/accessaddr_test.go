package llframe

import (
	"bytes"
	"math/bits"
	"testing"
)

// fixedReader replays a fixed sequence of 4-byte words, then falls back to a
// valid word forever, letting tests force a specific number of rejections.
type fixedReader struct {
	words [][]byte
	i     int
}

func (r *fixedReader) Read(p []byte) (int, error) {
	var word []byte
	if r.i < len(r.words) {
		word = r.words[r.i]
		r.i++
	} else {
		word = bytes.Repeat([]byte{0x42}, len(p))
	}
	n := copy(p, word)
	return n, nil
}

func TestGenerateAccessAddress_RejectsInvalid(t *testing.T) {
	// First word is the advertising address (must be rejected), second is
	// all-zero (must be rejected), third is a valid candidate.
	r := &fixedReader{words: [][]byte{
		{0xD6, 0xBE, 0x89, 0x8E}, // little-endian 0x8E89BED6
		{0x00, 0x00, 0x00, 0x00},
		{0x01, 0x02, 0x03, 0xAA}, // msb6 of 0xAA = 0b101010 -> many transitions
	}}

	aa, err := GenerateAccessAddress(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isValidAccessAddress(aa) {
		t.Errorf("generated address failed validity check: %#x", aa)
	}
	if r.i != 3 {
		t.Errorf("expected generator to consume exactly 3 words, consumed %d", r.i)
	}
}

func TestIsValidAccessAddress_Invariants(t *testing.T) {
	cases := []struct {
		name  string
		value uint32
		valid bool
	}{
		{"advertising address", AdvertisingAccessAddress, false},
		{"all zero", 0x00000000, false},
		{"all one", 0xFFFFFFFF, false},
		{"insufficient transitions", 0x00000001 | (0b000001 << 26), false},
		{"sufficient transitions", 0x00000000 | (0b101010 << 26), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := isValidAccessAddress(c.value)
			if got != c.valid {
				t.Errorf("isValidAccessAddress(%#x) = %v, want %v", c.value, got, c.valid)
			}
		})
	}
}

func TestGenerateAccessAddress_SatisfiesAllConstraints(t *testing.T) {
	// Exercise with real randomness across many draws: every accepted
	// value must satisfy all three published constraints.
	for i := 0; i < 200; i++ {
		aa, err := GenerateAccessAddress(DefaultRand)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if aa == AdvertisingAccessAddress {
			t.Fatalf("generated the reserved advertising address")
		}
		if aa == 0 || aa == 0xFFFFFFFF {
			t.Fatalf("generated a degenerate address: %#x", aa)
		}
		msb6 := (aa >> 26) & 0x3F
		if transitions := bits.OnesCount32(msb6 ^ (msb6 >> 1)); transitions < 2 {
			t.Fatalf("generated address with insufficient bit transitions: %#x (transitions=%d)", aa, transitions)
		}
	}
}

func TestGenerateCRCInit_Is24Bit(t *testing.T) {
	crc, err := GenerateCRCInit(DefaultRand)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if crc > 0xFFFFFF {
		t.Errorf("crc init exceeds 24 bits: %#x", crc)
	}
}
