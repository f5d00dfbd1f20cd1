package vapid

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

func TestDecodeKeyRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 16, 32, 65} {
		raw := make([]byte, size)
		if _, err := rand.Read(raw); err != nil {
			t.Fatalf("rand: %v", err)
		}
		got, err := DecodeKey(EncodeKey(raw))
		if err != nil {
			t.Fatalf("size %d: decode error %v", size, err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
	}
}

func TestDecodeKeyAcceptsPaddedAndURLAlphabet(t *testing.T) {
	got, err := DecodeKey("-_8=")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, []byte{0xfb, 0xff}) {
		t.Fatalf("unexpected bytes %x", got)
	}

	got, err = DecodeKey("BASE64URLKEYDATA")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(got))
	}
}

func TestDecodeKeyRejectsMalformed(t *testing.T) {
	for _, input := range []string{"A", "ab$d", "abc=d"} {
		_, err := DecodeKey(input)
		if !errors.Is(err, domain.ErrInvalidKeyEncoding) {
			t.Fatalf("%q: expected invalid key encoding, got %v", input, err)
		}
	}
}
