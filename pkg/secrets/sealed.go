// Package secrets masks key material for logs and seals it at rest.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidKey is returned when the sealing key is not 32 bytes.
var ErrInvalidKey = fmt.Errorf("secrets: key must be %d bytes", chacha20poly1305.KeySize)

type cipherSuite interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// SealedKV encrypts selected keys with XChaCha20-Poly1305 before handing
// them to the wrapped store. Other keys pass through untouched.
type SealedKV struct {
	inner  store.KV
	aead   cipherSuite
	sealed map[string]struct{}
}

var _ store.KV = (*SealedKV)(nil)

// NewSealedKV seals keys (default: the push subscription record).
func NewSealedKV(inner store.KV, key []byte, keys ...string) (*SealedKV, error) {
	if inner == nil {
		return nil, errors.New("secrets: store is required")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		keys = []string{domain.KeySubscription}
	}
	sealed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		sealed[k] = struct{}{}
	}
	return &SealedKV{inner: inner, aead: aead, sealed: sealed}, nil
}

// ParseKey decodes a base64 (std or url) sealing key.
func ParseKey(encoded string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(encoded); err == nil {
			if len(raw) != chacha20poly1305.KeySize {
				return nil, ErrInvalidKey
			}
			return raw, nil
		}
	}
	return nil, errors.New("secrets: key is not valid base64")
}

func (s *SealedKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.inner.Get(ctx, key)
	if err != nil || !s.isSealed(key) {
		return value, err
	}
	raw, err := base64.StdEncoding.DecodeString(string(value))
	if err != nil {
		return nil, fmt.Errorf("secrets: decode %s: %w", key, err)
	}
	size := s.aead.NonceSize()
	if len(raw) < size {
		return nil, fmt.Errorf("secrets: %s ciphertext too short", key)
	}
	plain, err := s.aead.Open(nil, raw[:size], raw[size:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("secrets: decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (s *SealedKV) Set(ctx context.Context, key string, value []byte) error {
	if !s.isSealed(key) {
		return s.inner.Set(ctx, key, value)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("secrets: nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, value, []byte(key))
	return s.inner.Set(ctx, key, []byte(base64.StdEncoding.EncodeToString(out)))
}

func (s *SealedKV) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Unwrap exposes the wrapped store so optional capabilities (watch, close)
// stay reachable.
func (s *SealedKV) Unwrap() store.KV {
	return s.inner
}

func (s *SealedKV) isSealed(key string) bool {
	_, ok := s.sealed[key]
	return ok
}
