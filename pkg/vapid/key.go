// Package vapid decodes and encodes application server keys.
package vapid

import (
	"encoding/base64"
	"strings"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

// DecodeKey converts a base64url string (padding optional) to raw bytes.
// Malformed input yields an InvalidKeyEncoding error.
func DecodeKey(encoded string) ([]byte, error) {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimSpace(encoded))
	if rem := len(normalized) % 4; rem != 0 {
		normalized += strings.Repeat("=", 4-rem)
	}
	raw, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, domain.InvalidKeyEncoding(err)
	}
	return raw, nil
}

// EncodeKey is the inverse of DecodeKey, without padding.
func EncodeKey(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
