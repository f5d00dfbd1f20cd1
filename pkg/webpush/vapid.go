package webpush

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"
)

// Authorization failures map to 401; ErrForbidden maps to 403.
var (
	ErrUnauthorized = errors.New("webpush: unauthorized")
	ErrForbidden    = errors.New("webpush: forbidden")
)

const maxTokenLifetime = 24 * time.Hour

type jwtHeader struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

type jwtClaims struct {
	Aud string `json:"aud"`
	Exp int64  `json:"exp"`
	Sub string `json:"sub,omitempty"`
}

// VerifyAuthorization checks an `Authorization: vapid t=<jwt>, k=<key>`
// header against the subscription's application server key and origin.
func VerifyAuthorization(header, origin string, serverKey []byte, now time.Time) error {
	token, key, err := parseVapidHeader(header)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(key, serverKey) != 1 {
		return fmt.Errorf("%w: key does not match subscription", ErrForbidden)
	}
	pub, err := ecdsaPublicKey(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: malformed token", ErrUnauthorized)
	}
	var hdr jwtHeader
	if err := decodeSegment(parts[0], &hdr); err != nil || hdr.Alg != "ES256" {
		return fmt.Errorf("%w: unsupported token header", ErrUnauthorized)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(sig) != 64 {
		return fmt.Errorf("%w: malformed signature", ErrUnauthorized)
	}
	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return fmt.Errorf("%w: bad signature", ErrUnauthorized)
	}

	var claims jwtClaims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return fmt.Errorf("%w: malformed claims", ErrUnauthorized)
	}
	exp := time.Unix(claims.Exp, 0)
	if !exp.After(now) {
		return fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	if exp.After(now.Add(maxTokenLifetime)) {
		return fmt.Errorf("%w: token lifetime exceeds 24h", ErrUnauthorized)
	}
	if strings.TrimRight(claims.Aud, "/") != origin {
		return fmt.Errorf("%w: audience %q does not match %q", ErrForbidden, claims.Aud, origin)
	}
	return nil
}

// Origin returns scheme://host of an endpoint URL.
func Origin(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("webpush: endpoint %q is not absolute", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}

func parseVapidHeader(header string) (token string, key []byte, err error) {
	scheme, params, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "vapid") {
		return "", nil, fmt.Errorf("%w: missing vapid authorization", ErrUnauthorized)
	}
	var rawKey string
	for _, part := range strings.Split(params, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(name) {
		case "t":
			token = strings.TrimSpace(value)
		case "k":
			rawKey = strings.TrimSpace(value)
		}
	}
	if token == "" || rawKey == "" {
		return "", nil, fmt.Errorf("%w: vapid header needs t and k", ErrUnauthorized)
	}
	key, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(rawKey, "="))
	if err != nil {
		return "", nil, fmt.Errorf("%w: malformed k", ErrUnauthorized)
	}
	return token, key, nil
}

// ecdsaPublicKey validates an uncompressed P-256 point.
func ecdsaPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[1:33]),
		Y:     new(big.Int).SetBytes(raw[33:65]),
	}, nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
