package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"testing"
	"time"

	"golang.org/x/crypto/hkdf"
)

// testSender plays the application server: it signs VAPID tokens and
// encrypts payloads for a subscription.
type testSender struct {
	signing *ecdsa.PrivateKey
}

func newTestSender(t *testing.T) *testSender {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("vapid key: %v", err)
	}
	return &testSender{signing: key}
}

func (s *testSender) publicKey(t *testing.T) []byte {
	t.Helper()
	pub, err := s.signing.PublicKey.ECDH()
	if err != nil {
		t.Fatalf("ecdh public: %v", err)
	}
	return pub.Bytes()
}

func (s *testSender) authorization(t *testing.T, aud string, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT","alg":"ES256"}`))
	claims, _ := json.Marshal(jwtClaims{Aud: aud, Exp: exp.Unix(), Sub: "mailto:ops@example.com"})
	payload := base64.RawURLEncoding.EncodeToString(claims)
	digest := sha256.Sum256([]byte(header + "." + payload))
	r, sv, err := ecdsa.Sign(rand.Reader, s.signing, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	sv.FillBytes(sig[32:])
	token := header + "." + payload + "." + base64.RawURLEncoding.EncodeToString(sig)
	return "vapid t=" + token + ", k=" + base64.RawURLEncoding.EncodeToString(s.publicKey(t))
}

// encrypt produces an aes128gcm body for the subscription keys, splitting
// plaintext into records of at most rs bytes of ciphertext.
func encrypt(t *testing.T, p256dh, auth, plaintext []byte, rs uint32) []byte {
	t.Helper()
	uaPub, err := ecdh.P256().NewPublicKey(p256dh)
	if err != nil {
		t.Fatalf("ua public: %v", err)
	}
	asPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("as key: %v", err)
	}
	shared, err := asPriv.ECDH(uaPub)
	if err != nil {
		t.Fatalf("ecdh: %v", err)
	}
	salt := make([]byte, saltSize)
	rand.Read(salt)

	info := append(append(append([]byte{}, infoWebPush...), p256dh...), asPriv.PublicKey().Bytes()...)
	ikm := make([]byte, 32)
	io.ReadFull(hkdf.New(sha256.New, shared, auth, info), ikm)
	cek := make([]byte, 16)
	io.ReadFull(hkdf.New(sha256.New, ikm, salt, infoContentKey), cek)
	nonce := make([]byte, 12)
	io.ReadFull(hkdf.New(sha256.New, ikm, salt, infoNonce), nonce)

	block, _ := aes.NewCipher(cek)
	gcm, _ := cipher.NewGCM(block)

	out := make([]byte, 0, len(plaintext)+128)
	out = append(out, salt...)
	var rsBytes [4]byte
	binary.BigEndian.PutUint32(rsBytes[:], rs)
	out = append(out, rsBytes[:]...)
	out = append(out, byte(keySize))
	out = append(out, asPriv.PublicKey().Bytes()...)

	chunk := int(rs) - tagSize - 1
	for seq := uint64(0); ; seq++ {
		n := chunk
		if n > len(plaintext) {
			n = len(plaintext)
		}
		last := n == len(plaintext)
		record := append([]byte{}, plaintext[:n]...)
		plaintext = plaintext[n:]
		if last {
			record = append(record, 0x02)
		} else {
			record = append(record, 0x01)
		}
		out = append(out, gcm.Seal(nil, recordNonce(nonce, seq), record, nil)...)
		if last {
			break
		}
	}
	return out
}
