package webpush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	saltSize     = 16
	authSize     = 16
	keySize      = 65
	tagSize      = 16
	headerMinLen = saltSize + 4 + 1

	// ContentEncoding is the only payload encoding accepted by the receiver.
	ContentEncoding = "aes128gcm"
)

var (
	ErrShortPayload  = errors.New("webpush: payload shorter than header")
	ErrRecordSize    = errors.New("webpush: invalid record size")
	ErrSenderKey     = errors.New("webpush: invalid sender key")
	ErrRecordPadding = errors.New("webpush: invalid record padding")
	ErrDecryptRecord = errors.New("webpush: record authentication failed")
)

var (
	infoWebPush    = []byte("WebPush: info\x00")
	infoContentKey = []byte("Content-Encoding: aes128gcm\x00")
	infoNonce      = []byte("Content-Encoding: nonce\x00")
)

// Decrypt opens an aes128gcm message addressed to the subscription owning
// priv and auth.
func Decrypt(priv *ecdh.PrivateKey, auth, body []byte) ([]byte, error) {
	if len(body) < headerMinLen {
		return nil, ErrShortPayload
	}
	salt := body[:saltSize]
	rs := binary.BigEndian.Uint32(body[saltSize : saltSize+4])
	idlen := int(body[saltSize+4])
	offset := headerMinLen + idlen
	if len(body) < offset {
		return nil, ErrShortPayload
	}
	if rs <= tagSize+1 {
		return nil, ErrRecordSize
	}
	if idlen != keySize {
		return nil, ErrSenderKey
	}
	senderPub, err := ecdh.P256().NewPublicKey(body[headerMinLen:offset])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSenderKey, err)
	}

	cek, baseNonce, err := deriveKeys(priv, senderPub, auth, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	records := body[offset:]
	if len(records) == 0 {
		return nil, ErrShortPayload
	}
	var out bytes.Buffer
	for seq := uint64(0); len(records) > 0; seq++ {
		size := int(rs)
		if size > len(records) {
			size = len(records)
		}
		record := records[:size]
		records = records[size:]

		plain, err := gcm.Open(nil, recordNonce(baseNonce, seq), record, nil)
		if err != nil {
			return nil, ErrDecryptRecord
		}
		content, err := unpad(plain, len(records) == 0)
		if err != nil {
			return nil, err
		}
		out.Write(content)
	}
	return out.Bytes(), nil
}

func deriveKeys(priv *ecdh.PrivateKey, senderPub *ecdh.PublicKey, auth, salt []byte) (cek, nonce []byte, err error) {
	shared, err := priv.ECDH(senderPub)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: ecdh: %w", err)
	}

	keyInfo := make([]byte, 0, len(infoWebPush)+2*keySize)
	keyInfo = append(keyInfo, infoWebPush...)
	keyInfo = append(keyInfo, priv.PublicKey().Bytes()...)
	keyInfo = append(keyInfo, senderPub.Bytes()...)

	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, auth, keyInfo), ikm); err != nil {
		return nil, nil, err
	}
	cek = make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, infoContentKey), cek); err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, 12)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, infoNonce), nonce); err != nil {
		return nil, nil, err
	}
	return cek, nonce, nil
}

func recordNonce(base []byte, seq uint64) []byte {
	nonce := append([]byte(nil), base...)
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], seq)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-8+i] ^= counter[i]
	}
	return nonce
}

// unpad strips trailing zero padding and the record delimiter: 0x02 on the
// last record, 0x01 on the others.
func unpad(plain []byte, last bool) ([]byte, error) {
	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, ErrRecordPadding
	}
	want := byte(0x01)
	if last {
		want = 0x02
	}
	if plain[i] != want {
		return nil, ErrRecordPadding
	}
	return plain[:i], nil
}
