// Package handle implements the reversible public handle for external account
// identifiers. A handle is safe to expose to the owning client: without the key
// a valid handle can be neither forged nor enumerated, and the raw identifier's
// structure is not revealed.
package handle

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var (
	ErrInvalidKey    = errors.New("handle key must be exactly 32 bytes")
	ErrInvalidHandle = errors.New("invalid account handle")
)

// Codec encodes raw external account identifiers into opaque, authenticated
// handles and decodes them back. Encoding is deterministic: the GCM nonce is
// derived from the identifier itself (SIV-style), so the same identifier always
// yields the same handle and distinct identifiers can never collide.
type Codec struct {
	aead     cipher.AEAD
	nonceKey []byte
}

// NewCodec creates a codec from a 32-byte key. The key is split into an
// AES-256-GCM key half and a nonce-derivation half via HKDF-like expansion.
func NewCodec(key string) (*Codec, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	encKey := sha256.Sum256(append([]byte("handle-enc:"), key...))
	nonceKey := sha256.Sum256(append([]byte("handle-nonce:"), key...))

	block, err := aes.NewCipher(encKey[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Codec{aead: aead, nonceKey: nonceKey[:]}, nil
}

// Encode turns a raw external account identifier into its public handle.
func (c *Codec) Encode(rawID string) (string, error) {
	if rawID == "" {
		return "", ErrInvalidHandle
	}

	nonce := c.deriveNonce(rawID)
	sealed := c.aead.Seal(nil, nonce, []byte(rawID), nil)

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode recovers the raw identifier from a handle. Tampered, truncated, or
// otherwise malformed handles fail with ErrInvalidHandle; a wrong identifier is
// never returned.
func (c *Codec) Decode(h string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(h)
	if err != nil {
		return "", ErrInvalidHandle
	}

	ns := c.aead.NonceSize()
	if len(raw) <= ns {
		return "", ErrInvalidHandle
	}

	plaintext, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrInvalidHandle
	}
	return string(plaintext), nil
}

func (c *Codec) deriveNonce(rawID string) []byte {
	mac := hmac.New(sha256.New, c.nonceKey)
	mac.Write([]byte(rawID))
	return mac.Sum(nil)[:c.aead.NonceSize()]
}
