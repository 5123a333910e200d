package cipher

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// envelopePrefix versions the ciphertext layout: v1:<key id>:<base64(nonce|ct)>
const envelopePrefix = "v1"

// AESGCM is a local AES-256-GCM cipher keyed from configuration. It stands
// in for a hosted KMS in deployments that do not have one; the envelope
// format keeps the two interchangeable.
type AESGCM struct {
	keyID string
	aead  cipher.AEAD
}

// NewAESGCM builds a cipher from a 32-byte key.
func NewAESGCM(keyID string, key []byte) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	return &AESGCM{keyID: keyID, aead: aead}, nil
}

// KeyID returns the configured key identifier.
func (c *AESGCM) KeyID() string { return c.keyID }

// Encrypt seals the plaintext with a random nonce.
func (c *AESGCM) Encrypt(_ context.Context, plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(c.keyID))
	return strings.Join([]string{
		envelopePrefix,
		c.keyID,
		base64.StdEncoding.EncodeToString(sealed),
	}, ":"), nil
}

// Decrypt opens an envelope produced by Encrypt. The key id in the envelope
// must match this cipher's key.
func (c *AESGCM) Decrypt(_ context.Context, ciphertext string) (string, error) {
	parts := strings.SplitN(ciphertext, ":", 3)
	if len(parts) != 3 || parts[0] != envelopePrefix {
		return "", fmt.Errorf("unrecognized ciphertext envelope")
	}
	if parts[1] != c.keyID {
		return "", fmt.Errorf("ciphertext was encrypted under key '%s', cipher holds key '%s'", parts[1], c.keyID)
	}

	sealed, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("malformed ciphertext: too short")
	}

	nonce, ct := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ct, []byte(parts[1]))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret key: %w", err)
	}
	return string(plaintext), nil
}

var _ Cipher = (*AESGCM)(nil)
