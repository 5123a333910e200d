// Package cipher defines the encryption capability consumed by the
// credential writer. Secret keys are encrypted through a Cipher before they
// reach the durable store and decrypted on the way back; cache tiers hold
// the plaintext-for-local-use copy.
package cipher

import (
	"context"
)

// Cipher encrypts and decrypts secret key material. Implementations may
// call out to an external KMS, so both operations take a context.
type Cipher interface {
	// KeyID identifies the key the cipher currently encrypts with. It is
	// embedded in the ciphertext envelope so key rotation is detectable.
	KeyID() string

	// Encrypt returns an opaque ciphertext envelope for the plaintext.
	Encrypt(ctx context.Context, plaintext string) (string, error)

	// Decrypt reverses Encrypt. It must fail loudly on a ciphertext
	// produced under an unknown key id rather than return garbage.
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}
