package fakes

import (
	"context"
	"errors"
	"strings"

	"github.com/sugarbait/phaeton-credsync/internal/cipher"
)

// FakeCipher is a reversible marker-encoding cipher for tests. Ciphertext
// looks like "enc(<keyID>:<plaintext>)", so assertions can check that a
// value went through encryption without any real cryptography.
type FakeCipher struct {
	ID         string
	EncryptErr error
	DecryptErr error
}

// NewFakeCipher creates a fake cipher with the given key id.
func NewFakeCipher(keyID string) *FakeCipher {
	return &FakeCipher{ID: keyID}
}

func (f *FakeCipher) KeyID() string { return f.ID }

func (f *FakeCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if f.EncryptErr != nil {
		return "", f.EncryptErr
	}
	return "enc(" + f.ID + ":" + plaintext + ")", nil
}

func (f *FakeCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if f.DecryptErr != nil {
		return "", f.DecryptErr
	}
	inner, ok := strings.CutPrefix(ciphertext, "enc(")
	if !ok || !strings.HasSuffix(inner, ")") {
		return "", errors.New("fake cipher: malformed ciphertext")
	}
	inner = strings.TrimSuffix(inner, ")")
	keyID, plaintext, ok := strings.Cut(inner, ":")
	if !ok {
		return "", errors.New("fake cipher: malformed ciphertext")
	}
	if keyID != f.ID {
		return "", errors.New("fake cipher: unknown key id " + keyID)
	}
	return plaintext, nil
}

var _ cipher.Cipher = (*FakeCipher)(nil)
