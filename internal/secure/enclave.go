// Package secure wraps memguard enclaves so secret keys held in process
// memory stay encrypted at rest and out of swap. The process-memory backup
// tier stores every secret through this package.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds one secret in an encrypted memguard enclave. The zero value
// is not usable; create instances with NewBuffer or NewString.
type Buffer struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy calls and blocks use after destroy
	destroyed bool
}

// NewBuffer copies data into a protected memory region. The enclave
// encrypts the bytes (XSalsa20Poly1305), attempts to mlock them and guards
// the pages. The caller should zero its own copy afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// NewString is NewBuffer for string secrets.
func NewString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// Open decrypts the enclave into a locked buffer. The caller MUST call
// Destroy() on the returned buffer when done to wipe the plaintext.
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return b.enclave.Open()
}

// Reveal returns the secret as a string. The plaintext copy handed back is
// an ordinary Go string; callers use it immediately and let it go.
func (b *Buffer) Reveal() (string, error) {
	locked, err := b.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	// locked.String() aliases the guarded pages, which Destroy wipes.
	// The []byte conversion copies into ordinary memory first.
	return string(locked.Bytes()), nil
}

// Destroy marks the buffer unusable. Idempotent. The encrypted enclave data
// is garbage collected; call memguard.Purge() at process exit for a full
// sweep.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
