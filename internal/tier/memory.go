package tier

import (
	"fmt"
	"sync"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/secure"
)

// Memory is the process-memory backup tier, the last-resort fast path when
// every other tier is unavailable. Records live for the lifetime of the
// process; the secret key of each record is held in a memguard enclave so
// it stays encrypted at rest in memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	meta   credential.CredentialSet // SecretKey always empty here
	secret *secure.Buffer
}

// NewMemory creates an empty process-memory tier.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Source() credential.SourceTier { return credential.SourceMemory }

// Get returns the record for the key, decrypting the secret out of its
// enclave.
func (m *Memory) Get(key credential.Key) (credential.CredentialSet, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key.String()]
	m.mu.RUnlock()
	if !ok {
		return credential.CredentialSet{}, false, nil
	}

	secretKey, err := entry.secret.Reveal()
	if err != nil {
		return credential.CredentialSet{}, false, fmt.Errorf("memory backup: enclave open for %s: %w", key, err)
	}

	set := entry.meta
	set.SecretKey = secretKey
	return set, true, nil
}

// Set stores the record, moving the secret into a fresh enclave and
// destroying any enclave previously held in the slot.
func (m *Memory) Set(set credential.CredentialSet) error {
	slot := set.Key().String()

	meta := set
	meta.SecretKey = ""

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[slot]; ok {
		old.secret.Destroy()
	}
	m.entries[slot] = memoryEntry{
		meta:   meta,
		secret: secure.NewString(set.SecretKey),
	}
	return nil
}

// Delete removes the record and destroys its enclave.
func (m *Memory) Delete(key credential.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key.String()]; ok {
		entry.secret.Destroy()
		delete(m.entries, key.String())
	}
	return nil
}

// Purge deletes every entry whose tenant tag differs from keepTenant and
// destroys the enclaves of the removed records.
func (m *Memory) Purge(keepTenant string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := 0
	for slot, entry := range m.entries {
		if entry.meta.TenantID == keepTenant {
			continue
		}
		entry.secret.Destroy()
		delete(m.entries, slot)
		cleared++
	}
	return cleared, nil
}

// Entries lists held records without opening any enclave; secret keys are
// left empty. The guard only inspects tenant tags.
func (m *Memory) Entries() ([]credential.CredentialSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sets := make([]credential.CredentialSet, 0, len(m.entries))
	for _, entry := range m.entries {
		sets = append(sets, entry.meta)
	}
	return sets, nil
}

var _ Tier = (*Memory)(nil)
