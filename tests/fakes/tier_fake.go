package fakes

import (
	"sync"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
)

// FakeTier is an in-memory cache tier. Unlike the real tiers it allows
// seeding a record under an arbitrary slot, which makes legacy and
// tenant-mismatched entries testable.
type FakeTier struct {
	name    string
	source  credential.SourceTier
	entries map[string]credential.CredentialSet

	// Behavior control
	getErr error
	setErr error

	// Call tracking
	deleted []credential.Key

	mu sync.Mutex
}

// NewFakeTier creates an empty fake tier reporting the given name and
// source.
func NewFakeTier(name string, source credential.SourceTier) *FakeTier {
	return &FakeTier{
		name:    name,
		source:  source,
		entries: make(map[string]credential.CredentialSet),
	}
}

// WithEntry seeds a record under its own composite key.
func (f *FakeTier) WithEntry(set credential.CredentialSet) *FakeTier {
	return f.WithEntryAt(set.Key().String(), set)
}

// WithEntryAt seeds a record under an arbitrary slot, tenant tag and slot
// free to disagree.
func (f *FakeTier) WithEntryAt(slot string, set credential.CredentialSet) *FakeTier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[slot] = set
	return f
}

// WithGetError makes every Get fail with err.
func (f *FakeTier) WithGetError(err error) *FakeTier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
	return f
}

// WithSetError makes every Set fail with err.
func (f *FakeTier) WithSetError(err error) *FakeTier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
	return f
}

func (f *FakeTier) Name() string { return f.name }

func (f *FakeTier) Source() credential.SourceTier { return f.source }

func (f *FakeTier) Get(key credential.Key) (credential.CredentialSet, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return credential.CredentialSet{}, false, f.getErr
	}
	set, ok := f.entries[key.String()]
	return set, ok, nil
}

func (f *FakeTier) Set(set credential.CredentialSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[set.Key().String()] = set
	return nil
}

func (f *FakeTier) Delete(key credential.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key.String())
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *FakeTier) Entries() ([]credential.CredentialSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sets := make([]credential.CredentialSet, 0, len(f.entries))
	for _, set := range f.entries {
		sets = append(sets, set)
	}
	return sets, nil
}

func (f *FakeTier) Purge(keepTenant string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cleared := 0
	for slot, set := range f.entries {
		if set.TenantID == keepTenant {
			continue
		}
		delete(f.entries, slot)
		cleared++
	}
	return cleared, nil
}

// Entry returns the record stored under the key, if any.
func (f *FakeTier) Entry(key credential.Key) (credential.CredentialSet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.entries[key.String()]
	return set, ok
}

// Deleted returns the keys passed to Delete, in order.
func (f *FakeTier) Deleted() []credential.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]credential.Key, len(f.deleted))
	copy(out, f.deleted)
	return out
}

// Len reports how many records the tier holds.
func (f *FakeTier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

var _ tier.Tier = (*FakeTier)(nil)
