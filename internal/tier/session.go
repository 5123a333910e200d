package tier

import (
	"sync"
	"time"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

// DefaultSessionTTL bounds how long a session cache entry stays valid
// without a refresh from a higher tier.
const DefaultSessionTTL = 12 * time.Hour

// Session is the per-session cache tier: an in-process map whose entries
// expire after a TTL, mirroring the lifetime of a browser session in the
// hosting CRM. Expired entries behave exactly like absent ones.
type Session struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]sessionEntry

	// now is swappable for expiry tests
	now func() time.Time
}

type sessionEntry struct {
	set       credential.CredentialSet
	expiresAt time.Time
}

// NewSession creates a session tier. A zero ttl selects DefaultSessionTTL.
func NewSession(ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Session{
		ttl:     ttl,
		entries: make(map[string]sessionEntry),
		now:     time.Now,
	}
}

func (s *Session) Name() string { return "session" }

func (s *Session) Source() credential.SourceTier { return credential.SourceSession }

// Get returns the record for the key if present and unexpired.
func (s *Session) Get(key credential.Key) (credential.CredentialSet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key.String()]
	if !ok || s.now().After(entry.expiresAt) {
		return credential.CredentialSet{}, false, nil
	}
	return entry.set, true, nil
}

// Set stores the record and restarts its TTL.
func (s *Session) Set(set credential.CredentialSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[set.Key().String()] = sessionEntry{
		set:       set,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Delete removes the record for the key.
func (s *Session) Delete(key credential.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key.String())
	return nil
}

// Purge deletes every entry whose tenant tag differs from keepTenant.
func (s *Session) Purge(keepTenant string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for slot, entry := range s.entries {
		if entry.set.TenantID == keepTenant {
			continue
		}
		delete(s.entries, slot)
		cleared++
	}
	return cleared, nil
}

// Entries lists unexpired records. Expired slots are dropped on the way.
func (s *Session) Entries() ([]credential.CredentialSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sets := make([]credential.CredentialSet, 0, len(s.entries))
	for slot, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, slot)
			continue
		}
		sets = append(sets, entry.set)
	}
	return sets, nil
}

var _ Tier = (*Session)(nil)
