package tier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/logging"
)

// DefaultKeyringService is the OS keychain service name under which local
// secret keys are parked.
const DefaultKeyringService = "phaeton-credsync"

// Local is the device-local cache tier. Non-sensitive fields and the
// last-tenant marker live in a JSON index file under the cache directory;
// the secret key itself is stored in the OS keychain (macOS Keychain or
// Linux Secret Service) via go-keyring, one item per owner/tenant slot.
//
// Legacy records written before tenant tagging carry an empty tenant_id in
// the index. They are never returned for a composite-key Get and are purged
// by the tenant guard.
type Local struct {
	dir     string
	service string
	logger  *logging.Logger
	mu      sync.Mutex
}

// localEntry is the on-disk shape of one index slot. The secret key is
// never written here; it lives in the keychain.
type localEntry struct {
	OwnerID          string    `json:"owner_id"`
	TenantID         string    `json:"tenant_id"`
	PrimaryAgentID   string    `json:"primary_agent_id"`
	SecondaryAgentID string    `json:"secondary_agent_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type localIndex struct {
	LastTenant string                `json:"last_tenant,omitempty"`
	Entries    map[string]localEntry `json:"entries"`
}

// NewLocal creates the local tier rooted at dir, using service as the
// keychain service name. Empty arguments select the defaults.
func NewLocal(dir, service string, logger *logging.Logger) *Local {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	if service == "" {
		service = DefaultKeyringService
	}
	return &Local{dir: dir, service: service, logger: logger}
}

// DefaultCacheDir returns the directory holding the local credential index.
func DefaultCacheDir() string {
	if override := os.Getenv("CREDSYNC_CACHE_DIR"); override != "" {
		return override
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "credsync", "cache")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "credsync", "cache")
	}

	return filepath.Join(os.TempDir(), "credsync", "cache")
}

func (l *Local) Name() string { return "local" }

func (l *Local) Source() credential.SourceTier { return credential.SourceLocal }

// Get returns the record for the composite key. A slot whose keychain item
// has gone missing is treated as absent.
func (l *Local) Get(key credential.Key) (credential.CredentialSet, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.readIndex()
	if err != nil {
		return credential.CredentialSet{}, false, err
	}

	entry, ok := idx.Entries[key.String()]
	if !ok {
		return credential.CredentialSet{}, false, nil
	}

	secret, err := keyring.Get(l.service, key.String())
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			l.logger.Debug("local cache: index entry for %s has no keychain item, treating as absent", key)
			return credential.CredentialSet{}, false, nil
		}
		return credential.CredentialSet{}, false, fmt.Errorf("keychain read for %s: %w", key, err)
	}

	return credential.CredentialSet{
		OwnerID:          entry.OwnerID,
		TenantID:         entry.TenantID,
		SecretKey:        secret,
		PrimaryAgentID:   entry.PrimaryAgentID,
		SecondaryAgentID: entry.SecondaryAgentID,
		UpdatedAt:        entry.UpdatedAt,
	}, true, nil
}

// Set stores the record, keychain item first so a failed secret write never
// leaves an index entry pointing at nothing.
func (l *Local) Set(set credential.CredentialSet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot := set.Key().String()
	if err := keyring.Set(l.service, slot, set.SecretKey); err != nil {
		return fmt.Errorf("keychain write for %s: %w", slot, err)
	}

	idx, err := l.readIndex()
	if err != nil {
		return err
	}
	idx.Entries[slot] = localEntry{
		OwnerID:          set.OwnerID,
		TenantID:         set.TenantID,
		PrimaryAgentID:   set.PrimaryAgentID,
		SecondaryAgentID: set.SecondaryAgentID,
		UpdatedAt:        set.UpdatedAt,
	}
	return l.writeIndex(idx)
}

// Delete removes the index slot and its keychain item.
func (l *Local) Delete(key credential.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.deleteSlot(key.String())
}

func (l *Local) deleteSlot(slot string) error {
	idx, err := l.readIndex()
	if err != nil {
		return err
	}
	if _, ok := idx.Entries[slot]; !ok {
		return nil
	}
	delete(idx.Entries, slot)

	if err := keyring.Delete(l.service, slot); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		l.logger.Warn("local cache: keychain delete for %s failed: %v", slot, err)
	}
	return l.writeIndex(idx)
}

// Purge deletes every slot whose tenant tag differs from keepTenant.
// Legacy slots written before tenant tagging carry an empty tag and are
// always removed.
func (l *Local) Purge(keepTenant string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.readIndex()
	if err != nil {
		return 0, err
	}

	cleared := 0
	for slot, entry := range idx.Entries {
		if entry.TenantID == keepTenant {
			continue
		}
		delete(idx.Entries, slot)
		if err := keyring.Delete(l.service, slot); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			l.logger.Warn("local cache: keychain delete for %s failed: %v", slot, err)
		}
		cleared++
	}
	if cleared == 0 {
		return 0, nil
	}
	return cleared, l.writeIndex(idx)
}

// Entries lists every indexed record. Secret keys are not loaded; the guard
// only needs the tenant tags.
func (l *Local) Entries() ([]credential.CredentialSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.readIndex()
	if err != nil {
		return nil, err
	}

	sets := make([]credential.CredentialSet, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		sets = append(sets, credential.CredentialSet{
			OwnerID:          entry.OwnerID,
			TenantID:         entry.TenantID,
			PrimaryAgentID:   entry.PrimaryAgentID,
			SecondaryAgentID: entry.SecondaryAgentID,
			UpdatedAt:        entry.UpdatedAt,
		})
	}
	return sets, nil
}

// LastTenant reads the tenant marker. Empty string means no marker yet.
func (l *Local) LastTenant() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.readIndex()
	if err != nil {
		return "", err
	}
	return idx.LastTenant, nil
}

// SetLastTenant rewrites the tenant marker.
func (l *Local) SetLastTenant(tenantID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.readIndex()
	if err != nil {
		return err
	}
	idx.LastTenant = tenantID
	return l.writeIndex(idx)
}

func (l *Local) indexPath() string {
	return filepath.Join(l.dir, "credentials.json")
}

func (l *Local) readIndex() (*localIndex, error) {
	data, err := os.ReadFile(l.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &localIndex{Entries: make(map[string]localEntry)}, nil
		}
		return nil, fmt.Errorf("failed to read local index: %w", err)
	}

	var idx localIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		// A corrupt index is worth less than a working cache. Start over.
		l.logger.Warn("local cache: index unreadable, resetting: %v", err)
		return &localIndex{Entries: make(map[string]localEntry)}, nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]localEntry)
	}
	return &idx, nil
}

func (l *Local) writeIndex(idx *localIndex) error {
	if err := os.MkdirAll(l.dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal local index: %w", err)
	}

	if err := os.WriteFile(l.indexPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write local index: %w", err)
	}
	return nil
}

var _ Tier = (*Local)(nil)
var _ Marker = (*Local)(nil)
