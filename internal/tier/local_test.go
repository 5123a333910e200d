package tier

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/logging"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	keyring.MockInit()
	return NewLocal(t.TempDir(), "credsync-test", logging.New(false, true))
}

func localSet(owner, tenant, secret string) credential.CredentialSet {
	return credential.CredentialSet{
		OwnerID:          owner,
		TenantID:         tenant,
		SecretKey:        secret,
		PrimaryAgentID:   "agent-1",
		SecondaryAgentID: "agent-2",
		UpdatedAt:        time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC),
	}
}

func TestLocalSetGetRoundTrip(t *testing.T) {
	l := newTestLocal(t)

	stored := localSet("owner-1", "clinic-a", "sk-123")
	require.NoError(t, l.Set(stored))

	got, ok, err := l.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-123", got.SecretKey)
	assert.Equal(t, "agent-1", got.PrimaryAgentID)
	assert.Equal(t, "clinic-a", got.TenantID)
	assert.True(t, stored.UpdatedAt.Equal(got.UpdatedAt))
}

func TestLocalGetMissing(t *testing.T) {
	l := newTestLocal(t)

	_, ok, err := l.Get(credential.Key{OwnerID: "owner-x", TenantID: "clinic-a"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalIndexNeverContainsSecret(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-opaque-123")))

	data, err := os.ReadFile(filepath.Join(l.dir, "credentials.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-opaque-123")
}

func TestLocalGetWithMissingKeychainItem(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-123")))

	// Someone removed the keychain item out from under the index.
	require.NoError(t, keyring.Delete("credsync-test", "clinic-a/owner-1"))

	_, ok, err := l.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDelete(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-123")))

	key := credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"}
	require.NoError(t, l.Delete(key))

	_, ok, err := l.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is a no-op.
	require.NoError(t, l.Delete(key))
}

func TestLocalSameOwnerDifferentTenants(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-a")))
	require.NoError(t, l.Set(localSet("owner-1", "clinic-b", "sk-b")))

	got, ok, err := l.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-a", got.SecretKey)

	got, ok, err = l.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-b"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-b", got.SecretKey)
}

func TestLocalMarker(t *testing.T) {
	l := newTestLocal(t)

	last, err := l.LastTenant()
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, l.SetLastTenant("clinic-a"))

	last, err = l.LastTenant()
	require.NoError(t, err)
	assert.Equal(t, "clinic-a", last)
}

func TestLocalMarkerSurvivesEntryWrites(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.SetLastTenant("clinic-a"))
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-123")))

	last, err := l.LastTenant()
	require.NoError(t, err)
	assert.Equal(t, "clinic-a", last)
}

func TestLocalPurge(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-a")))
	require.NoError(t, l.Set(localSet("owner-2", "clinic-a", "sk-a2")))
	require.NoError(t, l.Set(localSet("owner-1", "clinic-b", "sk-b")))

	cleared, err := l.Purge("clinic-b")
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	_, ok, err := l.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := l.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-b"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-b", got.SecretKey)
}

func TestLocalPurgeRemovesLegacySlots(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-a")))

	// Simulate a pre-tenancy index slot keyed by owner only, no tenant tag.
	idx, err := l.readIndex()
	require.NoError(t, err)
	idx.Entries["owner-legacy"] = localEntry{OwnerID: "owner-legacy", UpdatedAt: time.Now()}
	require.NoError(t, l.writeIndex(idx))

	cleared, err := l.Purge("clinic-a")
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	idx, err = l.readIndex()
	require.NoError(t, err)
	_, ok := idx.Entries["owner-legacy"]
	assert.False(t, ok)
	_, ok = idx.Entries["clinic-a/owner-1"]
	assert.True(t, ok)
}

func TestLocalPurgeNothingToDo(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-a")))

	cleared, err := l.Purge("clinic-a")
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

func TestLocalCorruptIndexResets(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, os.MkdirAll(l.dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(l.dir, "credentials.json"), []byte("{not json"), 0600))

	_, ok, err := l.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	assert.False(t, ok)

	// Writes work again after the reset.
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-123")))
}

func TestLocalEntriesOmitSecrets(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.Set(localSet("owner-1", "clinic-a", "sk-123")))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].SecretKey)
	assert.Equal(t, "clinic-a", entries[0].TenantID)
}
