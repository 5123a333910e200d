package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

func TestMemorySetGetRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Set(localSet("owner-1", "clinic-a", "sk-123")))

	got, ok, err := m.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-123", got.SecretKey)
	assert.Equal(t, "agent-1", got.PrimaryAgentID)
}

func TestMemoryGetMissing(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	_, ok, err := m.Get(credential.Key{OwnerID: "owner-x", TenantID: "clinic-a"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryOverwriteReplacesSecret(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Set(localSet("owner-1", "clinic-a", "sk-old")))
	require.NoError(t, m.Set(localSet("owner-1", "clinic-a", "sk-new")))

	got, ok, err := m.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-new", got.SecretKey)
}

func TestMemoryDelete(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Set(localSet("owner-1", "clinic-a", "sk-123")))

	key := credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"}
	require.NoError(t, m.Delete(key))

	_, ok, err := m.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Delete(key))
}

func TestMemoryPurge(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Set(localSet("owner-1", "clinic-a", "sk-a")))
	require.NoError(t, m.Set(localSet("owner-2", "clinic-b", "sk-b")))

	cleared, err := m.Purge("clinic-a")
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	_, ok, err := m.Get(credential.Key{OwnerID: "owner-2", TenantID: "clinic-b"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Get(credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryEntriesOmitSecrets(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Set(localSet("owner-1", "clinic-a", "sk-123")))

	entries, err := m.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].SecretKey)
}

func TestMemoryGetMultipleTimes(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Set(localSet("owner-1", "clinic-a", "sk-123")))

	key := credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"}
	for i := 0; i < 3; i++ {
		got, ok, err := m.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "sk-123", got.SecretKey)
	}
}
