package credstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/credstore"
	"github.com/sugarbait/phaeton-credsync/internal/logging"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
	"github.com/sugarbait/phaeton-credsync/tests/fakes"
)

const testTimeout = 200 * time.Millisecond

func testLogger() *logging.Logger {
	return logging.New(false, true) // debug=false, noColor=true
}

func testKey() credential.Key {
	return credential.Key{OwnerID: "owner-1", TenantID: "clinic-a"}
}

func testSet(secret string) credential.CredentialSet {
	return credential.CredentialSet{
		OwnerID:          "owner-1",
		TenantID:         "clinic-a",
		SecretKey:        secret,
		PrimaryAgentID:   "agent-primary",
		SecondaryAgentID: "agent-backup",
		UpdatedAt:        time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC),
	}
}

// encrypted returns the record as the durable store would hold it, secret
// key in fake-cipher envelope form.
func encrypted(set credential.CredentialSet, ciph *fakes.FakeCipher) credential.CredentialSet {
	envelope, _ := ciph.Encrypt(context.Background(), set.SecretKey)
	set.SecretKey = envelope
	return set
}

func newResolver(store *fakes.FakeDurable, ciph *fakes.FakeCipher, tiers []tier.Tier) *credstore.Resolver {
	logger := testLogger()
	guard := credstore.NewGuard(fakes.NewFakeMarker("clinic-a"), tiers, logger)
	return credstore.NewResolver(store, ciph, tiers, guard, testTimeout, logger)
}

func TestResolveDurableWins(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	fresh := testSet("sk-fresh")
	store := fakes.NewFakeDurable().WithRecord(encrypted(fresh, ciph))

	stale := testSet("sk-stale")
	local := fakes.NewFakeTier("local", credential.SourceLocal).WithEntry(stale)
	session := fakes.NewFakeTier("session", credential.SourceSession).WithEntry(stale)

	r := newResolver(store, ciph, []tier.Tier{local, session})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceDurable, res.Source)
	assert.Equal(t, "sk-fresh", res.Credentials.SecretKey)
	assert.Equal(t, "agent-primary", res.Credentials.PrimaryAgentID)
}

func TestResolveRepairsCachesOnDurableHit(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	fresh := testSet("sk-fresh")
	store := fakes.NewFakeDurable().WithRecord(encrypted(fresh, ciph))

	local := fakes.NewFakeTier("local", credential.SourceLocal)
	session := fakes.NewFakeTier("session", credential.SourceSession).WithEntry(testSet("sk-stale"))

	r := newResolver(store, ciph, []tier.Tier{local, session})
	_, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	repaired, ok := local.Entry(testKey())
	require.True(t, ok)
	assert.Equal(t, "sk-fresh", repaired.SecretKey)

	repaired, ok = session.Entry(testKey())
	require.True(t, ok)
	assert.Equal(t, "sk-fresh", repaired.SecretKey)
}

func TestResolveFallsBackWhenDurableUnreachable(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	store := fakes.NewFakeDurable().WithGetError(errors.New("connection refused"))

	local := fakes.NewFakeTier("local", credential.SourceLocal).WithEntry(testSet("sk-cached"))

	r := newResolver(store, ciph, []tier.Tier{local})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceLocal, res.Source)
	assert.Equal(t, "sk-cached", res.Credentials.SecretKey)
}

func TestResolveFallsBackOnDurableTimeout(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	store := fakes.NewFakeDurable().
		WithRecord(encrypted(testSet("sk-slow"), ciph)).
		WithDelay(5 * testTimeout)

	session := fakes.NewFakeTier("session", credential.SourceSession).WithEntry(testSet("sk-cached"))

	r := newResolver(store, ciph, []tier.Tier{session})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceSession, res.Source)
}

func TestResolveDurableNotFoundFallsThrough(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	store := fakes.NewFakeDurable()

	memory := fakes.NewFakeTier("memory", credential.SourceMemory).WithEntry(testSet("sk-backup"))

	r := newResolver(store, ciph, []tier.Tier{memory})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceMemory, res.Source)
}

func TestResolveTierOrder(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	store := fakes.NewFakeDurable()

	local := fakes.NewFakeTier("local", credential.SourceLocal).WithEntry(testSet("sk-local"))
	session := fakes.NewFakeTier("session", credential.SourceSession).WithEntry(testSet("sk-session"))
	memory := fakes.NewFakeTier("memory", credential.SourceMemory).WithEntry(testSet("sk-memory"))

	r := newResolver(store, ciph, []tier.Tier{local, session, memory})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	assert.Equal(t, credential.SourceLocal, res.Source)
	assert.Equal(t, "sk-local", res.Credentials.SecretKey)
}

func TestResolveNotConfigured(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	r := newResolver(fakes.NewFakeDurable(), ciph, []tier.Tier{
		fakes.NewFakeTier("local", credential.SourceLocal),
		fakes.NewFakeTier("session", credential.SourceSession),
	})

	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	assert.False(t, res.Configured())
	assert.Equal(t, credential.SourceNone, res.Source)
	assert.Nil(t, res.Credentials)
}

func TestResolveTenantMismatchTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")

	// A record from another tenant sitting under this key's slot, the
	// shape corrupt or legacy data takes.
	foreign := testSet("sk-foreign")
	foreign.TenantID = "clinic-b"
	local := fakes.NewFakeTier("local", credential.SourceLocal).
		WithEntryAt(testKey().String(), foreign)

	r := newResolver(fakes.NewFakeDurable(), ciph, []tier.Tier{local})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	assert.False(t, res.Configured())
	// The mismatched entry is scrubbed, not returned.
	assert.Equal(t, []credential.Key{testKey()}, local.Deleted())
}

func TestResolveLegacyUntaggedEntryTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")

	legacy := testSet("sk-legacy")
	legacy.TenantID = ""
	session := fakes.NewFakeTier("session", credential.SourceSession).
		WithEntryAt(testKey().String(), legacy)

	r := newResolver(fakes.NewFakeDurable(), ciph, []tier.Tier{session})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	assert.False(t, res.Configured())
	assert.Len(t, session.Deleted(), 1)
}

func TestResolveSkipsFailingTier(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	broken := fakes.NewFakeTier("local", credential.SourceLocal).
		WithGetError(errors.New("index unreadable"))
	session := fakes.NewFakeTier("session", credential.SourceSession).WithEntry(testSet("sk-session"))

	r := newResolver(fakes.NewFakeDurable(), ciph, []tier.Tier{broken, session})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceSession, res.Source)
}

func TestResolveUndecryptableDurableFallsBack(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	stale := encrypted(testSet("sk-fresh"), fakes.NewFakeCipher("retired-key"))
	store := fakes.NewFakeDurable().WithRecord(stale)

	local := fakes.NewFakeTier("local", credential.SourceLocal).WithEntry(testSet("sk-cached"))

	r := newResolver(store, ciph, []tier.Tier{local})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceLocal, res.Source)
}

func TestResolveRejectsIncompleteKey(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	r := newResolver(fakes.NewFakeDurable(), ciph, nil)

	_, err := r.Resolve(context.Background(), credential.Key{OwnerID: "owner-1"})
	require.Error(t, err)

	_, err = r.Resolve(context.Background(), credential.Key{TenantID: "clinic-a"})
	require.Error(t, err)
}

func TestResolveDoesNotRepairOnCacheHit(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	local := fakes.NewFakeTier("local", credential.SourceLocal)
	session := fakes.NewFakeTier("session", credential.SourceSession).WithEntry(testSet("sk-session"))

	r := newResolver(fakes.NewFakeDurable(), ciph, []tier.Tier{local, session})
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)
	require.True(t, res.Configured())

	// A session hit is returned as-is; only durable hits refresh the
	// other tiers.
	assert.Equal(t, 0, local.Len())
}
