package credstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/credstore"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
	"github.com/sugarbait/phaeton-credsync/tests/fakes"
)

// The writer and resolver share the durable store and cache tiers in
// production; these tests run both halves over the same fakes.

func TestSaveThenResolveReturnsDurableRecord(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	store := fakes.NewFakeDurable()
	local := fakes.NewFakeTier("local", credential.SourceLocal)
	session := fakes.NewFakeTier("session", credential.SourceSession)
	tiers := []tier.Tier{local, session}

	w := newWriter(store, ciph, tiers)
	saved, err := w.Save(context.Background(), testKey(), saveInput())
	require.NoError(t, err)
	require.True(t, saved.DurablyPersisted)

	r := newResolver(store, ciph, tiers)
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceDurable, res.Source)
	assert.Equal(t, "sk-new", res.Credentials.SecretKey)
	assert.Equal(t, "agent-primary", res.Credentials.PrimaryAgentID)
	assert.Equal(t, "agent-backup", res.Credentials.SecondaryAgentID)
}

func TestSaveThenResolveSurvivesDurableOutage(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	outage := errors.New("connection refused")
	store := fakes.NewFakeDurable().WithUpsertError(outage).WithGetError(outage)
	local := fakes.NewFakeTier("local", credential.SourceLocal)
	tiers := []tier.Tier{local}

	w := newWriter(store, ciph, tiers)
	saved, err := w.Save(context.Background(), testKey(), saveInput())
	require.NoError(t, err)
	assert.False(t, saved.DurablyPersisted)
	assert.True(t, saved.LocallyPersisted)

	// The caches-only copy is all there is, and resolution serves it.
	r := newResolver(store, ciph, tiers)
	res, err := r.Resolve(context.Background(), testKey())
	require.NoError(t, err)

	require.True(t, res.Configured())
	assert.Equal(t, credential.SourceLocal, res.Source)
	assert.Equal(t, "sk-new", res.Credentials.SecretKey)
}

func TestTenantSwitchHidesSavedCredentials(t *testing.T) {
	t.Parallel()

	ciph := fakes.NewFakeCipher("key-1")
	store := fakes.NewFakeDurable()
	local := fakes.NewFakeTier("local", credential.SourceLocal)
	session := fakes.NewFakeTier("session", credential.SourceSession)
	tiers := []tier.Tier{local, session}
	logger := testLogger()

	marker := fakes.NewFakeMarker("clinic-a")
	guard := credstore.NewGuard(marker, tiers, logger)
	resolver := credstore.NewResolver(store, ciph, tiers, guard, testTimeout, logger)

	w := newWriter(store, ciph, tiers)
	_, err := w.Save(context.Background(), testKey(), saveInput())
	require.NoError(t, err)

	res, err := resolver.Resolve(context.Background(), testKey())
	require.NoError(t, err)
	require.True(t, res.Configured())

	// The user signs into another clinic. The guard clears the cached
	// copies and the same owner resolves to nothing under the new tenant.
	guardResult, err := guard.Validate("clinic-b")
	require.NoError(t, err)
	assert.Equal(t, credential.GuardCleared, guardResult.Status)
	assert.Equal(t, 2, guardResult.Cleared)

	res, err = resolver.Resolve(context.Background(), credential.Key{OwnerID: "owner-1", TenantID: "clinic-b"})
	require.NoError(t, err)
	assert.False(t, res.Configured())
	assert.Equal(t, credential.SourceNone, res.Source)
	assert.Equal(t, 0, local.Len())
	assert.Equal(t, 0, session.Len())
}
