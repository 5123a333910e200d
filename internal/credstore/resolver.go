package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/sugarbait/phaeton-credsync/internal/cipher"
	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/durable"
	cserrors "github.com/sugarbait/phaeton-credsync/internal/errors"
	"github.com/sugarbait/phaeton-credsync/internal/logging"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
)

// Resolver answers "what are the credentials for this owner under this
// tenant" by walking the tiers in authority order: durable store first,
// then local cache, session cache and the process-memory backup. A lower
// tier is only consulted when the tier above it failed or had no usable
// record, and a record whose tenant tag does not match the lookup key is
// treated as absent, never returned.
type Resolver struct {
	store   durable.Store
	cipher  cipher.Cipher
	tiers   []tier.Tier
	guard   *Guard
	timeout time.Duration
	logger  *logging.Logger
	metrics *Metrics
}

// NewResolver creates a resolver over the durable store and the cache
// tiers, ordered from most to least authoritative. The guard handles the
// removal of any mismatched entries the resolver trips over.
func NewResolver(store durable.Store, ciph cipher.Cipher, tiers []tier.Tier, guard *Guard, timeout time.Duration, logger *logging.Logger) *Resolver {
	return &Resolver{
		store:   store,
		cipher:  ciph,
		tiers:   tiers,
		guard:   guard,
		timeout: timeout,
		logger:  logger,
		metrics: NewMetrics(),
	}
}

// Resolve looks up the credentials for the key. A fully empty result is
// returned as a not-configured Resolution, not an error; errors are
// reserved for invalid input. The durable store being unreachable degrades
// the lookup to the cache tiers rather than failing it.
func (r *Resolver) Resolve(ctx context.Context, key credential.Key) (credential.Resolution, error) {
	if err := key.Validate(); err != nil {
		return credential.Resolution{}, cserrors.ValidationError{
			Field:      "key",
			Message:    err.Error(),
			Suggestion: "Provide both an owner id and a tenant id",
		}
	}

	if set, ok := r.resolveDurable(ctx, key); ok {
		r.repairCaches(set)
		r.metrics.RecordResolve("hit", string(credential.SourceDurable))
		return credential.Resolved(set, credential.SourceDurable), nil
	}

	for _, t := range r.tiers {
		set, ok, err := t.Get(key)
		if err != nil {
			r.logger.Debug("Lookup in %s tier failed for %s: %v", t.Name(), key, err)
			continue
		}
		if !ok {
			continue
		}
		if !set.MatchesTenant(key.TenantID) {
			r.metrics.RecordTenantMismatch(t.Name())
			r.guard.ScrubSlot(t, key)
			continue
		}
		r.logger.Debug("Resolved credentials for %s from %s tier", key, t.Name())
		r.metrics.RecordResolve("hit", string(t.Source()))
		return credential.Resolved(set, t.Source()), nil
	}

	r.logger.Debug("No credentials configured for %s", key)
	r.metrics.RecordResolve("not_configured", string(credential.SourceNone))
	return credential.NotConfigured(), nil
}

// resolveDurable attempts the durable store and decrypts the secret key on
// success. Every failure mode (not found, unreachable, timeout, undecryptable)
// reports false so resolution falls through to the cache tiers.
func (r *Resolver) resolveDurable(ctx context.Context, key credential.Key) (credential.CredentialSet, bool) {
	callCtx, cancel := withDurableTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	set, err := r.store.Get(callCtx, key)
	r.metrics.RecordDurableDuration(r.store.Name(), "get", time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, durable.ErrNotFound) {
			r.logger.Debug("No durable record for %s", key)
			return credential.CredentialSet{}, false
		}
		r.metrics.RecordDurableError(r.store.Name(), "get")
		r.logger.Warn("Durable store unavailable, falling back to caches: %v", wrapDurableTimeout(err, r.store.Name(), r.timeout))
		return credential.CredentialSet{}, false
	}

	if !set.MatchesTenant(key.TenantID) {
		r.logger.Warn("Durable record for %s carries tenant tag %q, treating as absent", key, set.TenantID)
		return credential.CredentialSet{}, false
	}

	plaintext, err := r.cipher.Decrypt(ctx, set.SecretKey)
	if err != nil {
		r.metrics.RecordDurableError(r.store.Name(), "decrypt")
		r.logger.Error("Failed to decrypt durable record for %s: %v", key, err)
		return credential.CredentialSet{}, false
	}
	set.SecretKey = plaintext

	return set, true
}

// repairCaches writes a durable hit back into every cache tier so the next
// lookup can survive a durable outage. Repair failures degrade silently;
// the caller already has its answer.
func (r *Resolver) repairCaches(set credential.CredentialSet) {
	for _, t := range r.tiers {
		if err := t.Set(set); err != nil {
			r.logger.Debug("Failed to repair %s tier for %s: %v", t.Name(), set.Key(), err)
			continue
		}
		r.metrics.RecordRepairWrite(t.Name())
	}
}
