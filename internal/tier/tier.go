// Package tier implements the cache tiers consulted below the durable
// store: the device-local cache, the session cache and the process-memory
// backup. All three sit behind one interface so the resolver's fallback
// chain is a loop over an ordered slice rather than per-location code.
//
// Only the credential writer and the tenant guard mutate tiers. The
// resolver writes to them solely as a repair side effect of a successful
// durable read.
package tier

import (
	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

// Tier is a tenant-tagged credential cache.
//
// Get reports absence with found=false, never with an error; errors are
// reserved for I/O failures of the underlying medium. A record returned by
// Get may still be tenant-mismatched — validating the tenant tag is the
// caller's job.
type Tier interface {
	// Name is a stable identifier used in logs and metrics.
	Name() string

	// Source is the SourceTier tag stamped on records resolved from here.
	Source() credential.SourceTier

	// Get returns the record stored under the composite key, if any.
	Get(key credential.Key) (credential.CredentialSet, bool, error)

	// Set stores the record under its own composite key, replacing any
	// previous record in that slot.
	Set(set credential.CredentialSet) error

	// Delete removes the record for the key. Deleting an absent record is
	// not an error.
	Delete(key credential.Key) error

	// Entries lists every credential-shaped record currently held,
	// including legacy records with an empty tenant tag. Used by
	// diagnostics.
	Entries() ([]credential.CredentialSet, error)

	// Purge deletes every record whose tenant tag differs from keepTenant,
	// legacy un-tagged records included, and reports how many were
	// removed. The tenant guard's coarse clear.
	Purge(keepTenant string) (int, error)
}

// Marker persists the "last known active tenant" value the tenant guard
// compares against at startup. The local tier implements this; the
// shorter-lived tiers do not need to.
type Marker interface {
	LastTenant() (string, error)
	SetLastTenant(tenantID string) error
}
