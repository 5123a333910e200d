// Package credential defines the data model shared by every storage tier:
// the CredentialSet record, the composite owner/tenant key, and the result
// types returned by the resolver, writer and tenant guard.
package credential

import (
	"fmt"
	"strings"
	"time"
)

// SourceTier identifies which tier produced a CredentialSet during the last
// resolution. Diagnostic only; never persisted across sessions.
type SourceTier string

const (
	SourceDurable SourceTier = "durable"
	SourceLocal   SourceTier = "local"
	SourceSession SourceTier = "session"
	SourceMemory  SourceTier = "memory"
	SourceNone    SourceTier = "none"
)

// Key is the composite lookup key used by every tier. Both parts are
// required; no tier may be queried or written with either part empty.
type Key struct {
	OwnerID  string
	TenantID string
}

// Validate reports whether both key parts are present.
func (k Key) Validate() error {
	if strings.TrimSpace(k.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.TrimSpace(k.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	return nil
}

// String renders the key for logs and cache slots. Never contains secrets.
func (k Key) String() string {
	return k.TenantID + "/" + k.OwnerID
}

// CredentialSet is the unit of storage and resolution.
//
// SecretKey is plaintext in cache tiers for the lifetime of the
// process/session and ciphertext in the durable store. The agent id fields
// are optional: an empty string is a deliberate "not configured" value,
// distinct from the record being absent from a tier entirely.
type CredentialSet struct {
	OwnerID          string     `json:"owner_id"`
	TenantID         string     `json:"tenant_id"`
	SecretKey        string     `json:"secret_key"`
	PrimaryAgentID   string     `json:"primary_agent_id"`
	SecondaryAgentID string     `json:"secondary_agent_id"`
	UpdatedAt        time.Time  `json:"updated_at"`
	SourceTier       SourceTier `json:"-"`
}

// Key returns the composite lookup key for this record.
func (c CredentialSet) Key() Key {
	return Key{OwnerID: c.OwnerID, TenantID: c.TenantID}
}

// MatchesTenant reports whether the record is owned by the given tenant.
// A record with an empty tenant tag (legacy, owner-only keying) never
// matches any tenant.
func (c CredentialSet) MatchesTenant(tenantID string) bool {
	return c.TenantID != "" && c.TenantID == tenantID
}

// Clone returns a copy with an overridden source tier.
func (c CredentialSet) withSource(tier SourceTier) CredentialSet {
	c.SourceTier = tier
	return c
}

// Resolution is the outcome of a resolve call. A nil Credentials with
// Source == SourceNone means "not configured", which is an expected steady
// state for a new owner, not a fault.
type Resolution struct {
	Credentials *CredentialSet
	Source      SourceTier
}

// Configured reports whether the resolution produced a usable record.
func (r Resolution) Configured() bool {
	return r.Credentials != nil && r.Source != SourceNone
}

// NotConfigured is the resolution returned when every tier is empty or
// tenant-mismatched.
func NotConfigured() Resolution {
	return Resolution{Source: SourceNone}
}

// Resolved wraps a tier hit into a Resolution.
func Resolved(set CredentialSet, tier SourceTier) Resolution {
	out := set.withSource(tier)
	return Resolution{Credentials: &out, Source: tier}
}

// SaveInput is the caller-supplied candidate for a save. LoginPassword, when
// provided by the caller's authentication subsystem, enables the
// password-corruption guard: a SecretKey equal to it is rejected outright.
type SaveInput struct {
	SecretKey        string
	PrimaryAgentID   string
	SecondaryAgentID string

	// LoginPassword is a comparison value only. It is never stored.
	LoginPassword string
}

// SaveResult reports how far a save got. DurablyPersisted false with
// LocallyPersisted true means the credential survives in caches only until
// the durable store is reachable again.
type SaveResult struct {
	DurablyPersisted bool
	LocallyPersisted bool
	UpdatedAt        time.Time

	// Warnings carries user-facing notes such as the partial-persistence
	// warning. Empty on a fully successful save.
	Warnings []string
}

// GuardStatus is the outcome class of a tenant guard run.
type GuardStatus string

const (
	// GuardValidated means the marker was absent or already matched the
	// active tenant; nothing was purged.
	GuardValidated GuardStatus = "validated"
	// GuardCleared means a tenant switch was detected and mismatched
	// entries were purged from the local and session tiers.
	GuardCleared GuardStatus = "cleared"
)

// GuardResult reports what the tenant guard did at startup.
type GuardResult struct {
	Status         GuardStatus
	PreviousTenant string
	Cleared        int
}
