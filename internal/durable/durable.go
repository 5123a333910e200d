// Package durable implements the durable store client: the single source of
// truth for credential records, addressed by (owner, tenant) with
// last-write-wins semantics at the record level. Backends exist for a SQL
// database, AWS Secrets Manager, Google Secret Manager and Azure Key Vault;
// all of them store the secret key only in its encrypted envelope form.
package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

// ErrNotFound is returned by Get when no record exists for the key. It is
// an expected outcome for new owners, distinct from the store being
// unreachable.
var ErrNotFound = errors.New("credential record not found")

// Store is the durable tier. Implementations must be safe for concurrent
// use and must honor context cancellation; the resolver bounds every call
// with a timeout and treats expiry as "unreachable", never as "not found".
type Store interface {
	// Name is a stable backend identifier for logs and metrics.
	Name() string

	// Get returns the record for the key or ErrNotFound. The returned
	// SecretKey field holds the encrypted envelope, not plaintext.
	Get(ctx context.Context, key credential.Key) (credential.CredentialSet, error)

	// Upsert stores the full record, replacing any existing one. Races
	// between writers resolve by the backend's own last-write-wins rule.
	Upsert(ctx context.Context, set credential.CredentialSet) error

	// Ping verifies connectivity and permissions without touching records.
	Ping(ctx context.Context) error
}

// record is the wire shape shared by the secret-manager style backends,
// which store one JSON document per (owner, tenant) slot.
type record struct {
	OwnerID          string    `json:"owner_id"`
	TenantID         string    `json:"tenant_id"`
	SecretKey        string    `json:"secret_key"` // encrypted envelope
	PrimaryAgentID   string    `json:"primary_agent_id"`
	SecondaryAgentID string    `json:"secondary_agent_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func marshalRecord(set credential.CredentialSet) ([]byte, error) {
	data, err := json.Marshal(record{
		OwnerID:          set.OwnerID,
		TenantID:         set.TenantID,
		SecretKey:        set.SecretKey,
		PrimaryAgentID:   set.PrimaryAgentID,
		SecondaryAgentID: set.SecondaryAgentID,
		UpdatedAt:        set.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential record: %w", err)
	}
	return data, nil
}

func unmarshalRecord(data []byte) (credential.CredentialSet, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return credential.CredentialSet{}, fmt.Errorf("failed to decode credential record: %w", err)
	}
	return credential.CredentialSet{
		OwnerID:          rec.OwnerID,
		TenantID:         rec.TenantID,
		SecretKey:        rec.SecretKey,
		PrimaryAgentID:   rec.PrimaryAgentID,
		SecondaryAgentID: rec.SecondaryAgentID,
		UpdatedAt:        rec.UpdatedAt,
	}, nil
}
