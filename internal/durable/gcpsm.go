package durable

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

// GCPStore keeps one Secret Manager secret per (owner, tenant) slot.
// Secret ids only allow [A-Za-z0-9_-], so key parts are sanitized into the
// id; the authoritative key lives inside the JSON record.
type GCPStore struct {
	client    *secretmanager.Client
	projectID string
	prefix    string
}

// GCPConfig configures the Google Secret Manager backend.
type GCPConfig struct {
	ProjectID             string
	Prefix                string
	ServiceAccountKeyPath string
}

// NewGCPStore builds the store and its client.
func NewGCPStore(ctx context.Context, cfg GCPConfig) (*GCPStore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcp.secretmanager requires project_id")
	}

	var clientOptions []option.ClientOption
	if cfg.ServiceAccountKeyPath != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(cfg.ServiceAccountKeyPath))
	}

	client, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "phaeton-credentials"
	}

	return &GCPStore{client: client, projectID: cfg.ProjectID, prefix: prefix}, nil
}

func (s *GCPStore) Name() string { return "gcp.secretmanager" }

// secretID maps a composite key onto a Secret Manager secret id.
func (s *GCPStore) secretID(key credential.Key) string {
	return s.prefix + "-" + sanitizeGCPName(key.TenantID) + "-" + sanitizeGCPName(key.OwnerID)
}

func (s *GCPStore) secretResource(key credential.Key) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, s.secretID(key))
}

// Get fetches the latest version and decodes the record.
func (s *GCPStore) Get(ctx context.Context, key credential.Key) (credential.CredentialSet, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretResource(key) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return credential.CredentialSet{}, ErrNotFound
		}
		return credential.CredentialSet{}, fmt.Errorf("secret manager access failed: %w", err)
	}
	if resp.Payload == nil || resp.Payload.Data == nil {
		return credential.CredentialSet{}, fmt.Errorf("secret '%s' has no data", s.secretID(key))
	}

	set, err := unmarshalRecord(resp.Payload.Data)
	if err != nil {
		return credential.CredentialSet{}, err
	}
	// The sanitized id is lossy; trust the record body for the key.
	return set, nil
}

// Upsert creates the secret container on first save, then adds the record
// as a new version. "latest" resolves last-write-wins across writers.
func (s *GCPStore) Upsert(ctx context.Context, set credential.CredentialSet) error {
	payload, err := marshalRecord(set)
	if err != nil {
		return err
	}
	key := set.Key()

	_, err = s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   fmt.Sprintf("projects/%s", s.projectID),
		SecretId: s.secretID(key),
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("secret manager create failed: %w", err)
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: s.secretResource(key),
		Payload: &secretmanagerpb.SecretPayload{
			Data: payload,
		},
	})
	if err != nil {
		return fmt.Errorf("secret manager add version failed: %w", err)
	}
	return nil
}

// Ping lists at most one secret to verify access.
func (s *GCPStore) Ping(ctx context.Context) error {
	iter := s.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   fmt.Sprintf("projects/%s", s.projectID),
		PageSize: 1,
	})
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("secret manager unreachable: %w", err)
	}
	return nil
}

// sanitizeGCPName folds a key part into the [A-Za-z0-9_-] alphabet secret
// ids allow.
func sanitizeGCPName(part string) string {
	var b strings.Builder
	for _, r := range part {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ Store = (*GCPStore)(nil)
