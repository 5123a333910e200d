package durable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

// AzureClientAPI is the slice of the Key Vault client the store uses.
// Narrow so tests can substitute a mock.
type AzureClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// AzureStore keeps one Key Vault secret per (owner, tenant) slot. Vault
// secret names only allow alphanumerics and dashes, so key parts are
// sanitized into the name; the authoritative key lives inside the JSON
// record.
type AzureStore struct {
	client AzureClientAPI
	prefix string
}

// AzureConfig configures the Key Vault backend. When ClientID/ClientSecret
// are empty the default credential chain (managed identity, CLI login) is
// used.
type AzureConfig struct {
	VaultURL     string
	Prefix       string
	TenantID     string
	ClientID     string
	ClientSecret string
}

// AzureOption is a functional option for the Azure store.
type AzureOption func(*AzureStore)

// WithAzureClient injects a custom client (for testing).
func WithAzureClient(client AzureClientAPI) AzureOption {
	return func(s *AzureStore) {
		s.client = client
	}
}

// NewAzureStore builds the store, creating a real client unless one was
// injected through options.
func NewAzureStore(cfg AzureConfig, opts ...AzureOption) (*AzureStore, error) {
	s := &AzureStore{prefix: cfg.Prefix}
	if s.prefix == "" {
		s.prefix = "phaeton-credentials"
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		if cfg.VaultURL == "" {
			return nil, fmt.Errorf("azure.keyvault requires vault_url")
		}

		var (
			cred azcore.TokenCredential
			err  error
		)
		if cfg.ClientID != "" && cfg.ClientSecret != "" {
			cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		} else {
			cred, err = azidentity.NewDefaultAzureCredential(nil)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}

		client, err := azsecrets.NewClient(cfg.VaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

func (s *AzureStore) Name() string { return "azure.keyvault" }

// secretName maps a composite key onto a vault secret name.
func (s *AzureStore) secretName(key credential.Key) string {
	return s.prefix + "-" + sanitizeAzureName(key.TenantID) + "-" + sanitizeAzureName(key.OwnerID)
}

// Get fetches the current version and decodes the record.
func (s *AzureStore) Get(ctx context.Context, key credential.Key) (credential.CredentialSet, error) {
	resp, err := s.client.GetSecret(ctx, s.secretName(key), "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			return credential.CredentialSet{}, ErrNotFound
		}
		return credential.CredentialSet{}, fmt.Errorf("key vault get failed: %w", err)
	}
	if resp.Value == nil {
		return credential.CredentialSet{}, fmt.Errorf("secret '%s' has no value", s.secretName(key))
	}
	return unmarshalRecord([]byte(*resp.Value))
}

// Upsert writes the full record as a new secret version; Key Vault resolves
// the current version last-write-wins.
func (s *AzureStore) Upsert(ctx context.Context, set credential.CredentialSet) error {
	payload, err := marshalRecord(set)
	if err != nil {
		return err
	}
	value := string(payload)

	_, err = s.client.SetSecret(ctx, s.secretName(set.Key()), azsecrets.SetSecretParameters{
		Value: &value,
	}, nil)
	if err != nil {
		return fmt.Errorf("key vault set failed: %w", err)
	}
	return nil
}

// Ping probes the vault; a 404 on the probe name still proves the vault is
// reachable and authentication works.
func (s *AzureStore) Ping(ctx context.Context) error {
	_, err := s.client.GetSecret(ctx, s.prefix+"-ping", "", nil)
	if err != nil && !isAzureNotFound(err) {
		return fmt.Errorf("key vault unreachable: %w", err)
	}
	return nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

// sanitizeAzureName folds a key part into the [A-Za-z0-9-] alphabet vault
// secret names allow.
func sanitizeAzureName(part string) string {
	var b strings.Builder
	for _, r := range part {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

var _ Store = (*AzureStore)(nil)
