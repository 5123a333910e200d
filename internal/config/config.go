// Package config loads and validates credsync.yaml, the host application's
// declaration of the active tenant, the durable store backend, encryption
// key material and cache behavior.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sugarbait/phaeton-credsync/internal/durable"
	cserrors "github.com/sugarbait/phaeton-credsync/internal/errors"
	"github.com/sugarbait/phaeton-credsync/internal/logging"
)

// DefaultDurableTimeout bounds every durable store call made by the
// resolver. A timed-out call is treated as "unreachable", never as "not
// found".
const DefaultDurableTimeout = 5 * time.Second

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the credsync.yaml structure
type Definition struct {
	Version    int              `yaml:"version" json:"version"`
	Tenant     string           `yaml:"tenant" json:"tenant"`
	Durable    DurableConfig    `yaml:"durable" json:"durable"`
	Encryption EncryptionConfig `yaml:"encryption" json:"encryption"`
	Cache      CacheConfig      `yaml:"cache,omitempty" json:"cache,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// DurableConfig selects and configures the durable store backend
type DurableConfig struct {
	Type      string      `yaml:"type" json:"type"`
	TimeoutMs int         `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	SQL       SQLConfig   `yaml:"sql,omitempty" json:"sql,omitempty"`
	AWS       AWSConfig   `yaml:"aws,omitempty" json:"aws,omitempty"`
	GCP       GCPConfig   `yaml:"gcp,omitempty" json:"gcp,omitempty"`
	Azure     AzureConfig `yaml:"azure,omitempty" json:"azure,omitempty"`
}

// SQLConfig configures the sql backend
type SQLConfig struct {
	Dialect string `yaml:"dialect,omitempty" json:"dialect,omitempty"`
	DSN     string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// AWSConfig configures the aws.secretsmanager backend
type AWSConfig struct {
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	Prefix          string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// GCPConfig configures the gcp.secretmanager backend
type GCPConfig struct {
	ProjectID             string `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	Prefix                string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	ServiceAccountKeyPath string `yaml:"service_account_key_path,omitempty" json:"service_account_key_path,omitempty"`
}

// AzureConfig configures the azure.keyvault backend
type AzureConfig struct {
	VaultURL     string `yaml:"vault_url,omitempty" json:"vault_url,omitempty"`
	Prefix       string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	TenantID     string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	ClientID     string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
}

// EncryptionConfig supplies the local cipher key. Exactly one of Key
// (base64, inline) or KeyFile must be set.
type EncryptionConfig struct {
	KeyID   string `yaml:"key_id" json:"key_id"`
	Key     string `yaml:"key,omitempty" json:"key,omitempty"`
	KeyFile string `yaml:"key_file,omitempty" json:"key_file,omitempty"`
}

// CacheConfig tunes the local and session tiers
type CacheConfig struct {
	Dir               string `yaml:"dir,omitempty" json:"dir,omitempty"`
	KeyringService    string `yaml:"keyring_service,omitempty" json:"keyring_service,omitempty"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes,omitempty" json:"session_ttl_minutes,omitempty"`
}

// MetricsConfig toggles prometheus instrumentation
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Load reads, parses and schema-validates the config file at cfg.Path.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return cserrors.ConfigError{
				Field:      "config",
				Value:      c.Path,
				Message:    "config file not found",
				Suggestion: "Run 'credsync init' to create a starter credsync.yaml",
			}
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return cserrors.ConfigError{
			Field:      "config",
			Message:    fmt.Sprintf("invalid YAML: %v", err),
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if err := validateDefinition(&def); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

// ActiveTenant returns the tenant context the hosting application declared.
// Every resolve, save and guard call is scoped to this value.
func (c *Config) ActiveTenant() string {
	if c.Definition == nil {
		return ""
	}
	return strings.TrimSpace(c.Definition.Tenant)
}

// DurableTimeout returns the bound for durable store calls.
func (c *Config) DurableTimeout() time.Duration {
	if c.Definition == nil || c.Definition.Durable.TimeoutMs <= 0 {
		return DefaultDurableTimeout
	}
	return time.Duration(c.Definition.Durable.TimeoutMs) * time.Millisecond
}

// SessionTTL returns the session cache lifetime, zero meaning default.
func (c *Config) SessionTTL() time.Duration {
	if c.Definition == nil || c.Definition.Cache.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Definition.Cache.SessionTTLMinutes) * time.Minute
}

// DurableOptions maps the config onto the durable store factory options.
func (c *Config) DurableOptions() durable.Options {
	d := c.Definition.Durable
	return durable.Options{
		Type: d.Type,
		SQL: durable.SQLOptions{
			Dialect: d.SQL.Dialect,
			DSN:     d.SQL.DSN,
		},
		AWS: durable.AWSConfig{
			Region:          d.AWS.Region,
			Prefix:          d.AWS.Prefix,
			Endpoint:        d.AWS.Endpoint,
			AccessKeyID:     d.AWS.AccessKeyID,
			SecretAccessKey: d.AWS.SecretAccessKey,
		},
		GCP: durable.GCPConfig{
			ProjectID:             d.GCP.ProjectID,
			Prefix:                d.GCP.Prefix,
			ServiceAccountKeyPath: d.GCP.ServiceAccountKeyPath,
		},
		Azure: durable.AzureConfig{
			VaultURL:     d.Azure.VaultURL,
			Prefix:       d.Azure.Prefix,
			TenantID:     d.Azure.TenantID,
			ClientID:     d.Azure.ClientID,
			ClientSecret: d.Azure.ClientSecret,
		},
	}
}

// EncryptionKey decodes the configured cipher key from the inline value or
// the key file.
func (c *Config) EncryptionKey() (keyID string, key []byte, err error) {
	enc := c.Definition.Encryption

	keyID = enc.KeyID
	if keyID == "" {
		keyID = "local"
	}

	switch {
	case enc.Key != "":
		key, err = base64.StdEncoding.DecodeString(enc.Key)
		if err != nil {
			return "", nil, cserrors.ConfigError{
				Field:      "encryption.key",
				Message:    "key is not valid base64",
				Suggestion: "Generate one with: head -c32 /dev/urandom | base64",
			}
		}
	case enc.KeyFile != "":
		raw, readErr := os.ReadFile(enc.KeyFile)
		if readErr != nil {
			return "", nil, cserrors.ConfigError{
				Field:      "encryption.key_file",
				Value:      enc.KeyFile,
				Message:    fmt.Sprintf("cannot read key file: %v", readErr),
				Suggestion: "Check the path and file permissions",
			}
		}
		key, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return "", nil, cserrors.ConfigError{
				Field:      "encryption.key_file",
				Message:    "key file content is not valid base64",
				Suggestion: "Generate one with: head -c32 /dev/urandom | base64 > keyfile",
			}
		}
	default:
		return "", nil, cserrors.ConfigError{
			Field:      "encryption",
			Message:    "either key or key_file is required",
			Suggestion: "Add 'encryption: { key_id: local, key: <base64> }' to credsync.yaml",
		}
	}

	if len(key) != 32 {
		return "", nil, cserrors.ConfigError{
			Field:      "encryption.key",
			Message:    fmt.Sprintf("key must decode to 32 bytes, got %d", len(key)),
			Suggestion: "Generate one with: head -c32 /dev/urandom | base64",
		}
	}

	return keyID, key, nil
}
