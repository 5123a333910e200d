package durable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

// defaultAWSPrefix namespaces credential records inside the account.
const defaultAWSPrefix = "phaeton/credentials"

// SecretsManagerAPI is the slice of the AWS Secrets Manager client the
// store uses. Narrow so tests can substitute a mock.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// AWSStore keeps one Secrets Manager secret per (owner, tenant) slot, the
// value being the JSON credential record with the secret key encrypted.
type AWSStore struct {
	client SecretsManagerAPI
	prefix string
}

// AWSConfig configures the AWS backend. Endpoint and the static credential
// pair exist for LocalStack and tests.
type AWSConfig struct {
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// AWSOption is a functional option for the AWS store.
type AWSOption func(*AWSStore)

// WithSecretsManagerClient injects a custom client (for testing).
func WithSecretsManagerClient(client SecretsManagerAPI) AWSOption {
	return func(s *AWSStore) {
		s.client = client
	}
}

// NewAWSStore builds the store, creating a real client unless one was
// injected through options.
func NewAWSStore(ctx context.Context, cfg AWSConfig, opts ...AWSOption) (*AWSStore, error) {
	s := &AWSStore{prefix: cfg.Prefix}
	if s.prefix == "" {
		s.prefix = defaultAWSPrefix
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}

		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(region))
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}

	return s, nil
}

func (s *AWSStore) Name() string { return "aws.secretsmanager" }

// secretName maps a composite key onto a Secrets Manager name.
func (s *AWSStore) secretName(key credential.Key) string {
	return strings.TrimSuffix(s.prefix, "/") + "/" + key.TenantID + "/" + key.OwnerID
}

// Get fetches and decodes the record for the key.
func (s *AWSStore) Get(ctx context.Context, key credential.Key) (credential.CredentialSet, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretName(key)),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return credential.CredentialSet{}, ErrNotFound
		}
		return credential.CredentialSet{}, fmt.Errorf("secrets manager get failed: %w", err)
	}

	var payload []byte
	switch {
	case out.SecretString != nil:
		payload = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		payload = out.SecretBinary
	default:
		return credential.CredentialSet{}, fmt.Errorf("secret '%s' has no value", s.secretName(key))
	}

	return unmarshalRecord(payload)
}

// Upsert writes the full record. New slots are created on first save;
// existing ones get a new version, which Secrets Manager resolves
// last-write-wins.
func (s *AWSStore) Upsert(ctx context.Context, set credential.CredentialSet) error {
	payload, err := marshalRecord(set)
	if err != nil {
		return err
	}

	name := s.secretName(set.Key())
	value := string(payload)

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}
	if !isAWSNotFound(err) {
		return fmt.Errorf("secrets manager put failed: %w", err)
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		// A concurrent first save may have created the slot between the
		// two calls; fall back to a version write.
		var exists *types.ResourceExistsException
		if errors.As(err, &exists) {
			_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
				SecretId:     aws.String(name),
				SecretString: aws.String(value),
			})
		}
	}
	if err != nil {
		return fmt.Errorf("secrets manager create failed: %w", err)
	}
	return nil
}

// Ping performs a minimal authenticated call.
func (s *AWSStore) Ping(ctx context.Context) error {
	one := int32(1)
	_, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: &one})
	if err != nil {
		return fmt.Errorf("secrets manager unreachable: %w", err)
	}
	return nil
}

func isAWSNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}

var _ Store = (*AWSStore)(nil)
