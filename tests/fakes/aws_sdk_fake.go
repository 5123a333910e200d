package fakes

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeSecretsManagerClient is an in-memory stand-in for the AWS Secrets
// Manager client, covering the calls the durable store makes: get, create,
// put and list.
type FakeSecretsManagerClient struct {
	// Secrets maps secret names to their current string value.
	Secrets map[string]string
	// Errors maps secret names to errors to return instead of a value.
	Errors map[string]error
	// ListErr makes ListSecrets fail.
	ListErr error
	// FailCreate makes the next CreateSecret fail with
	// ResourceExistsException, the shape of a lost creation race.
	FailCreate bool

	calls map[string]int
	mu    sync.Mutex
}

// NewFakeSecretsManagerClient creates an empty fake client.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetSecretValue"]++

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Secrets Manager can't find the specified secret.")}
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	}, nil
}

func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutSecretValue"]++

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Secrets Manager can't find the specified secret.")}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{Name: aws.String(name)}, nil
}

func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateSecret"]++

	name := aws.ToString(params.Name)
	if f.FailCreate {
		// The slot appeared between the caller's put and create.
		f.Secrets[name] = "raced"
		f.FailCreate = false
		return nil, &types.ResourceExistsException{Message: aws.String("The operation failed because the secret already exists.")}
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, &types.ResourceExistsException{Message: aws.String("The operation failed because the secret already exists.")}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.CreateSecretOutput{Name: aws.String(name)}, nil
}

func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListSecrets"]++

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return &secretsmanager.ListSecretsOutput{}, nil
}

// CallCount returns how many times the named method was invoked.
func (f *FakeSecretsManagerClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}
