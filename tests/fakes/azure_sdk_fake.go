package fakes

import (
	"context"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureSecretsClient is an in-memory stand-in for the Key Vault secrets
// client. Missing secrets answer with a 404 ResponseError, matching the
// real client's behavior.
type FakeAzureSecretsClient struct {
	// Secrets maps secret names to their current value.
	Secrets map[string]string
	// GetErr makes every GetSecret fail.
	GetErr error
	// SetErr makes every SetSecret fail.
	SetErr error

	calls map[string]int
	mu    sync.Mutex
}

// NewFakeAzureSecretsClient creates an empty fake client.
func NewFakeAzureSecretsClient() *FakeAzureSecretsClient {
	return &FakeAzureSecretsClient{
		Secrets: make(map[string]string),
		calls:   make(map[string]int),
	}
}

func (f *FakeAzureSecretsClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetSecret"]++

	if f.GetErr != nil {
		return azsecrets.GetSecretResponse{}, f.GetErr
	}
	value, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, &azcore.ResponseError{
			StatusCode: 404,
			ErrorCode:  "SecretNotFound",
		}
	}
	resp := azsecrets.GetSecretResponse{}
	resp.Value = &value
	return resp, nil
}

func (f *FakeAzureSecretsClient) SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetSecret"]++

	if f.SetErr != nil {
		return azsecrets.SetSecretResponse{}, f.SetErr
	}
	if parameters.Value != nil {
		f.Secrets[name] = *parameters.Value
	}
	return azsecrets.SetSecretResponse{}, nil
}

// CallCount returns how many times the named method was invoked.
func (f *FakeAzureSecretsClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}
