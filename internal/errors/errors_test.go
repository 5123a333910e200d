package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarbait/phaeton-credsync/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Failed to save credentials",
		Details:    "connection refused",
		Suggestion: "Run 'credsync doctor' to check store connectivity",
	}

	msg := err.Error()
	assert.Contains(t, msg, "Failed to save credentials")
	assert.Contains(t, msg, "Details: connection refused")
	assert.Contains(t, msg, "💡 Try: Run 'credsync doctor'")
}

func TestUserErrorFallsBackToWrappedMessage(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("dial tcp: connection refused")
	err := errors.UserError{Err: base}
	assert.Contains(t, err.Error(), "dial tcp: connection refused")
}

// TestUserErrorUnwrap verifies error unwrapping works correctly
func TestUserErrorUnwrap(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("underlying failure")
	err := errors.UserError{Message: "outer", Err: base}
	assert.ErrorIs(t, err, base)
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "durable.type",
		Value:      "etcd",
		Message:    "unsupported durable store type",
		Suggestion: "Use sql, aws.secretsmanager, gcp.secretmanager or azure.keyvault",
	}

	msg := err.Error()
	assert.Contains(t, msg, "durable.type")
	assert.Contains(t, msg, "etcd")
	assert.Contains(t, msg, "unsupported durable store type")
	assert.Contains(t, msg, "💡")
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := errors.ValidationError{
		Field:      "secretKey",
		Message:    "secret key matches the login password",
		Suggestion: "Paste the secret key issued for this owner instead",
	}

	msg := err.Error()
	assert.Contains(t, msg, "secretKey")
	assert.Contains(t, msg, "matches the login password")
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	ve := errors.ValidationError{Field: "secretKey", Message: "required"}
	assert.True(t, errors.IsValidation(ve))
	assert.True(t, errors.IsValidation(fmt.Errorf("save rejected: %w", ve)))
	assert.False(t, errors.IsValidation(fmt.Errorf("plain error")))
	assert.False(t, errors.IsValidation(nil))
}

// TestStoreError verifies backend errors are wrapped with suggestions
func TestStoreError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		store      string
		err        error
		suggestion string
	}{
		{
			name:       "sql connection refused",
			store:      "sql",
			err:        fmt.Errorf("dial tcp 127.0.0.1:5432: connection refused"),
			suggestion: "database is running",
		},
		{
			name:       "sql missing table",
			store:      "sql",
			err:        fmt.Errorf(`relation "phaeton_credentials" does not exist`),
			suggestion: "migration",
		},
		{
			name:       "aws access denied",
			store:      "aws.secretsmanager",
			err:        fmt.Errorf("AccessDenied: not authorized"),
			suggestion: "IAM permissions",
		},
		{
			name:       "gcp missing credentials",
			store:      "gcp.secretmanager",
			err:        fmt.Errorf("could not find default credentials"),
			suggestion: "gcloud auth application-default login",
		},
		{
			name:       "azure forbidden",
			store:      "azure.keyvault",
			err:        fmt.Errorf("GET https://vault.azure.net 403"),
			suggestion: "Key Vault Secrets Officer",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wrapped := errors.StoreError(tt.store, "get", tt.err)
			require.Error(t, wrapped)

			var userErr errors.UserError
			require.ErrorAs(t, wrapped, &userErr)
			assert.Contains(t, userErr.Message, tt.store)
			assert.Contains(t, userErr.Suggestion, tt.suggestion)
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}

// TestIsRetryable verifies retryable error detection
func TestIsRetryable(t *testing.T) {
	t.Parallel()

	retryable := []error{
		fmt.Errorf("operation timeout"),
		fmt.Errorf("connection reset by peer"),
		fmt.Errorf("ThrottlingException: rate limit exceeded"),
		fmt.Errorf("429 too many requests"),
	}
	for _, err := range retryable {
		assert.True(t, errors.IsRetryable(err), "expected retryable: %v", err)
	}

	notRetryable := []error{
		nil,
		fmt.Errorf("authentication failed"),
		fmt.Errorf("record not found"),
	}
	for _, err := range notRetryable {
		assert.False(t, errors.IsRetryable(err), "expected not retryable: %v", err)
	}
}
