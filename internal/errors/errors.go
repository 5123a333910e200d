// Package errors defines the user-facing error types for the credential
// engine. Errors that reach a caller carry a message, optional details and
// a concrete suggestion; everything else stays in logs.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ValidationError is returned when a credential save request is rejected
// before any write happens. The Field names the offending input field.
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e ValidationError) Error() string {
	msg := fmt.Sprintf("Invalid credential input for '%s': %s", e.Field, e.Message)
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// StoreError enhances durable store errors with backend context
func StoreError(store string, operation string, err error) error {
	suggestion := getStoreSuggestion(store, err)

	return UserError{
		Message:    fmt.Sprintf("%s store error during %s", store, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getStoreSuggestion returns helpful suggestions based on backend and error
func getStoreSuggestion(store string, err error) string {
	errStr := err.Error()

	switch store {
	case "sql":
		if strings.Contains(errStr, "connection refused") {
			return "Check that the database is running and the DSN host/port are correct"
		}
		if strings.Contains(errStr, "authentication failed") || strings.Contains(errStr, "Access denied") {
			return "Verify the database user and password in the durable store DSN"
		}
		if strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "doesn't exist") {
			return "Run the credential table migration before first use"
		}

	case "aws.secretsmanager":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue and secretsmanager:PutSecretValue"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "gcp.secretmanager":
		if strings.Contains(errStr, "PermissionDenied") {
			return "Grant roles/secretmanager.admin on the project to the active service account"
		}
		if strings.Contains(errStr, "could not find default credentials") {
			return "Run 'gcloud auth application-default login' or set service_account_key_path"
		}

	case "azure.keyvault":
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "AADSTS") {
			return "Check the Azure tenant/client credentials or managed identity configuration"
		}
		if strings.Contains(errStr, "403") {
			return "Grant the identity 'Key Vault Secrets Officer' on the vault"
		}
	}

	if strings.Contains(errStr, "timeout") || errors.Is(err, context.DeadlineExceeded) {
		return "The durable store timed out. Cached credentials were used if available"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and durable store configuration"
	}

	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}

	return false
}
