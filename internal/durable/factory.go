package durable

import (
	"context"
	"fmt"
)

// Options selects and configures a durable backend from configuration.
type Options struct {
	// Type is one of "sql", "aws.secretsmanager", "gcp.secretmanager",
	// "azure.keyvault".
	Type string

	SQL   SQLOptions
	AWS   AWSConfig
	GCP   GCPConfig
	Azure AzureConfig
}

// SQLOptions configures the SQL backend.
type SQLOptions struct {
	// Dialect is "postgres" or "mysql".
	Dialect string
	DSN     string
}

// New builds the configured durable store.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Type {
	case "sql":
		if opts.SQL.DSN == "" {
			return nil, fmt.Errorf("sql durable store requires a dsn")
		}
		return OpenSQL(Dialect(opts.SQL.Dialect), opts.SQL.DSN)
	case "aws.secretsmanager":
		return NewAWSStore(ctx, opts.AWS)
	case "gcp.secretmanager":
		return NewGCPStore(ctx, opts.GCP)
	case "azure.keyvault":
		return NewAzureStore(opts.Azure)
	case "":
		return nil, fmt.Errorf("durable store type is required")
	default:
		return nil, fmt.Errorf("unsupported durable store type '%s'", opts.Type)
	}
}
