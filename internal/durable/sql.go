package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Drivers for the two supported dialects.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
)

// Dialect selects the SQL flavor for placeholders and upsert syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// SQLStore keeps credential records in a relational table keyed by
// (owner_id, tenant_id). The secret key column stores the encrypted
// envelope only.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens a database handle for the dialect and wraps it in a store.
// An empty dialect means postgres, matching the config validator which
// leaves the field optional. The table is not created here; see
// EnsureSchema.
func OpenSQL(dialect Dialect, dsn string) (*SQLStore, error) {
	if dialect == "" {
		dialect = DialectPostgres
	}

	var driver string
	switch dialect {
	case DialectPostgres:
		driver = "postgres"
	case DialectMySQL:
		driver = "mysql"
	default:
		return nil, fmt.Errorf("unsupported sql dialect '%s'", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}
	return NewSQLStore(db, dialect), nil
}

// NewSQLStore wraps an existing handle. Used directly by tests with a mock
// connection.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Name() string { return "sql" }

// EnsureSchema creates the credential table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS phaeton_credentials (
			owner_id           VARCHAR(128) NOT NULL,
			tenant_id          VARCHAR(128) NOT NULL,
			secret_key_enc     TEXT         NOT NULL,
			primary_agent_id   VARCHAR(255) NOT NULL DEFAULT '',
			secondary_agent_id VARCHAR(255) NOT NULL DEFAULT '',
			updated_at         TIMESTAMP    NOT NULL,
			PRIMARY KEY (owner_id, tenant_id)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create credential table: %w", err)
	}
	return nil
}

// Get returns the record for the key, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, key credential.Key) (credential.CredentialSet, error) {
	query := s.rebind(`
		SELECT secret_key_enc, primary_agent_id, secondary_agent_id, updated_at
		FROM phaeton_credentials
		WHERE owner_id = ? AND tenant_id = ?`)

	set := credential.CredentialSet{OwnerID: key.OwnerID, TenantID: key.TenantID}
	row := s.db.QueryRowContext(ctx, query, key.OwnerID, key.TenantID)
	err := row.Scan(&set.SecretKey, &set.PrimaryAgentID, &set.SecondaryAgentID, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credential.CredentialSet{}, ErrNotFound
		}
		return credential.CredentialSet{}, fmt.Errorf("credential select failed: %w", err)
	}
	return set, nil
}

// Upsert replaces the whole record for the key. Concurrent writers resolve
// last-write-wins at the row.
func (s *SQLStore) Upsert(ctx context.Context, set credential.CredentialSet) error {
	var query string
	switch s.dialect {
	case DialectMySQL:
		query = `
			INSERT INTO phaeton_credentials
				(owner_id, tenant_id, secret_key_enc, primary_agent_id, secondary_agent_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				secret_key_enc = VALUES(secret_key_enc),
				primary_agent_id = VALUES(primary_agent_id),
				secondary_agent_id = VALUES(secondary_agent_id),
				updated_at = VALUES(updated_at)`
	default:
		query = s.rebind(`
			INSERT INTO phaeton_credentials
				(owner_id, tenant_id, secret_key_enc, primary_agent_id, secondary_agent_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (owner_id, tenant_id) DO UPDATE SET
				secret_key_enc = EXCLUDED.secret_key_enc,
				primary_agent_id = EXCLUDED.primary_agent_id,
				secondary_agent_id = EXCLUDED.secondary_agent_id,
				updated_at = EXCLUDED.updated_at`)
	}

	_, err := s.db.ExecContext(ctx, query,
		set.OwnerID, set.TenantID, set.SecretKey,
		set.PrimaryAgentID, set.SecondaryAgentID, set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("credential upsert failed: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $n for postgres. MySQL keeps ?.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

var _ Store = (*SQLStore)(nil)
