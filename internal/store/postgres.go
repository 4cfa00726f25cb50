package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sondelabs/sonde/pkg/forms"
)

// ErrNotFound is returned by Get when no interview exists with the given id.
var ErrNotFound = errors.New("store: interview not found")

const ddlInterviews = `
CREATE TABLE IF NOT EXISTS interviews (
    id          UUID         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    mode        TEXT         NOT NULL,
    account_id  TEXT         NOT NULL DEFAULT '',
    project_id  TEXT         NOT NULL DEFAULT '',
    user_id     TEXT         NOT NULL DEFAULT '',
    data        JSONB        NOT NULL DEFAULT '{}',
    transcript  JSONB        NOT NULL DEFAULT '[]',
    completed   BOOLEAN      NOT NULL DEFAULT false,
    started_at  TIMESTAMPTZ  NOT NULL,
    ended_at    TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interviews_session_id
    ON interviews (session_id);

CREATE INDEX IF NOT EXISTS idx_interviews_project_id
    ON interviews (project_id);
`

// PostgresStore is a [Store] backed by a PostgreSQL interviews table. All
// methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that *PostgresStore satisfies [Store].
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore establishes a connection pool to the database at dsn and
// runs [Migrate] to ensure the interviews table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the interviews table and its indexes if missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlInterviews); err != nil {
		return fmt.Errorf("store: apply interviews ddl: %w", err)
	}
	return nil
}

// Ping probes the underlying connection pool. Used by the readiness check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Save implements [Store].
func (s *PostgresStore) Save(ctx context.Context, iv Interview) (string, error) {
	id := iv.ID
	if id == "" {
		id = uuid.NewString()
	}

	data, err := json.Marshal(iv.Data)
	if err != nil {
		return "", fmt.Errorf("store: marshal form data: %w", err)
	}
	transcript, err := json.Marshal(iv.Transcript)
	if err != nil {
		return "", fmt.Errorf("store: marshal transcript: %w", err)
	}

	const q = `
		INSERT INTO interviews
		    (id, session_id, mode, account_id, project_id, user_id, data, transcript, completed, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
		    data       = EXCLUDED.data,
		    transcript = EXCLUDED.transcript,
		    completed  = EXCLUDED.completed,
		    ended_at   = EXCLUDED.ended_at`

	_, err = s.pool.Exec(ctx, q,
		id,
		iv.SessionID,
		string(iv.Mode),
		iv.AccountID,
		iv.ProjectID,
		iv.UserID,
		data,
		transcript,
		iv.Completed,
		iv.StartedAt,
		iv.EndedAt,
	)
	if err != nil {
		return "", fmt.Errorf("store: save interview: %w", err)
	}
	return id, nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id string) (*Interview, error) {
	const q = `
		SELECT id, session_id, mode, account_id, project_id, user_id, data, transcript, completed, started_at, ended_at
		FROM   interviews
		WHERE  id = $1`

	var (
		iv         Interview
		mode       string
		data       []byte
		transcript []byte
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&iv.ID,
		&iv.SessionID,
		&mode,
		&iv.AccountID,
		&iv.ProjectID,
		&iv.UserID,
		&data,
		&transcript,
		&iv.Completed,
		&iv.StartedAt,
		&iv.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get interview: %w", err)
	}

	iv.Mode = forms.Mode(mode)
	if iv.Data, err = decodeFormData(iv.Mode, data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(transcript, &iv.Transcript); err != nil {
		return nil, fmt.Errorf("store: decode transcript: %w", err)
	}
	return &iv, nil
}

// decodeFormData unmarshals the JSONB data column into the mode's form type.
func decodeFormData(mode forms.Mode, data []byte) (any, error) {
	switch mode {
	case forms.ModeDiscovery:
		d := forms.NewDiscoveryData()
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("store: decode discovery data: %w", err)
		}
		return d, nil
	case forms.ModePostSales:
		p := forms.NewPostSalesData()
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("store: decode post-sales data: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("store: unknown mode %q", mode)
	}
}
