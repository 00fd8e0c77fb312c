// Package postgres implements a session snapshot store on PostgreSQL via
// pgx.  Each session is one row keyed by id with the full snapshot as JSONB,
// so resume can rebuild the session from a single read.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/dao"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    graph_id   TEXT NOT NULL,
    status     TEXT NOT NULL,
    snapshot   JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_graph_id ON sessions(graph_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status   ON sessions(status);
`

// Service implements dao.Service using a pgx connection pool.
type Service struct {
	db *pgxpool.Pool
}

var _ dao.Service[string, execution.Snapshot] = (*Service)(nil)

// New creates a session store backed by the given pool.
func New(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CreateSchema creates the sessions table if it does not exist.
func (s *Service) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the sessions table.
func (s *Service) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS sessions;`)
	return err
}

// Save upserts the snapshot.
func (s *Service) Save(ctx context.Context, snapshot *execution.Snapshot) error {
	if snapshot == nil {
		return dao.ErrNilEntity
	}
	if snapshot.ID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO sessions (id, graph_id, status, snapshot, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    snapshot = EXCLUDED.snapshot,
    updated_at = EXCLUDED.updated_at`,
		snapshot.ID, snapshot.GraphID, string(snapshot.Status), data, snapshot.CreatedAt, snapshot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("session: upsert: %w", err)
	}
	return nil
}

// Load reads one snapshot by session id.
func (s *Service) Load(ctx context.Context, id string) (*execution.Snapshot, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT snapshot FROM sessions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dao.ErrNotFound
		}
		return nil, fmt.Errorf("session: query: %w", err)
	}
	var snapshot execution.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &snapshot, nil
}

// Delete removes one snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dao.ErrNotFound
	}
	return nil
}

// List returns snapshots, optionally filtered by a Status parameter.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Snapshot, error) {
	query := `SELECT snapshot FROM sessions ORDER BY updated_at DESC`
	var args []interface{}
	if status, ok := statusFilter(parameters); ok {
		query = `SELECT snapshot FROM sessions WHERE status = ANY($1) ORDER BY updated_at DESC`
		args = append(args, status)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: query: %w", err)
	}
	defer rows.Close()

	var snapshots []*execution.Snapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("session: scan: %w", err)
		}
		var snapshot execution.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return nil, fmt.Errorf("session: unmarshal: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: rows: %w", err)
	}
	return snapshots, nil
}

func statusFilter(parameters []*dao.Parameter) ([]string, bool) {
	if len(parameters) != 1 || parameters[0].Name != "Status" {
		return nil, false
	}
	switch actual := parameters[0].Value.(type) {
	case string:
		return []string{actual}, true
	case []string:
		return actual, true
	}
	return nil, false
}
