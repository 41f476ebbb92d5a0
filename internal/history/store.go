// Package history writes an audit row for every finished run to Postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"species-checker/internal/common/database"
	"species-checker/internal/runs"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS species_runs (
	id          UUID PRIMARY KEY,
	source      TEXT NOT NULL,
	name_count  INTEGER NOT NULL,
	row_count   INTEGER NOT NULL,
	min_score   DOUBLE PRECISION,
	status      TEXT NOT NULL,
	error_code  TEXT,
	duration_ms BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

const insertRunSQL = `
INSERT INTO species_runs (id, source, name_count, row_count, min_score, status, error_code, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

const recentRunsSQL = `
SELECT id, source, name_count, row_count, min_score, status, error_code, duration_ms, created_at
FROM species_runs
ORDER BY created_at DESC
LIMIT $1`

// Record is one row of species_runs.
type Record struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	NameCount  int       `json:"nameCount"`
	RowCount   int       `json:"rowCount"`
	MinScore   *float64  `json:"minScore,omitempty"`
	Status     string    `json:"status"`
	ErrorCode  *string   `json:"errorCode,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Store struct {
	db *database.PostgresClient
}

func NewStore(db *database.PostgresClient) *Store {
	return &Store{db: db}
}

// EnsureSchema creates species_runs when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create species_runs: %w", err)
	}
	return nil
}

// RecordRun inserts the audit row for a finished run.
func (s *Store) RecordRun(ctx context.Context, run *runs.Run, duration time.Duration) error {
	rec := FromRun(run, duration)
	_, err := s.db.Exec(ctx, insertRunSQL,
		rec.ID, rec.Source, rec.NameCount, rec.RowCount, rec.MinScore,
		rec.Status, rec.ErrorCode, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert species_runs %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query species_runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Source, &r.NameCount, &r.RowCount, &r.MinScore,
			&r.Status, &r.ErrorCode, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan species_runs: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// FromRun converts a finished run. MinScore stays nil for failed or empty runs.
func FromRun(run *runs.Run, duration time.Duration) Record {
	rec := Record{
		ID:         run.ID,
		Source:     run.Source,
		NameCount:  run.Total,
		RowCount:   len(run.Rows),
		Status:     string(run.Status),
		DurationMs: duration.Milliseconds(),
		CreatedAt:  run.CreatedAt,
	}
	if run.Presentation != nil && run.Presentation.RowCount > 0 {
		score := run.Presentation.MinScore
		rec.MinScore = &score
	}
	if run.ErrorCode != "" {
		code := run.ErrorCode
		rec.ErrorCode = &code
	}
	return rec
}
