package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learntrack/internal/domain"
	"learntrack/internal/repository"
)

const createProgressTable = `
CREATE TABLE IF NOT EXISTS progress (
	username TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// ProgressRepository stores one JSON-encoded record per username.
type ProgressRepository struct {
	db *sql.DB
}

func NewProgressRepository(db *sql.DB) repository.ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createProgressTable); err != nil {
		return fmt.Errorf("create progress table: %w", err)
	}
	return nil
}

func (r *ProgressRepository) Get(ctx context.Context, username string) (domain.Progress, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT data
FROM progress
WHERE username = ?`,
		username,
	)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Progress{}, repository.ErrProgressNotFound
		}
		return domain.Progress{}, fmt.Errorf("scan progress: %w", err)
	}

	var record domain.Progress
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return domain.Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	if record.PhaseProgress == nil {
		record.PhaseProgress = map[string]bool{}
	}
	return record, nil
}

func (r *ProgressRepository) Put(ctx context.Context, username string, record domain.Progress) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
INSERT INTO progress (username, data, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(username) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		username,
		string(raw),
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (r *ProgressRepository) All(ctx context.Context) (map[string]domain.Progress, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT username, data FROM progress`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Progress)
	for rows.Next() {
		var (
			username string
			raw      string
		)
		if err := rows.Scan(&username, &raw); err != nil {
			return nil, fmt.Errorf("scan progress row: %w", err)
		}
		var record domain.Progress
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode progress for %s: %w", username, err)
		}
		out[username] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress rows: %w", err)
	}
	return out, nil
}
