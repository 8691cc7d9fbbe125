package repository

import (
	"context"
	"errors"

	"learntrack/internal/domain"
)

// ErrProgressNotFound is returned when no record exists for a username.
var ErrProgressNotFound = errors.New("progress not found")

// ProgressRepository defines persistence operations for progress records.
// Put replaces the stored record wholesale; there is no merge.
type ProgressRepository interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, username string) (domain.Progress, error)
	Put(ctx context.Context, username string, record domain.Progress) error
	All(ctx context.Context) (map[string]domain.Progress, error)
}
