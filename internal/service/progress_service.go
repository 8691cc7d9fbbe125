package service

import (
	"context"
	"errors"
	"time"

	"learntrack/internal/domain"
	"learntrack/internal/repository"
)

// ProgressService coordinates progress record operations backed by the repository.
type ProgressService interface {
	Save(ctx context.Context, username string, record domain.Progress) error
	Load(ctx context.Context, username string) (domain.Progress, error)
	Export(ctx context.Context) (*Snapshot, error)
}

// Snapshot is a point-in-time export of every stored progress record.
type Snapshot struct {
	ExportedAt time.Time                  `json:"exported_at"`
	Records    map[string]domain.Progress `json:"records"`
}

type progressService struct {
	progress repository.ProgressRepository
}

func NewProgressService(progress repository.ProgressRepository) ProgressService {
	return &progressService{progress: progress}
}

// Save replaces the stored record wholesale. Saves racing on the same
// username resolve last-write-wins.
func (s *progressService) Save(ctx context.Context, username string, record domain.Progress) error {
	if record.PhaseProgress == nil {
		record.PhaseProgress = map[string]bool{}
	}
	return s.progress.Put(ctx, username, record)
}

// Load returns the stored record, or the default empty record when the user
// has never saved one.
func (s *progressService) Load(ctx context.Context, username string) (domain.Progress, error) {
	record, err := s.progress.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return domain.DefaultProgress(), nil
		}
		return domain.Progress{}, err
	}
	return record, nil
}

func (s *progressService) Export(ctx context.Context) (*Snapshot, error) {
	records, err := s.progress.All(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ExportedAt: time.Now().UTC(),
		Records:    records,
	}, nil
}
