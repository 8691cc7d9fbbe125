// Package memory implements the repository interfaces over process-local
// maps. State lives for the process lifetime only; it backs the memory
// database driver and the test suites.
package memory

import (
	"context"
	"sync"
	"time"

	"learntrack/internal/domain"
	"learntrack/internal/repository"
)

type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byName map[string]*domain.User
	byID   map[int64]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		nextID: 1,
		byName: make(map[string]*domain.User),
		byID:   make(map[int64]*domain.User),
	}
}

func (r *UserRepository) Init(ctx context.Context) error {
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[user.Username]; ok {
		return 0, repository.ErrUserExists
	}

	now := time.Now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.nextID++

	stored := *user
	r.byName[user.Username] = &stored
	r.byID[user.ID] = &stored
	return user.ID, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byName[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

type ProgressRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Progress
}

func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{
		records: make(map[string]domain.Progress),
	}
}

func (r *ProgressRepository) Init(ctx context.Context) error {
	return nil
}

func (r *ProgressRepository) Get(ctx context.Context, username string) (domain.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[username]
	if !ok {
		return domain.Progress{}, repository.ErrProgressNotFound
	}
	return copyRecord(record), nil
}

func (r *ProgressRepository) Put(ctx context.Context, username string, record domain.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[username] = copyRecord(record)
	return nil
}

func (r *ProgressRepository) All(ctx context.Context) (map[string]domain.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.Progress, len(r.records))
	for username, record := range r.records {
		out[username] = copyRecord(record)
	}
	return out, nil
}

func copyRecord(record domain.Progress) domain.Progress {
	copied := domain.Progress{
		CompletedModules: record.CompletedModules,
		PhaseProgress:    make(map[string]bool, len(record.PhaseProgress)),
	}
	for key, done := range record.PhaseProgress {
		copied.PhaseProgress[key] = done
	}
	return copied
}

var (
	_ repository.UserRepository     = (*UserRepository)(nil)
	_ repository.ProgressRepository = (*ProgressRepository)(nil)
)
