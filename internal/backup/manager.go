// Package backup periodically exports the progress store to object storage
// so a process restart does not silently lose completion state.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"learntrack/internal/service"
	"learntrack/internal/storage"
)

// Manager coordinates the snapshot loop and retention pruning.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	RunOnce(ctx context.Context) error
}

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	Keep      int
	Logger    *logrus.Logger
}

type manager struct {
	cfg      Config
	progress service.ProgressService
	storage  storage.Service

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, progress service.ProgressService, storageSvc storage.Service) Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 10
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "learntrack-snapshots"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:      cfg,
		progress: progress,
		storage:  storageSvc,
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return fmt.Errorf("backup bucket is required")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.loop()

	m.cfg.Logger.Infof("backup manager started, interval %s, keeping %d snapshots", m.cfg.Interval, m.cfg.Keep)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("backup manager stopped")
}

func (m *manager) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunOnce(m.ctx); err != nil {
				m.cfg.Logger.Errorf("snapshot run: %v", err)
			}
		}
	}
}

// RunOnce exports every progress record, uploads one snapshot object, and
// prunes snapshots beyond the retention count.
func (m *manager) RunOnce(ctx context.Context) error {
	snapshot, err := m.progress.Export(ctx)
	if err != nil {
		return fmt.Errorf("export progress: %w", err)
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	key := fmt.Sprintf("%s/snapshot-%s-%s.json",
		m.cfg.KeyPrefix,
		snapshot.ExportedAt.Format("20060102T150405Z"),
		uuid.NewString(),
	)

	logger := m.cfg.Logger.WithField("key", key)

	dest, err := m.storage.Upload(ctx, m.cfg.Bucket, key, body)
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	logger.Infof("snapshot of %d records uploaded to %s", len(snapshot.Records), dest)

	if err := m.prune(ctx); err != nil {
		logger.Warnf("prune snapshots: %v", err)
	}
	return nil
}

func (m *manager) prune(ctx context.Context) error {
	objects, err := m.storage.ListObjects(ctx, m.cfg.Bucket, m.cfg.KeyPrefix+"/")
	if err != nil {
		return err
	}
	if len(objects) <= m.cfg.Keep {
		return nil
	}

	// keys embed the export timestamp, so lexical order is chronological
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	stale := make([]string, 0, len(objects)-m.cfg.Keep)
	for _, obj := range objects[:len(objects)-m.cfg.Keep] {
		stale = append(stale, obj.Key)
	}

	if err := m.storage.DeleteObjects(ctx, m.cfg.Bucket, stale); err != nil {
		return err
	}
	m.cfg.Logger.Infof("pruned %d stale snapshots", len(stale))
	return nil
}

var _ Manager = (*manager)(nil)
