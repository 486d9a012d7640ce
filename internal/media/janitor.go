package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeletionQueue receives keys whose deletion failed.
type DeletionQueue interface {
	Enqueue(ctx context.Context, key string, cause error)
}

// JanitorConfig controls the retry schedule.
type JanitorConfig struct {
	Interval   time.Duration
	Backoff    time.Duration
	MaxRetries int
	BatchSize  int
}

// Janitor persists failed blob deletions and retries them in the background.
// The n-th retry waits n*n*Backoff; rows that exhaust MaxRetries stay in the
// table for an operator to inspect.
type Janitor struct {
	db       *gorm.DB
	provider storage.Provider
	cfg      JanitorConfig
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewJanitor creates a janitor. Zero config values fall back to defaults.
func NewJanitor(db *gorm.DB, provider storage.Provider, cfg JanitorConfig) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 5
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	return &Janitor{db: db, provider: provider, cfg: cfg, now: time.Now}
}

// Enqueue records key for a later retry. A key already queued is left alone.
func (j *Janitor) Enqueue(ctx context.Context, key string, cause error) {
	row := database.BlobDeletion{
		Key:         key,
		NextAttempt: j.now().UTC().Add(j.cfg.Backoff),
	}
	if cause != nil {
		row.LastError = cause.Error()
	}
	err := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "blob_key"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		logger.Errorf("[janitor] cannot queue %s for deletion: %v", key, err)
	}
}

// Start launches the retry loop. It stops when ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return fmt.Errorf("janitor is already running")
	}
	j.running = true
	j.stopChan = make(chan struct{})
	j.wg.Add(1)
	go j.loop(ctx)

	logger.WithFields(map[string]interface{}{
		"interval":    j.cfg.Interval.String(),
		"max_retries": j.cfg.MaxRetries,
	}).Info("[janitor] started")
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	close(j.stopChan)
	j.wg.Wait()
	j.running = false
	logger.Info("[janitor] stopped")
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopChan:
			return
		case <-ticker.C:
			deleted, failed, err := j.RunOnce(ctx)
			if err != nil {
				logger.Errorf("[janitor] pass failed: %v", err)
				continue
			}
			if deleted+failed > 0 {
				logger.Infof("[janitor] %d blobs deleted, %d still failing", deleted, failed)
			}
		}
	}
}

// RunOnce retries every due deletion once.
func (j *Janitor) RunOnce(ctx context.Context) (deleted, failed int, err error) {
	now := j.now().UTC()
	var due []database.BlobDeletion
	err = j.db.WithContext(ctx).
		Where("next_attempt <= ? AND attempts < ?", now, j.cfg.MaxRetries).
		Order("next_attempt").Limit(j.cfg.BatchSize).
		Find(&due).Error
	if err != nil {
		return 0, 0, fmt.Errorf("load due deletions: %w", err)
	}

	for _, row := range due {
		if ctx.Err() != nil {
			return deleted, failed, ctx.Err()
		}
		if derr := j.provider.Delete(ctx, row.Key); derr != nil {
			failed++
			j.reschedule(ctx, row, derr, now)
			continue
		}
		if err := j.db.WithContext(ctx).Delete(&database.BlobDeletion{}, row.ID).Error; err != nil {
			return deleted, failed, fmt.Errorf("drop deletion %d: %w", row.ID, err)
		}
		deleted++
	}
	return deleted, failed, nil
}

func (j *Janitor) reschedule(ctx context.Context, row database.BlobDeletion, cause error, now time.Time) {
	attempts := row.Attempts + 1
	if attempts >= j.cfg.MaxRetries {
		logger.WithField("key", row.Key).Errorf("[janitor] giving up after %d attempts: %v", attempts, cause)
	}
	err := j.db.WithContext(ctx).Model(&database.BlobDeletion{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"attempts":     attempts,
		"next_attempt": now.Add(time.Duration(attempts*attempts) * j.cfg.Backoff),
		"last_error":   cause.Error(),
	}).Error
	if err != nil {
		logger.Errorf("[janitor] cannot reschedule %s: %v", row.Key, err)
	}
}
