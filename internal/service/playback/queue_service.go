// Package playback persists each user's playback queue.
package playback

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/queue"
	"github.com/weiwangfds/melodia/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueueService playback queue operations.
type QueueService interface {
	// Get returns the restored queue, or an empty one.
	Get(ctx context.Context, ac access.Context) (*queue.State, error)
	// Apply runs one action and persists the result.
	Apply(ctx context.Context, ac access.Context, action queue.Action) (*queue.State, error)
	Clear(ctx context.Context, ac access.Context) error
}

type queueService struct {
	db      *gorm.DB
	reducer *queue.Reducer
}

// NewQueueService creates the queue service.
func NewQueueService(db *gorm.DB, reducer *queue.Reducer) QueueService {
	return &queueService{db: db, reducer: reducer}
}

// load reads and restores the stored state inside db, which may be a transaction.
func (s *queueService) load(ctx context.Context, db *gorm.DB, ac access.Context) (queue.State, error) {
	var row database.PlaybackQueue
	err := db.WithContext(ctx).Where("user_id = ?", ac.UserID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return queue.Empty(), nil
	}
	if err != nil {
		return queue.State{}, apperrors.FromDB(err, "queue")
	}

	var stored queue.State
	if err := json.Unmarshal([]byte(row.State), &stored); err != nil {
		logger.WithFields(logrus.Fields{
			"user_id": ac.UserID,
			"error":   err.Error(),
		}).Warn("[queue] discarding unreadable queue state")
		empty := queue.Empty()
		empty.Version = row.Version
		return empty, nil
	}

	known, err := s.knownSongs(ctx, db, ac, append(stored.SongIDs(), songIDs(stored.Original)...))
	if err != nil {
		return queue.State{}, err
	}
	restored := s.reducer.Restore(stored, known)
	if dropped := len(stored.Items) - len(restored.Items); dropped > 0 {
		logger.WithFields(logrus.Fields{
			"user_id": ac.UserID,
			"dropped": dropped,
		}).Info("[queue] dropped unavailable songs")
	}
	return restored, nil
}

// knownSongs reports which ids refer to songs the caller can play.
func (s *queueService) knownSongs(ctx context.Context, db *gorm.DB, ac access.Context, ids []uint) (map[uint]bool, error) {
	known := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	var found []uint
	err := db.WithContext(ctx).Model(&database.Song{}).
		Where("id IN ?", ids).
		Scopes(repository.VisibleSongs(ac, "songs")).
		Pluck("id", &found).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	for _, id := range found {
		known[id] = true
	}
	return known, nil
}

func (s *queueService) save(ctx context.Context, db *gorm.DB, ac access.Context, st queue.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return apperrors.Internal(err)
	}
	row := database.PlaybackQueue{
		UserID:    ac.UserID,
		State:     string(raw),
		Version:   st.Version,
		UpdatedAt: time.Now().UTC(),
	}
	err = db.WithContext(ctx).Omit("User").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "version", "updated_at"}),
	}).Create(&row).Error
	return apperrors.FromDB(err, "queue")
}

func (s *queueService) Get(ctx context.Context, ac access.Context) (*queue.State, error) {
	st, err := s.load(ctx, s.db, ac)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *queueService) Apply(ctx context.Context, ac access.Context, action queue.Action) (*queue.State, error) {
	var result queue.State
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(ctx, tx, ac)
		if err != nil {
			return err
		}

		if action.AddsSongs() && len(action.SongIDs) > 0 {
			known, err := s.knownSongs(ctx, tx, ac, action.SongIDs)
			if err != nil {
				return err
			}
			for _, id := range action.SongIDs {
				if !known[id] {
					return apperrors.NotFound("song")
				}
			}
		}

		next, err := s.reducer.Reduce(current, action)
		if err != nil {
			return reduceError(err)
		}
		if err := s.save(ctx, tx, ac, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "queue")
	}
	return &result, nil
}

func (s *queueService) Clear(ctx context.Context, ac access.Context) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", ac.UserID).Delete(&database.PlaybackQueue{}).Error
	return apperrors.FromDB(err, "queue")
}

func reduceError(err error) error {
	if errors.Is(err, queue.ErrItemNotFound) {
		return apperrors.NotFound("queue item")
	}
	return apperrors.BadRequest(err.Error())
}

func songIDs(items []queue.Item) []uint {
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.SongID
	}
	return ids
}
