package media

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/database"
	"gorm.io/gorm"
)

// flakyProvider fails deletes while down is set.
type flakyProvider struct {
	down    bool
	deleted []string
}

func (p *flakyProvider) Name() string { return "flaky" }
func (p *flakyProvider) Upload(context.Context, string, io.Reader, int64, string) error {
	return nil
}
func (p *flakyProvider) Exists(context.Context, string) (bool, error) { return false, nil }
func (p *flakyProvider) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}
func (p *flakyProvider) TestConnection(context.Context) error { return nil }
func (p *flakyProvider) Delete(_ context.Context, key string) error {
	if p.down {
		return errors.New("connection reset")
	}
	p.deleted = append(p.deleted, key)
	return nil
}

func janitorDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(database.Config{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func TestJanitorRetriesFailedDeletes(t *testing.T) {
	db := janitorDB(t)
	p := &flakyProvider{down: true}
	j := NewJanitor(db, p, JanitorConfig{Backoff: time.Minute, MaxRetries: 3})
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return clock }

	svc := NewService(p, Policy{}, time.Hour)
	svc.SetDeletionQueue(j)
	ctx := context.Background()

	svc.Delete(ctx, "audio/a.mp3", "", "audio/a.mp3")

	var rows []database.BlobDeletion
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1, "a key is queued once")
	assert.Equal(t, "audio/a.mp3", rows[0].Key)
	assert.Equal(t, "connection reset", rows[0].LastError)

	deleted, failed, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted+failed, "nothing is due before the backoff")

	clock = clock.Add(time.Minute)
	deleted, failed, err = j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
	assert.Equal(t, 1, failed)

	var row database.BlobDeletion
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, 1, row.Attempts)
	assert.True(t, row.NextAttempt.Equal(clock.Add(time.Minute)))

	p.down = false
	clock = clock.Add(time.Minute)
	deleted, _, err = j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"audio/a.mp3"}, p.deleted)

	var left int64
	require.NoError(t, db.Model(&database.BlobDeletion{}).Count(&left).Error)
	assert.Zero(t, left)
}

func TestJanitorGivesUp(t *testing.T) {
	db := janitorDB(t)
	p := &flakyProvider{down: true}
	j := NewJanitor(db, p, JanitorConfig{Backoff: time.Second, MaxRetries: 2})
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return clock }
	ctx := context.Background()

	j.Enqueue(ctx, "images/cover.png", errors.New("timeout"))
	for i := 0; i < 3; i++ {
		clock = clock.Add(time.Hour)
		_, _, err := j.RunOnce(ctx)
		require.NoError(t, err)
	}

	var row database.BlobDeletion
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, 2, row.Attempts, "exhausted rows are no longer picked up")
}

func TestJanitorStartStop(t *testing.T) {
	j := NewJanitor(janitorDB(t), &flakyProvider{}, JanitorConfig{Interval: time.Hour})
	ctx := context.Background()
	require.NoError(t, j.Start(ctx))
	assert.Error(t, j.Start(ctx))
	j.Stop()
	j.Stop()
	require.NoError(t, j.Start(ctx))
	j.Stop()
}
