package notification

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/testutil"
)

func TestNotifySkipsSelfAndAnonymous(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewNotificationService(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "u", database.RoleListener)

	svc.Notify(ctx, Event{Recipient: u.ID, Actor: u.ID, Type: database.NotifyNewLike})
	svc.Notify(ctx, Event{Recipient: 0, Actor: u.ID, Type: database.NotifyNewLike})

	n, err := svc.UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotifyManyDedupes(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewNotificationService(db)
	ctx := context.Background()
	artist := testutil.CreateUser(t, db, "artist", database.RoleArtist)
	a := testutil.CreateUser(t, db, "a", database.RoleListener)
	b := testutil.CreateUser(t, db, "b", database.RoleListener)

	svc.NotifyMany(ctx, []uint{a.ID, b.ID, a.ID, artist.ID, 0}, Event{
		Actor:      artist.ID,
		Type:       database.NotifyNewRelease,
		EntityType: "song",
		EntityID:   7,
		Message:    "new song",
	})

	var rows []database.Notification
	require.NoError(t, db.Order("user_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, a.ID, rows[0].UserID)
	assert.Equal(t, b.ID, rows[1].UserID)
	require.NotNil(t, rows[0].ActorID)
	assert.Equal(t, artist.ID, *rows[0].ActorID)
}

func TestInbox(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewNotificationService(db)
	ctx := context.Background()
	actor := testutil.CreateUser(t, db, "actor", database.RoleListener)
	me := testutil.CreateUser(t, db, "me", database.RoleListener)
	other := testutil.CreateUser(t, db, "other", database.RoleListener)

	for i := 0; i < 3; i++ {
		svc.Notify(ctx, Event{Recipient: me.ID, Actor: actor.ID, Type: database.NotifyNewFollower})
	}
	svc.Notify(ctx, Event{Recipient: other.ID, Actor: actor.ID, Type: database.NotifyNewFollower})

	list, total, err := svc.List(ctx, me.ID, false, repository.NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)

	require.NoError(t, svc.MarkRead(ctx, me.ID, list[0].ID))
	require.NoError(t, svc.MarkRead(ctx, me.ID, list[0].ID))

	var theirs database.Notification
	require.NoError(t, db.Where("user_id = ?", other.ID).First(&theirs).Error)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(svc.MarkRead(ctx, me.ID, theirs.ID)))
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(svc.Delete(ctx, me.ID, theirs.ID)))

	_, total, err = svc.List(ctx, me.ID, true, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	n, err := svc.MarkAllRead(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err := svc.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.NoError(t, svc.Delete(ctx, me.ID, list[1].ID))
	_, total, err = svc.List(ctx, me.ID, false, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
