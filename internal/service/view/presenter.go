// Package view turns rows into the JSON shapes returned by the API. Blob keys
// never leave the server: every view carries signed URLs instead.
package view

import (
	"context"
	"fmt"

	"github.com/weiwangfds/melodia/internal/media"
	"gorm.io/gorm"
)

// Presenter builds views, batching the per-row lookups (credits, counts,
// liked_by_me) into one query per kind.
type Presenter struct {
	db    *gorm.DB
	media *media.Service
}

// NewPresenter creates a presenter.
func NewPresenter(db *gorm.DB, mediaService *media.Service) *Presenter {
	return &Presenter{db: db, media: mediaService}
}

// URL signs key; empty when key is empty.
func (p *Presenter) URL(ctx context.Context, key string) string {
	if p.media == nil {
		return ""
	}
	return p.media.URL(ctx, key)
}

type countRow struct {
	ID uint
	N  int64
}

// countBy counts rows of table grouped by column for ids. table and column
// are identifiers from this package, never user input.
func (p *Presenter) countBy(ctx context.Context, table, column string, ids []uint, where ...interface{}) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := p.db.WithContext(ctx).Table(table).
		Select(fmt.Sprintf("%s AS id, COUNT(*) AS n", column)).
		Where(column+" IN ?", ids)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	var rows []countRow
	if err := q.Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.N
	}
	return out, nil
}

// likedBy returns which of ids userID has a row for in table.
func (p *Presenter) likedBy(ctx context.Context, table, column string, userID uint, ids []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(ids) == 0 {
		return out, nil
	}
	var liked []uint
	err := p.db.WithContext(ctx).Table(table).
		Where("user_id = ? AND "+column+" IN ?", userID, ids).
		Pluck(column, &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}
