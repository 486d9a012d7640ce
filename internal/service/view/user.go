package view

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
)

// User is the public shape of an account. Email and last login are only
// shown to the account itself and admins.
type User struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Bio         string     `json:"bio"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Role        string     `json:"role"`
	Status      string     `json:"status,omitempty"`
	Email       string     `json:"email,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Profile adds the social counters of GET /users/:id.
type Profile struct {
	User
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
	FollowedByMe   bool  `json:"followed_by_me"`
	ArtistID       *uint `json:"artist_id,omitempty"`
}

// User builds the view of u as seen by ac.
func (p *Presenter) User(ctx context.Context, ac access.Context, u *database.User) User {
	v := User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarURL:   p.URL(ctx, u.AvatarKey),
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
	if ac.CanModify(u.ID) {
		v.Status = u.Status
		v.Email = u.Email
		v.LastLoginAt = u.LastLoginAt
	}
	return v
}

// Users builds views for a list.
func (p *Presenter) Users(ctx context.Context, ac access.Context, users []database.User) []User {
	out := make([]User, 0, len(users))
	for i := range users {
		out = append(out, p.User(ctx, ac, &users[i]))
	}
	return out
}

// Profile builds the profile of u with follow counters.
func (p *Presenter) Profile(ctx context.Context, ac access.Context, u *database.User) (*Profile, error) {
	db := p.db.WithContext(ctx)
	prof := &Profile{User: p.User(ctx, ac, u)}

	if err := db.Model(&database.UserFollow{}).Where("followee_id = ?", u.ID).Count(&prof.FollowerCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&database.UserFollow{}).Where("follower_id = ?", u.ID).Count(&prof.FollowingCount).Error; err != nil {
		return nil, err
	}
	if ac.Authenticated && ac.UserID != u.ID {
		var n int64
		if err := db.Model(&database.UserFollow{}).
			Where("follower_id = ? AND followee_id = ?", ac.UserID, u.ID).Count(&n).Error; err != nil {
			return nil, err
		}
		prof.FollowedByMe = n > 0
	}

	var artistIDs []uint
	if err := db.Model(&database.Artist{}).Where("user_id = ?", u.ID).Limit(1).Pluck("id", &artistIDs).Error; err != nil {
		return nil, err
	}
	if len(artistIDs) > 0 {
		prof.ArtistID = &artistIDs[0]
	}
	return prof, nil
}
