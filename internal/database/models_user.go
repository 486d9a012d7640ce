package database

import "time"

// Roles.
const (
	RoleListener = "listener"
	RoleArtist   = "artist"
	RoleAdmin    = "admin"
)

// User statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusBanned    = "banned"
)

// User account. Emails are stored lower-cased.
type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Username     string     `gorm:"not null;size:50;uniqueIndex" json:"username"`
	Email        string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"not null;size:255" json:"-"`
	DisplayName  string     `gorm:"size:100" json:"display_name"`
	Bio          string     `gorm:"size:1000" json:"bio"`
	AvatarKey    string     `gorm:"size:255" json:"-"`
	Role         string     `gorm:"not null;size:20;default:listener;index" json:"role"`
	Status       string     `gorm:"not null;size:20;default:active;index" json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// IsActive reports whether the account may sign in.
func (u *User) IsActive() bool { return u.Status == StatusActive }

// RefreshToken tracks issued refresh tokens by jti so they can be rotated and revoked.
type RefreshToken struct {
	ID        uint       `gorm:"primarykey"`
	UserID    uint       `gorm:"not null;index"`
	User      User       `gorm:"constraint:OnDelete:CASCADE"`
	TokenID   string     `gorm:"not null;size:64;uniqueIndex"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	RevokedAt *time.Time
	UserAgent string `gorm:"size:255"`
	CreatedAt time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// UserFollow follower -> followee.
type UserFollow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	Follower   User      `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Followee   User      `gorm:"foreignKey:FolloweeID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `gorm:"index"`
}

func (UserFollow) TableName() string { return "user_follows" }
