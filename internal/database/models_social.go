package database

import "time"

// Notification types.
const (
	NotifyNewFollower    = "new_follower"
	NotifyNewRelease     = "new_release"
	NotifyNewLike        = "new_like"
	NotifyNewComment     = "new_comment"
	NotifyCommentReply   = "comment_reply"
	NotifyReportResolved = "report_resolved"
	NotifyAppealResolved = "appeal_resolved"
)

// Playlist user-curated ordered song list.
type Playlist struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Owner       User      `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string    `gorm:"not null;size:200;index" json:"name"`
	Description string    `gorm:"size:2000" json:"description"`
	IsPublic    bool      `gorm:"not null;index" json:"is_public"`
	CoverKey    string    `gorm:"size:255" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Playlist) TableName() string { return "playlists" }

// PlaylistSong positions are 0-based and contiguous.
type PlaylistSong struct {
	PlaylistID uint      `gorm:"primaryKey;autoIncrement:false"`
	SongID     uint      `gorm:"primaryKey;autoIncrement:false;index"`
	Position   int       `gorm:"not null"`
	AddedAt    time.Time `gorm:"not null"`
	Playlist   Playlist  `gorm:"constraint:OnDelete:CASCADE"`
	Song       Song      `gorm:"constraint:OnDelete:CASCADE"`
}

func (PlaylistSong) TableName() string { return "playlist_songs" }

// Comment on a song. Replies point at a top-level comment of the same song.
type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SongID    uint      `gorm:"not null;index" json:"song_id"`
	Song      Song      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Parent    *Comment  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	IsHidden  bool      `gorm:"not null" json:"is_hidden"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Comment) TableName() string { return "comments" }

// SongLike user likes a song.
type SongLike struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	SongID    uint      `gorm:"primaryKey;autoIncrement:false;index"`
	User      User      `gorm:"constraint:OnDelete:CASCADE"`
	Song      Song      `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"index"`
}

func (SongLike) TableName() string { return "song_likes" }

// AlbumLike user likes an album.
type AlbumLike struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	AlbumID   uint      `gorm:"primaryKey;autoIncrement:false;index"`
	User      User      `gorm:"constraint:OnDelete:CASCADE"`
	Album     Album     `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"index"`
}

func (AlbumLike) TableName() string { return "album_likes" }

// PlaylistLike user likes a playlist.
type PlaylistLike struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false"`
	PlaylistID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	User       User      `gorm:"constraint:OnDelete:CASCADE"`
	Playlist   Playlist  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `gorm:"index"`
}

func (PlaylistLike) TableName() string { return "playlist_likes" }

// Notification is addressed to UserID. ActorID is who caused it.
type Notification struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"-"`
	User       User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ActorID    *uint      `json:"actor_id,omitempty"`
	Actor      *User      `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL" json:"-"`
	Type       string     `gorm:"not null;size:30" json:"type"`
	EntityType string     `gorm:"size:20" json:"entity_type,omitempty"`
	EntityID   uint       `json:"entity_id,omitempty"`
	Message    string     `gorm:"size:500" json:"message"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// ListeningHistory one play of a song.
type ListeningHistory struct {
	ID            uint      `gorm:"primarykey"`
	UserID        uint      `gorm:"not null;index"`
	User          User      `gorm:"constraint:OnDelete:CASCADE"`
	SongID        uint      `gorm:"not null;index"`
	Song          Song      `gorm:"constraint:OnDelete:CASCADE"`
	PlayedAt      time.Time `gorm:"not null;index"`
	SecondsPlayed int       `gorm:"not null;default:0"`
	Source        string    `gorm:"size:30"`
}

func (ListeningHistory) TableName() string { return "listening_history" }

// PlaybackQueue persisted queue state of one user.
type PlaybackQueue struct {
	UserID    uint   `gorm:"primaryKey;autoIncrement:false"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	State     string `gorm:"type:text;not null"`
	Version   int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (PlaybackQueue) TableName() string { return "playback_queues" }
