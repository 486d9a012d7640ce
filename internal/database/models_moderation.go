package database

import "time"

// Report target types.
const (
	ReportSong     = "song"
	ReportComment  = "comment"
	ReportUser     = "user"
	ReportPlaylist = "playlist"
)

// Report statuses.
const (
	ReportPending   = "pending"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// Moderation actions.
const (
	ActionNone    = "none"
	ActionHide    = "hide"
	ActionRemove  = "remove"
	ActionSuspend = "suspend"
)

// Appeal statuses.
const (
	AppealPending  = "pending"
	AppealApproved = "approved"
	AppealRejected = "rejected"
)

// ReportTypes in table order.
var ReportTypes = []string{ReportSong, ReportComment, ReportUser, ReportPlaylist}

// ReportTables maps a report type to its table and target column.
var ReportTables = map[string]struct{ Table, TargetColumn string }{
	ReportSong:     {"song_reports", "song_id"},
	ReportComment:  {"comment_reports", "comment_id"},
	ReportUser:     {"user_reports", "reported_user_id"},
	ReportPlaylist: {"playlist_reports", "playlist_id"},
}

// ReportBase columns shared by the four report tables. Targets carry no
// foreign key so a report outlives a removed target.
type ReportBase struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	ReporterID uint       `gorm:"not null;index" json:"reporter_id"`
	Reason     string     `gorm:"not null;size:30;index" json:"reason"`
	Details    string     `gorm:"size:1000" json:"details,omitempty"`
	Status     string     `gorm:"not null;size:20;default:pending;index" json:"status"`
	Action     string     `gorm:"size:20" json:"action,omitempty"`
	ReviewerID *uint      `json:"reviewer_id,omitempty"`
	ReviewNote string     `gorm:"size:1000" json:"review_note,omitempty"`
	ReviewedAt *time.Time `gorm:"index" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SongReport report against a song.
type SongReport struct {
	ReportBase
	SongID   uint `gorm:"not null;index" json:"song_id"`
	Reporter User `gorm:"foreignKey:ReporterID;constraint:OnDelete:CASCADE" json:"-"`
}

func (SongReport) TableName() string { return "song_reports" }

// CommentReport report against a comment.
type CommentReport struct {
	ReportBase
	CommentID uint `gorm:"not null;index" json:"comment_id"`
	Reporter  User `gorm:"foreignKey:ReporterID;constraint:OnDelete:CASCADE" json:"-"`
}

func (CommentReport) TableName() string { return "comment_reports" }

// UserReport report against a user account.
type UserReport struct {
	ReportBase
	ReportedUserID uint `gorm:"not null;index" json:"reported_user_id"`
	Reporter       User `gorm:"foreignKey:ReporterID;constraint:OnDelete:CASCADE" json:"-"`
}

func (UserReport) TableName() string { return "user_reports" }

// PlaylistReport report against a playlist.
type PlaylistReport struct {
	ReportBase
	PlaylistID uint `gorm:"not null;index" json:"playlist_id"`
	Reporter   User `gorm:"foreignKey:ReporterID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PlaylistReport) TableName() string { return "playlist_reports" }

// Appeal contests a resolved report. One appeal per report.
type Appeal struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	User       User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ReportType string     `gorm:"not null;size:20;uniqueIndex:idx_appeals_report" json:"report_type"`
	ReportID   uint       `gorm:"not null;uniqueIndex:idx_appeals_report" json:"report_id"`
	Reason     string     `gorm:"not null;size:2000" json:"reason"`
	Status     string     `gorm:"not null;size:20;default:pending;index" json:"status"`
	ReviewerID *uint      `json:"reviewer_id,omitempty"`
	Response   string     `gorm:"size:2000" json:"response,omitempty"`
	ReviewedAt *time.Time `gorm:"index" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Appeal) TableName() string { return "appeals" }
