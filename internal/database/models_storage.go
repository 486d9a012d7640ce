package database

import "time"

// BlobDeletion is a storage key whose deletion failed and is retried by the
// media janitor until it succeeds or runs out of attempts.
type BlobDeletion struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Key         string    `gorm:"column:blob_key;not null;size:255;uniqueIndex" json:"key"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	NextAttempt time.Time `gorm:"not null;index" json:"next_attempt"`
	LastError   string    `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (BlobDeletion) TableName() string { return "blob_deletions" }
