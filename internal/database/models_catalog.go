package database

import "time"

// Song statuses.
const (
	SongActive = "active"
	SongHidden = "hidden"
)

// Song artist roles.
const (
	ArtistRolePrimary  = "primary"
	ArtistRoleFeatured = "featured"
)

// Album types.
const (
	AlbumTypeAlbum  = "album"
	AlbumTypeSingle = "single"
	AlbumTypeEP     = "ep"
)

// Artist is the public profile of a user with role artist.
type Artist struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name      string    `gorm:"not null;size:200;index" json:"name"`
	Bio       string    `gorm:"size:2000" json:"bio"`
	ImageKey  string    `gorm:"size:255" json:"-"`
	Verified  bool      `gorm:"not null" json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Artist) TableName() string { return "artists" }

// Song is one uploaded track.
type Song struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	Title           string     `gorm:"not null;size:255;index" json:"title"`
	Genre           string     `gorm:"size:100;index" json:"genre"`
	DurationSeconds int        `gorm:"not null;default:0" json:"duration_seconds"`
	AudioKey        string     `gorm:"size:255" json:"-"`
	AudioFormat     string     `gorm:"size:10" json:"audio_format"`
	FileSize        int64      `gorm:"not null;default:0" json:"file_size"`
	CoverKey        string     `gorm:"size:255" json:"-"`
	Lyrics          string     `gorm:"type:text" json:"lyrics,omitempty"`
	ReleaseDate     *time.Time `json:"release_date,omitempty"`
	PlayCount       int64      `gorm:"not null;default:0" json:"play_count"`
	Status          string     `gorm:"not null;size:20;default:active;index" json:"status"`
	UploaderID      uint       `gorm:"not null;index" json:"uploader_id"`
	Uploader        User       `gorm:"foreignKey:UploaderID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Song) TableName() string { return "songs" }

// SongArtist credits an artist on a song.
type SongArtist struct {
	SongID   uint   `gorm:"primaryKey;autoIncrement:false"`
	ArtistID uint   `gorm:"primaryKey;autoIncrement:false;index"`
	Role     string `gorm:"not null;size:20;default:primary"`
	Song     Song   `gorm:"constraint:OnDelete:CASCADE"`
	Artist   Artist `gorm:"constraint:OnDelete:CASCADE"`
}

func (SongArtist) TableName() string { return "song_artists" }

// Album groups songs of one artist.
type Album struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"not null;size:255;index" json:"title"`
	ArtistID    uint       `gorm:"not null;index" json:"artist_id"`
	Artist      Artist     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AlbumType   string     `gorm:"not null;size:10;default:album" json:"album_type"`
	Description string     `gorm:"size:2000" json:"description"`
	CoverKey    string     `gorm:"size:255" json:"-"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Album) TableName() string { return "albums" }

// AlbumSong places a song on an album.
type AlbumSong struct {
	AlbumID     uint  `gorm:"primaryKey;autoIncrement:false"`
	SongID      uint  `gorm:"primaryKey;autoIncrement:false;index"`
	TrackNumber int   `gorm:"not null"`
	Album       Album `gorm:"constraint:OnDelete:CASCADE"`
	Song        Song  `gorm:"constraint:OnDelete:CASCADE"`
}

func (AlbumSong) TableName() string { return "album_songs" }

// ArtistFollow user -> artist.
type ArtistFollow struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	ArtistID  uint      `gorm:"primaryKey;autoIncrement:false;index"`
	User      User      `gorm:"constraint:OnDelete:CASCADE"`
	Artist    Artist    `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"index"`
}

func (ArtistFollow) TableName() string { return "artist_follows" }
