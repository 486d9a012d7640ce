package media

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/storage"
)

// SniffLen is how many leading bytes Check needs.
const SniffLen = 512

// Policy upload limits and extension allow-lists.
type Policy struct {
	MaxAudioSize    int64
	MaxImageSize    int64
	AudioExtensions []string
	ImageExtensions []string
}

var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// Check validates an upload of kind and returns its content type and
// normalised extension. head holds the first bytes of the file.
func (p Policy) Check(kind storage.Kind, filename string, size int64, head []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	sniffed := http.DetectContentType(head)

	if kind == storage.KindAudio {
		if size > p.MaxAudioSize {
			return "", "", tooLarge(p.MaxAudioSize)
		}
		if !contains(p.AudioExtensions, ext) {
			return "", "", unsupported(ext, p.AudioExtensions)
		}
		if strings.HasPrefix(sniffed, "text/") || strings.HasPrefix(sniffed, "image/") {
			return "", "", apperrors.New(apperrors.ErrUnsupportedMedia, "file content is not audio")
		}
		if ext == ".flac" && !IsFLAC(head) {
			return "", "", apperrors.New(apperrors.ErrUnsupportedMedia, "file is not a valid FLAC stream")
		}
		ct, ok := audioContentTypes[ext]
		if !ok {
			ct = sniffed
		}
		return ct, ext, nil
	}

	if size > p.MaxImageSize {
		return "", "", tooLarge(p.MaxImageSize)
	}
	if !contains(p.ImageExtensions, ext) {
		return "", "", unsupported(ext, p.ImageExtensions)
	}
	if !strings.HasPrefix(sniffed, "image/") {
		return "", "", apperrors.New(apperrors.ErrUnsupportedMedia, "file content is not an image")
	}
	return sniffed, ext, nil
}

func tooLarge(limit int64) error {
	return apperrors.Newf(apperrors.ErrPayloadTooLarge, "file exceeds the %s limit", humanize.IBytes(uint64(limit)))
}

func unsupported(ext string, allowed []string) error {
	if ext == "" {
		ext = "(none)"
	}
	return apperrors.Newf(apperrors.ErrUnsupportedMedia, "unsupported file type %s, allowed: %s", ext, strings.Join(allowed, ", "))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
