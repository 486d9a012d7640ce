package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/storage"
)

// Upload describes a stored blob.
type Upload struct {
	Key         string
	ContentType string
	Ext         string
	Size        int64
	// Meta is set for audio uploads whose tags could be read.
	Meta *Metadata
}

// Service stores validated uploads and signs read URLs.
type Service struct {
	provider storage.Provider
	policy   Policy
	urlTTL   time.Duration
	now      func() time.Time
	retry    DeletionQueue
}

// NewService creates a media service.
func NewService(provider storage.Provider, policy Policy, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &Service{provider: provider, policy: policy, urlTTL: urlTTL, now: time.Now}
}

// SetDeletionQueue hands failed deletions to q instead of only logging them.
func (s *Service) SetDeletionQueue(q DeletionQueue) { s.retry = q }

// Provider returns the underlying blob store.
func (s *Service) Provider() storage.Provider { return s.provider }

// Store validates and uploads a multipart file.
func (s *Service) Store(ctx context.Context, kind storage.Kind, fh *multipart.FileHeader) (*Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.BadRequest("cannot read uploaded file").WithOriginalError(err)
	}
	defer f.Close()
	return s.StoreReader(ctx, kind, fh.Filename, fh.Size, f)
}

// StoreReader validates and uploads r. Audio tags are probed before upload.
func (s *Service) StoreReader(ctx context.Context, kind storage.Kind, filename string, size int64, r io.ReadSeeker) (*Upload, error) {
	head := make([]byte, SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperrors.BadRequest("cannot read uploaded file").WithOriginalError(err)
	}
	if n == 0 {
		return nil, apperrors.BadRequest("uploaded file is empty")
	}
	head = head[:n]

	contentType, ext, err := s.policy.Check(kind, filename, size, head)
	if err != nil {
		return nil, err
	}

	up := &Upload{ContentType: contentType, Ext: ext, Size: size}
	if kind == storage.KindAudio {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, apperrors.Internal(err)
		}
		meta, err := Probe(r, ext)
		switch {
		case err == nil:
			up.Meta = meta
		case errors.Is(err, ErrUnsupportedFormat):
		default:
			logger.Warnf("[media] tag probe failed for %s: %v", filename, err)
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, apperrors.Internal(err)
	}

	up.Key = storage.NewKey(kind, ext, s.now())
	if err := s.provider.Upload(ctx, up.Key, r, size, contentType); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailed, "", err)
	}
	logger.Infof("[media] stored %s (%s, %s) via %s", up.Key, contentType, humanize.Bytes(uint64(size)), s.provider.Name())
	return up, nil
}

// StoreBytes uploads an in-memory image, e.g. cover art embedded in an audio
// file. mimeType is only a hint: the stored type comes from the content.
func (s *Service) StoreBytes(ctx context.Context, kind storage.Kind, mimeType string, data []byte) (string, error) {
	head := data
	if len(head) > SniffLen {
		head = head[:SniffLen]
	}
	ext := imageExt(http.DetectContentType(head))
	contentType, ext, err := s.policy.Check(kind, "embedded"+ext, int64(len(data)), head)
	if err != nil {
		return "", err
	}
	if mimeType != "" && !strings.EqualFold(mimeType, contentType) {
		logger.Debugf("[media] embedded picture claims %s, content is %s", mimeType, contentType)
	}
	key := storage.NewKey(kind, ext, s.now())
	if err := s.provider.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", apperrors.Wrap(apperrors.ErrStorageFailed, "", err)
	}
	return key, nil
}

func imageExt(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".jpg"
}

// SignedURL returns a read URL for key and when it expires.
func (s *Service) SignedURL(ctx context.Context, key string) (string, time.Time, error) {
	expires := s.now().Add(s.urlTTL)
	u, err := s.provider.SignedURL(ctx, key, s.urlTTL)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(apperrors.ErrStorageFailed, "", err)
	}
	return u, expires, nil
}

// URL is SignedURL for views: empty keys and signing failures yield "".
func (s *Service) URL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	u, _, err := s.SignedURL(ctx, key)
	if err != nil {
		logger.Warnf("[media] cannot sign %s: %v", key, err)
		return ""
	}
	return u
}

// Delete removes keys. Failures are logged and queued for retry when a
// deletion queue is set. Empty keys are skipped.
func (s *Service) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.provider.Delete(ctx, key); err != nil {
			logger.Warnf("[media] failed to delete %s: %v", key, err)
			if s.retry != nil {
				s.retry.Enqueue(context.WithoutCancel(ctx), key, err)
			}
		}
	}
}
