package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/logger"
)

// ErrSignatureInvalid is returned by Verify for forged or expired URLs.
var ErrSignatureInvalid = errors.New("invalid or expired signature")

// LocalProvider keeps blobs on disk. Read URLs point back at the API's /media
// route and carry an expiry plus an HMAC-SHA256 signature.
type LocalProvider struct {
	root    string
	baseURL string
	key     []byte
	now     func() time.Time
}

// NewLocalProvider creates the root directory if needed.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if cfg.Root == "" {
		return nil, errors.New("local storage root is empty")
	}
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", cfg.Root, err)
	}
	logger.Infof("[storage/local] root: %s, base url: %s", cfg.Root, cfg.BaseURL)
	return &LocalProvider{
		root:    cfg.Root,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     []byte(cfg.SigningKey),
		now:     time.Now,
	}, nil
}

// Name implements Provider.
func (p *LocalProvider) Name() string { return ProviderLocal }

func (p *LocalProvider) path(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.root, filepath.FromSlash(cleaned)), nil
}

// Upload implements Provider.
func (p *LocalProvider) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	full, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp := full + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, full)
}

// Delete implements Provider.
func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	full, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Exists implements Provider.
func (p *LocalProvider) Exists(ctx context.Context, key string) (bool, error) {
	full, err := p.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// SignedURL implements Provider.
func (p *LocalProvider) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	expires := strconv.FormatInt(p.now().Add(expiry).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", p.sign(cleaned, expires))
	return p.baseURL + "/" + cleaned + "?" + q.Encode(), nil
}

// TestConnection checks that the root is writable.
func (p *LocalProvider) TestConnection(ctx context.Context) error {
	f, err := os.CreateTemp(p.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Verify checks a signature produced by SignedURL.
func (p *LocalProvider) Verify(key, expires, signature string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || p.now().Unix() > exp {
		return ErrSignatureInvalid
	}
	if !hmac.Equal([]byte(p.sign(cleaned, expires)), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}

// FilePath returns the on-disk path of key for serving.
func (p *LocalProvider) FilePath(key string) (string, error) {
	return p.path(key)
}

func (p *LocalProvider) sign(key, expires string) string {
	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}
