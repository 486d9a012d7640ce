// Package storage stores audio and image blobs and hands out time-limited read URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/melodia/internal/logger"
)

// Provider names.
const (
	ProviderLocal   = "local"
	ProviderAzure   = "azure"
	ProviderAliyun  = "aliyun"
	ProviderTencent = "tencent"
	ProviderQiniu   = "qiniu"
)

// ErrUnsupportedProvider is returned by New for unknown provider names.
var ErrUnsupportedProvider = errors.New("unsupported storage provider")

// ErrInvalidKey rejects keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// Provider is a blob store.
type Provider interface {
	Name() string
	// Upload stores r under key. size may be -1 when unknown.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// SignedURL returns a read-only URL valid for expiry.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	TestConnection(ctx context.Context) error
}

// Config selects and configures the provider.
type Config struct {
	Provider string        `mapstructure:"provider"`
	URLTTL   time.Duration `mapstructure:"url_ttl"`
	Local    LocalConfig   `mapstructure:"local"`
	Azure    AzureConfig   `mapstructure:"azure"`
	Aliyun   AliyunConfig  `mapstructure:"aliyun"`
	Tencent  TencentConfig `mapstructure:"tencent"`
	Qiniu    QiniuConfig   `mapstructure:"qiniu"`
}

// LocalConfig filesystem storage served by the API under /media.
type LocalConfig struct {
	Root       string `mapstructure:"root"`
	BaseURL    string `mapstructure:"base_url"`
	SigningKey string `mapstructure:"signing_key"`
}

// AzureConfig Azure Blob Storage.
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	// ServiceURL overrides https://<account>.blob.core.windows.net/, e.g. for Azurite.
	ServiceURL string `mapstructure:"service_url"`
}

// AliyunConfig Aliyun OSS.
type AliyunConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// TencentConfig Tencent COS.
type TencentConfig struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
}

// QiniuConfig Qiniu Kodo. Domain is the bucket's download domain including scheme.
type QiniuConfig struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Domain    string `mapstructure:"domain"`
}

// Validate checks the settings of the selected provider.
func (c Config) Validate() error {
	var problems []string
	require := func(name, value string) {
		if value == "" {
			problems = append(problems, fmt.Sprintf("storage.%s is required for provider %s", name, c.Provider))
		}
	}

	switch c.Provider {
	case ProviderLocal:
		require("local.root", c.Local.Root)
		require("local.base_url", c.Local.BaseURL)
		if len(c.Local.SigningKey) < 16 {
			problems = append(problems, "storage.local.signing_key must be at least 16 characters")
		}
	case ProviderAzure:
		require("azure.account_name", c.Azure.AccountName)
		require("azure.account_key", c.Azure.AccountKey)
		require("azure.container", c.Azure.Container)
	case ProviderAliyun:
		require("aliyun.bucket", c.Aliyun.Bucket)
		require("aliyun.access_key", c.Aliyun.AccessKey)
		require("aliyun.secret_key", c.Aliyun.SecretKey)
		if c.Aliyun.Endpoint == "" && c.Aliyun.Region == "" {
			problems = append(problems, "storage.aliyun.endpoint or storage.aliyun.region is required")
		}
	case ProviderTencent:
		require("tencent.bucket", c.Tencent.Bucket)
		require("tencent.secret_id", c.Tencent.SecretID)
		require("tencent.secret_key", c.Tencent.SecretKey)
		if c.Tencent.Endpoint == "" && c.Tencent.Region == "" {
			problems = append(problems, "storage.tencent.endpoint or storage.tencent.region is required")
		}
	case ProviderQiniu:
		require("qiniu.access_key", c.Qiniu.AccessKey)
		require("qiniu.secret_key", c.Qiniu.SecretKey)
		require("qiniu.bucket", c.Qiniu.Bucket)
		require("qiniu.domain", c.Qiniu.Domain)
	default:
		problems = append(problems, fmt.Sprintf("storage.provider must be one of: local, azure, aliyun, tencent, qiniu, got: %s", c.Provider))
	}

	if c.URLTTL <= 0 {
		problems = append(problems, "storage.url_ttl must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "\n  - "))
	}
	return nil
}

// New builds the provider selected by cfg.Provider.
func New(cfg Config) (Provider, error) {
	logger.Infof("[storage] initialising provider: %s", cfg.Provider)
	switch cfg.Provider {
	case ProviderLocal:
		return NewLocalProvider(cfg.Local)
	case ProviderAzure:
		return NewAzureProvider(cfg.Azure)
	case ProviderAliyun:
		return NewAliyunProvider(cfg.Aliyun)
	case ProviderTencent:
		return NewTencentProvider(cfg.Tencent)
	case ProviderQiniu:
		return NewQiniuProvider(cfg.Qiniu)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// Kind groups blobs by what they hold.
type Kind string

const (
	KindAudio   Kind = "audio"
	KindCover   Kind = "covers"
	KindAvatar  Kind = "avatars"
	KindArtist  Kind = "artists"
	kindUnknown Kind = ""
)

// NewKey returns <kind>/<yyyy>/<mm>/<uuid><ext>.
func NewKey(kind Kind, ext string, at time.Time) string {
	if kind == kindUnknown {
		kind = "misc"
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	at = at.UTC()
	return path.Join(string(kind), at.Format("2006"), at.Format("01"), uuid.NewString()+ext)
}

// CleanKey normalises key and rejects absolute or parent-relative paths.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
