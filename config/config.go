// Package config loads the service configuration.
// Values come from an optional config file (yaml/toml/json) and MELODIA_* environment
// variables, layered over the defaults registered in setDefaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/storage"
)

// EnvPrefix is the prefix of every environment override, e.g. MELODIA_SERVER_PORT.
const EnvPrefix = "MELODIA"

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      logger.Config  `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  storage.Config `mapstructure:"storage"`
	Media    MediaConfig    `mapstructure:"media"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	I18n     I18nConfig     `mapstructure:"i18n"`
}

// ServerConfig HTTP server settings.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	EnableTLS    bool   `mapstructure:"enable_tls"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
	// RequestLog enables the verbose per-request body logger.
	RequestLog bool `mapstructure:"request_log"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig database connection and pool settings.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

// AuthConfig JWT and login throttling settings.
type AuthConfig struct {
	AccessSecret    string        `mapstructure:"access_secret"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	AccessTTL       time.Duration `mapstructure:"access_ttl"`
	RefreshTTL      time.Duration `mapstructure:"refresh_ttl"`
	Issuer          string        `mapstructure:"issuer"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	LoginRatePerMin int           `mapstructure:"login_rate_per_min"`
	LoginBurst      int           `mapstructure:"login_burst"`
}

// MediaConfig upload limits and allow-lists.
type MediaConfig struct {
	MaxAudioSize    int64    `mapstructure:"max_audio_size"`
	MaxImageSize    int64    `mapstructure:"max_image_size"`
	AudioExtensions []string `mapstructure:"audio_extensions"`
	ImageExtensions []string `mapstructure:"image_extensions"`

	// Failed blob deletions are retried by the janitor on this schedule.
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	CleanupBackoff    time.Duration `mapstructure:"cleanup_backoff"`
	CleanupMaxRetries int           `mapstructure:"cleanup_max_retries"`
}

// QueueConfig playback queue limits.
type QueueConfig struct {
	MaxItems int `mapstructure:"max_items"`
}

// CORSConfig cross-origin settings for the single-page client.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
	MaxAge       int      `mapstructure:"max_age"`
}

// I18nConfig localisation settings.
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load reads configuration. An empty path searches ./config.{yaml,toml,json},
// ./config/ and /etc/melodia/; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/melodia")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.enable_tls", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.request_log", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=melodia password=melodia dbname=melodia port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 1800)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/melodia.log")

	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "720h")
	v.SetDefault("auth.issuer", "melodia")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_rate_per_min", 10)
	v.SetDefault("auth.login_burst", 5)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.url_ttl", "1h")
	v.SetDefault("storage.local.root", "./data/media")
	v.SetDefault("storage.local.base_url", "http://localhost:8080/media")
	v.SetDefault("storage.local.signing_key", "")
	v.SetDefault("storage.azure.account_name", "")
	v.SetDefault("storage.azure.account_key", "")
	v.SetDefault("storage.azure.container", "melodia")
	v.SetDefault("storage.azure.service_url", "")
	v.SetDefault("storage.aliyun.endpoint", "")
	v.SetDefault("storage.aliyun.region", "")
	v.SetDefault("storage.aliyun.bucket", "")
	v.SetDefault("storage.aliyun.access_key", "")
	v.SetDefault("storage.aliyun.secret_key", "")
	v.SetDefault("storage.tencent.region", "")
	v.SetDefault("storage.tencent.bucket", "")
	v.SetDefault("storage.tencent.endpoint", "")
	v.SetDefault("storage.tencent.secret_id", "")
	v.SetDefault("storage.tencent.secret_key", "")
	v.SetDefault("storage.qiniu.access_key", "")
	v.SetDefault("storage.qiniu.secret_key", "")
	v.SetDefault("storage.qiniu.bucket", "")
	v.SetDefault("storage.qiniu.domain", "")

	v.SetDefault("media.max_audio_size", 50*1024*1024)
	v.SetDefault("media.max_image_size", 5*1024*1024)
	v.SetDefault("media.audio_extensions", []string{".mp3", ".flac", ".wav", ".ogg", ".m4a"})
	v.SetDefault("media.image_extensions", []string{".jpg", ".jpeg", ".png", ".webp"})
	v.SetDefault("media.cleanup_interval", "1m")
	v.SetDefault("media.cleanup_backoff", "30s")
	v.SetDefault("media.cleanup_max_retries", 5)

	v.SetDefault("queue.max_items", 500)

	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("i18n.default_language", "en-US")
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port must be between 1 and 65535, got: %d", c.Server.Port))
	}
	if c.Server.EnableTLS && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		problems = append(problems, "server.tls_cert_file and server.tls_key_file are required when TLS is enabled")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("database.driver must be one of: postgres, sqlite, got: %s", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn cannot be empty")
	}

	if len(c.Auth.AccessSecret) < 32 {
		problems = append(problems, "auth.access_secret must be at least 32 characters")
	}
	if len(c.Auth.RefreshSecret) < 32 {
		problems = append(problems, "auth.refresh_secret must be at least 32 characters")
	}
	if c.Auth.AccessSecret != "" && c.Auth.AccessSecret == c.Auth.RefreshSecret {
		problems = append(problems, "auth.access_secret and auth.refresh_secret must differ")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		problems = append(problems, "auth.access_ttl and auth.refresh_ttl must be positive")
	}

	if err := c.Storage.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Media.MaxAudioSize <= 0 || c.Media.MaxImageSize <= 0 {
		problems = append(problems, "media.max_audio_size and media.max_image_size must be positive")
	}
	if c.Queue.MaxItems < 1 {
		problems = append(problems, "queue.max_items must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
