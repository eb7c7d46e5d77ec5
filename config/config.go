// nightboard/config/config.go
package config

import (
	"fmt"
	"time"

	"nightboard/utils"

	"github.com/caarlos0/env/v11"
)

const (
	AppVersion = "1.2.0"
	SiteName   = "nightboard"

	// Listing
	PageSize            = 10
	AnnouncementPreview = 5
	AdminPageSize       = 50

	// Form limits
	MaxUsernameLen     = 150
	MaxTitleLen        = 200
	MaxCategoryNameLen = 50
	MaxReasonLen       = 200
	MaxFilenameLen     = 255
	DefaultPostTitle   = "Untitled"
	DefaultBlockReason = "Blocked by administrator"

	// File upload limits
	MaxFileSize      = 500 * 1024 * 1024 // 500MB per file
	MaxMemoryUpload  = 32 * 1024 * 1024  // multipart parts above this spill to disk
	ThumbnailWidth   = 320
	ThumbnailHeight  = 320
	MaxThumbnailSide = 12000

	// Sessions
	SessionCookieName = "nightboard_session"
	SessionLifetimeH  = 365 * 24
)

// Settings is the runtime configuration, read from the environment.
type Settings struct {
	Port      string `env:"NIGHTBOARD_PORT" envDefault:"8080"`
	DBPath    string `env:"NIGHTBOARD_DB_PATH" envDefault:"./nightboard.db?_journal_mode=WAL&_foreign_keys=on"`
	MediaDir  string `env:"NIGHTBOARD_MEDIA_DIR" envDefault:"./media"`
	BackupDir string `env:"NIGHTBOARD_BACKUP_DIR" envDefault:"./backups"`
	LogLevel  string `env:"NIGHTBOARD_LOG_LEVEL" envDefault:"info"`
	AdminPath string `env:"NIGHTBOARD_ADMIN_PATH" envDefault:"/admin"`

	SecureCookies bool `env:"NIGHTBOARD_SECURE_COOKIES" envDefault:"false"`

	// Addresses or CIDR ranges whose forwarding headers are believed. Empty
	// means the socket address is always the client.
	TrustedProxies []string `env:"NIGHTBOARD_TRUSTED_PROXIES" envSeparator:","`

	RateEvery  time.Duration `env:"NIGHTBOARD_RATE_EVERY" envDefault:"10s"`
	RateBurst  int           `env:"NIGHTBOARD_RATE_BURST" envDefault:"5"`
	RatePrune  time.Duration `env:"NIGHTBOARD_RATE_PRUNE" envDefault:"1h"`
	RateExpire time.Duration `env:"NIGHTBOARD_RATE_EXPIRE" envDefault:"24h"`

	S3 S3Settings `envPrefix:"NIGHTBOARD_S3_"`

	Admin BootstrapAdmin `envPrefix:"NIGHTBOARD_ADMIN_"`
}

type S3Settings struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	PublicURL string `env:"PUBLIC_URL"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
}

// BootstrapAdmin seeds a superuser on startup when both fields are set.
type BootstrapAdmin struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	Email    string `env:"EMAIL"`
}

// Load parses Settings from the process environment.
func Load() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if s.AdminPath == "" || s.AdminPath[0] != '/' {
		s.AdminPath = "/" + s.AdminPath
	}
	if s.RateBurst <= 0 {
		return nil, fmt.Errorf("NIGHTBOARD_RATE_BURST must be positive, got %d", s.RateBurst)
	}
	if s.RateEvery < 0 {
		return nil, fmt.Errorf("NIGHTBOARD_RATE_EVERY must not be negative, got %s", s.RateEvery)
	}
	if _, err := utils.ParseTrustedProxies(s.TrustedProxies); err != nil {
		return nil, fmt.Errorf("NIGHTBOARD_TRUSTED_PROXIES: %w", err)
	}
	return &s, nil
}
