// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor
// principles; a .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Mail providers.
const (
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
	MailProviderLog      = "log"
)

// Invitation delivery modes.
const (
	NotifyQueueDirect = "direct"
	NotifyQueueRedis  = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   int    `env:"PORT" envDefault:"5000"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// FrontendURL receives the browser after an accept/reject link.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	BackendURL  string `env:"BACKEND_URL"`

	// BaseURL prefixes the accept/reject links sent to referees.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Mail delivery
	MailProvider   string `env:"MAIL_PROVIDER" envDefault:"smtp"`
	MailBrand      string `env:"MAIL_BRAND" envDefault:"Accredian"`
	MailFrom       string `env:"MAIL_FROM"`
	SMTPHost       string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`

	// Invitation queue (Redis streams). REDIS_URL is only needed for "redis".
	NotifyQueue string `env:"NOTIFY_QUEUE" envDefault:"direct"`
	RedisURL    string `env:"REDIS_URL"`

	// Empty leaves accept/reject links unsigned.
	LinkSigningSecret string `env:"LINK_SIGNING_SECRET"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins returns the frontend and backend origins that may
// call the API from a browser.
func (c *Config) GetCORSAllowedOrigins() []string {
	result := make([]string, 0, 2)
	for _, origin := range []string{c.FrontendURL, c.BackendURL} {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// UseRedisQueue reports whether invitations go through the Redis stream.
func (c *Config) UseRedisQueue() bool {
	return strings.EqualFold(c.NotifyQueue, NotifyQueueRedis)
}

// EffectiveMailProvider returns the provider that can actually run with the
// configured credentials. Missing credentials fall back to the log mailer.
func (c *Config) EffectiveMailProvider() string {
	switch strings.ToLower(c.MailProvider) {
	case MailProviderSMTP:
		if c.SMTPUser == "" || c.SMTPPass == "" {
			return MailProviderLog
		}
		return MailProviderSMTP
	case MailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return MailProviderLog
		}
		return MailProviderSendGrid
	default:
		return MailProviderLog
	}
}

// SenderAddress is the From address for invitation emails.
func (c *Config) SenderAddress() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return c.SMTPUser
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.NotifyQueue) {
	case NotifyQueueDirect:
	case NotifyQueueRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when NOTIFY_QUEUE=redis")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_QUEUE %q", c.NotifyQueue)
	}

	switch strings.ToLower(c.MailProvider) {
	case MailProviderSMTP, MailProviderSendGrid, MailProviderLog:
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", c.MailProvider)
	}

	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be positive")
	}
	return nil
}

// Load reads .env (if any), parses environment variables and returns a
// validated Config. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
