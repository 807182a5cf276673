// Package main is the entrypoint for the referral API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/refertrack/refertrack/internal/cache"
	"github.com/refertrack/refertrack/internal/config"
	"github.com/refertrack/refertrack/internal/handler"
	"github.com/refertrack/refertrack/internal/linksig"
	"github.com/refertrack/refertrack/internal/metrics"
	"github.com/refertrack/refertrack/internal/middleware"
	"github.com/refertrack/refertrack/internal/notify"
	"github.com/refertrack/refertrack/internal/repository"
	"github.com/refertrack/refertrack/internal/server"
	"github.com/refertrack/refertrack/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AutoMigrate {
		applied, err := repository.Migrate(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migrate: %s", sanitizeError(err, cfg.DatabaseURL))
		}
		logger.Info("migrations applied", "count", applied)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.DefaultPoolOptions())
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	defer repo.Close()
	logger.Info("connected to database")

	recorder := metrics.NewInMemory()
	signer := linksig.NewSigner(cfg.LinkSigningSecret)

	emailNotifier, err := buildEmailNotifier(cfg, signer, recorder, logger)
	if err != nil {
		return err
	}

	var (
		notifier    notify.Notifier = emailNotifier
		queueHealth handler.HealthChecker
		shutdowns   []namedShutdown
	)

	if cfg.UseRedisQueue() {
		redisCache, err := cache.New(ctx, cfg.RedisURL, cache.DefaultOptions())
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("redis unavailable")
		}
		shutdowns = append(shutdowns, namedShutdown{"redis", func(ctx context.Context) error {
			return redisCache.Close()
		}})
		logger.Info("connected to Redis")

		worker := notify.NewWorker(redisCache.Client(), emailNotifier, logger, notify.NewConsumerID(), recorder)
		go func() {
			if err := worker.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("invitation worker exited", "error", err)
			}
		}()
		shutdowns = append(shutdowns, namedShutdown{"invitation_worker", worker.Shutdown})

		notifier = notify.NewStreamNotifier(redisCache.Client(), logger, recorder)
		queueHealth = redisCache
	}

	referralService := service.NewReferralService(repo, notifier, logger, recorder)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	router := handler.NewRouter(handler.RouterConfig{
		Referrals:          handler.NewReferralHandler(referralService, signer, cfg.FrontendURL, logger),
		Health:             handler.NewHealthHandler(repo, queueHealth),
		Snapshotter:        recorder,
		Logger:             logger,
		CORS:               cors,
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	for _, sd := range shutdowns {
		srv.OnShutdown(sd.name, sd.fn)
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"mail_provider", cfg.EffectiveMailProvider(),
		"notify_queue", cfg.NotifyQueue,
		"signed_links", signer.Enabled(),
	)

	return srv.Run(ctx)
}

type namedShutdown struct {
	name string
	fn   server.ShutdownFunc
}

// buildEmailNotifier wires the configured mailer to the invitation renderer.
func buildEmailNotifier(cfg *config.Config, signer *linksig.Signer, recorder metrics.Recorder, logger *slog.Logger) (*notify.EmailNotifier, error) {
	links, err := notify.NewLinkBuilder(cfg.BaseURL, signer)
	if err != nil {
		return nil, fmt.Errorf("invalid BASE_URL: %w", err)
	}
	renderer := notify.NewRenderer(cfg.MailBrand, links)

	provider := cfg.EffectiveMailProvider()
	if !strings.EqualFold(provider, cfg.MailProvider) {
		logger.Warn("mail credentials missing, invitations will only be logged",
			"requested_provider", cfg.MailProvider,
		)
	}

	return notify.NewEmailNotifier(buildMailer(cfg, provider, logger), renderer, logger, recorder), nil
}

func buildMailer(cfg *config.Config, provider string, logger *slog.Logger) notify.Mailer {
	switch provider {
	case config.MailProviderSMTP:
		return notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SenderAddress(),
		})
	case config.MailProviderSendGrid:
		return notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SenderAddress(), cfg.MailBrand)
	default:
		return notify.NewLogMailer(logger)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
