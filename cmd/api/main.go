// Package main is the entrypoint for the Contact Book API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/avatar"
	"github.com/contactbook/contactbook/internal/cache"
	"github.com/contactbook/contactbook/internal/config"
	"github.com/contactbook/contactbook/internal/handler"
	"github.com/contactbook/contactbook/internal/mail"
	"github.com/contactbook/contactbook/internal/middleware"
	"github.com/contactbook/contactbook/internal/repository"
	"github.com/contactbook/contactbook/internal/server"
	"github.com/contactbook/contactbook/internal/service"
	"github.com/contactbook/contactbook/internal/token"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	issuer, err := token.NewIssuer([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		logger.Error("failed to initialize token issuer", "error", err)
		os.Exit(1)
	}
	guard := auth.NewGuard(issuer, cacheClient, repo, logger)

	// Confirmation emails go through a Redis stream so signup does
	// not wait on the SMTP relay; a worker drains the stream.
	var sender mail.Sender = mail.NopSender{}
	var mailWorker *mail.Worker
	if cfg.MailConfigured() {
		smtpSender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			logger.Error("failed to initialize mail sender", "error", err)
			os.Exit(1)
		}
		sender = mail.NewQueueSender(cacheClient.Client(), logger)
		mailWorker = mail.NewWorker(cacheClient.Client(), smtpSender, logger, mail.NewConsumerID())
		logger.Info("mail sender configured", "host", cfg.MailHost)
	} else {
		logger.Warn("mail not configured, confirmation emails disabled")
	}

	var uploader avatar.Uploader
	if cfg.S3AccessKey != "" {
		s3Uploader, err := avatar.NewS3Uploader(ctx, avatar.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Error("failed to initialize object storage", "error", err)
			os.Exit(1)
		}
		uploader = s3Uploader
		logger.Info("object storage configured", "bucket", cfg.S3Bucket)
	} else {
		logger.Warn("object storage not configured, avatar uploads disabled")
	}

	authService := service.NewAuthService(repo, issuer, guard, sender, cfg.BaseURL, logger)
	contactService := service.NewContactService(repo)
	userService := service.NewUserService(repo, uploader, logger)

	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	authHandler := handler.NewAuthHandler(authService, logger)
	contactHandler := handler.NewContactHandler(contactService, logger)
	userHandler := handler.NewUserHandler(userService, logger)

	r := setupRouter(routerDeps{
		base:     h,
		health:   healthHandler,
		auth:     authHandler,
		contacts: contactHandler,
		users:    userHandler,
		guard:    guard,
		cache:    cacheClient,
		cfg:      cfg,
		logger:   logger,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	if mailWorker != nil {
		go func() {
			if err := mailWorker.Run(ctx); err != nil {
				logger.Error("mail worker error", "error", err)
			}
		}()
		srv.OnShutdown("mail_worker", mailWorker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
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
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	base     *handler.Handler
	health   *handler.HealthHandler
	auth     *handler.AuthHandler
	contacts *handler.ContactHandler
	users    *handler.UserHandler
	guard    *auth.Guard
	cache    *cache.Cache
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: deps.cfg.IsDevelopment(),
	}))
	r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))

	if origins := deps.cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}

	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/", deps.base.Hello)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  deps.logger,
		Cache:   deps.cache,
		Enabled: deps.cfg.RateLimitEnabled,
	}
	authLimit := middleware.RateLimitIP(rateLimitCfg, "auth",
		deps.cfg.RateLimitAuthCount, deps.cfg.RateLimitAuthWindow)
	contactLimit := middleware.RateLimitUser(rateLimitCfg, "contacts",
		deps.cfg.RateLimitContactsCount, deps.cfg.RateLimitContactsWindow)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/signup", deps.auth.Signup)
			r.Post("/login", deps.auth.Login)
			r.Get("/refresh_token", deps.auth.Refresh)
			r.Get("/confirmed_email/{token}", deps.auth.ConfirmedEmail)
			r.Post("/request_email", deps.auth.RequestEmail)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.guard, deps.logger))

			r.Route("/contacts", func(r chi.Router) {
				r.With(contactLimit).Post("/", deps.contacts.Create)
				r.With(contactLimit).Get("/", deps.contacts.List)
				r.Get("/search/", deps.contacts.Search)
				r.Get("/upcoming-birthdays/", deps.contacts.UpcomingBirthdays)
				r.Get("/{id}", deps.contacts.Get)
				r.Put("/{id}", deps.contacts.Update)
				r.Delete("/{id}", deps.contacts.Delete)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", deps.users.Me)
				r.Put("/avatar", deps.users.UpdateAvatar)
			})
		})
	})

	r.NotFound(deps.base.NotFound)
	r.MethodNotAllowed(deps.base.MethodNotAllowed)

	return r
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
