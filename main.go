// nightboard/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nightboard/config"
	"nightboard/database"
	"nightboard/handlers"
	"nightboard/models"
	"nightboard/utils"
)

type Application struct {
	db          *database.DatabaseService
	rateLimiter *models.RateLimiter
	challenges  *models.ChallengeStore
	logger      *slog.Logger
	storage     models.StorageService
	settings    *config.Settings
}

// Methods to satisfy the handlers.App interface
func (a *Application) DB() *database.DatabaseService      { return a.db }
func (a *Application) RateLimiter() *models.RateLimiter   { return a.rateLimiter }
func (a *Application) Challenges() *models.ChallengeStore { return a.challenges }
func (a *Application) Logger() *slog.Logger               { return a.logger }
func (a *Application) Storage() models.StorageService     { return a.storage }
func (a *Application) Settings() *config.Settings         { return a.settings }

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// pruneSessions drops expired sessions every interval until ctx is done.
func pruneSessions(ctx context.Context, db *database.DatabaseService, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := db.PruneSessions(now)
			if err != nil {
				logger.Error("Failed to prune sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Pruned expired sessions", "count", n)
			}
		}
	}
}

func main() {
	settings, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(settings.LogLevel)}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(settings.BackupDir, 0755); err != nil {
		logger.Error("FATAL: Could not create backup directory", "path", settings.BackupDir, "error", err)
		os.Exit(1)
	}

	if len(settings.TrustedProxies) > 0 {
		logger.Info("Forwarding headers trusted", "proxies", settings.TrustedProxies)
	}

	dbService, err := database.InitDB(settings.DBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if settings.Admin.Username != "" && settings.Admin.Password != "" {
		created, err := dbService.EnsureAdmin(settings.Admin.Username, settings.Admin.Email, settings.Admin.Password)
		if err != nil {
			logger.Error("Failed to bootstrap administrator", "username", settings.Admin.Username, "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("Administrator account created", "username", settings.Admin.Username)
		}
	}

	if err := handlers.LoadTemplates(); err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage Service Init ---
	var storageService models.StorageService
	var mediaOrigin string
	if settings.S3.Enabled {
		s3 := settings.S3
		store, err := utils.NewS3Storage(ctx, s3.Endpoint, s3.AccessKey, s3.SecretKey, s3.Bucket, s3.Region, s3.PublicURL, s3.UseSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		storageService = store
		mediaOrigin = store.PublicURL
		logger.Info("S3 Storage initialized", "endpoint", s3.Endpoint, "bucket", s3.Bucket)
	} else {
		store, err := utils.NewLocalStorage(settings.MediaDir)
		if err != nil {
			logger.Error("FATAL: Could not create media directory", "path", settings.MediaDir, "error", err)
			os.Exit(1)
		}
		storageService = store
		logger.Info("Local Storage initialized", "dir", settings.MediaDir)
	}

	app := &Application{
		db:          dbService,
		rateLimiter: models.NewRateLimiter(settings.RateEvery, settings.RateBurst, settings.RatePrune, settings.RateExpire),
		challenges:  models.NewChallengeStore(),
		logger:      logger,
		storage:     storageService,
		settings:    settings,
	}

	mux := handlers.SetupRouter(app)
	finalHandler := handlers.AppContextMiddleware(app, handlers.CSRFMiddleware(handlers.NewSecurityHeadersMiddleware(mediaOrigin, settings.SecureCookies)(mux)))

	go pruneSessions(ctx, dbService, logger, time.Hour)

	// --- Graceful Shutdown ---
	server := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           finalHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("nightboard server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+settings.Port,
		"admin_path", settings.AdminPath,
	)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
