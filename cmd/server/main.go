package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hugh/recipebox/internal/api"
	"github.com/hugh/recipebox/internal/auth"
	"github.com/hugh/recipebox/internal/database"
	"github.com/hugh/recipebox/internal/storage"
	"github.com/hugh/recipebox/pkg/config"
	"github.com/hugh/recipebox/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting recipebox server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis; the token cache and health check degrade
	// gracefully without it.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient = nil
	}

	// Initialize services
	var tokenCache *auth.TokenCache
	if redisClient != nil {
		tokenCache = auth.NewTokenCache(redisClient, time.Hour)
	}
	authService := auth.NewService(db, tokenCache)

	// Initialize image storage
	store, mediaDir, err := newImageStore(&cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize image storage", "error", err)
		os.Exit(1)
	}
	logger.Info("image storage ready", "driver", cfg.Storage.Driver)

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		AuthService:    authService,
		ImageStore:     store,
		MediaDir:       mediaDir,
		AllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

// newImageStore builds the configured storage driver. The second return
// value is the directory to serve under /media, empty for remote drivers.
func newImageStore(cfg *config.StorageConfig) (storage.ImageStore, string, error) {
	switch cfg.Driver {
	case "s3":
		store, err := storage.NewS3Store(context.Background(), storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		return store, "", err
	case "gcs":
		store, err := storage.NewGCSStore(context.Background(), storage.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
		})
		return store, "", err
	default:
		store, err := storage.NewLocalStore(cfg.MediaDir, cfg.MediaURL)
		return store, cfg.MediaDir, err
	}
}
