// Package main is the entry point for the memorial server.
//
// main only reads configuration, builds the dependency chain and starts
// the server. Everything else lives under internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/memorial/internal/auth"
	"github.com/sakif/memorial/internal/config"
	"github.com/sakif/memorial/internal/logging"
	"github.com/sakif/memorial/internal/metrics"
	"github.com/sakif/memorial/internal/repository"
	"github.com/sakif/memorial/internal/repository/memory"
	redisRepo "github.com/sakif/memorial/internal/repository/redis"
	sqliteRepo "github.com/sakif/memorial/internal/repository/sqlite"
	"github.com/sakif/memorial/internal/server"
	"github.com/sakif/memorial/internal/service"
	"github.com/sakif/memorial/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "memorial: %v\n", err)
		os.Exit(1)
	}
}

// run holds the real main so deferred Close calls execute before exit.
func run() error {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	logger, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// === 3. STORE ===
	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Sessions live in the main store unless Redis is configured.
	var sessionRepo repository.SessionRepository = store
	if cfg.Redis.Addr != "" {
		client, err := redisRepo.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		sessionRepo = redisRepo.NewSessionStore(client, "")
		logger.Info("sessions stored in redis", slog.String("addr", cfg.Redis.Addr))
	}

	// === 4. UPLOADS ===
	files, uploadDir, err := openFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	var scanner storage.Scanner
	if cfg.Upload.ClamdAddr != "" {
		clam := storage.NewClamdScanner(cfg.Upload.ClamdAddr)
		if err := clam.Ping(); err != nil {
			logger.Warn("clamd not reachable yet, uploads will fail until it is",
				slog.String("addr", cfg.Upload.ClamdAddr),
				slog.String("error", err.Error()),
			)
		}
		scanner = clam
	}

	// === 5. SERVICES ===
	var m *metrics.Metrics
	var observer service.Observer
	if cfg.Metrics.Enabled {
		m = metrics.New()
		observer = m
	}

	tokens, err := auth.NewTokenService(cfg.Session.Secret)
	if err != nil {
		return err
	}
	sessions := auth.NewSessionManager(sessionRepo, tokens, cfg.Session.TTL)

	accounts := service.NewAccountService(store, sessions, auth.NewPasswordService(), observer, logger)
	if created, err := accounts.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Name); err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	} else if created {
		logger.Info("admin account ready", slog.String("username", cfg.Admin.Username))
	}

	svc := server.Services{
		Accounts: accounts,
		Tributes: service.NewTributeService(store, observer, logger),
		Content:  service.NewContentService(store, store, logger),
		Gallery:  service.NewGalleryService(store, files, logger),
		Uploads:  service.NewUploadService(files, scanner, cfg.Upload.MaxBytes, observer, logger),
		Auth:     auth.NewAuthenticator(sessions, store),
	}

	// === 6. SERVE ===
	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		CookieSecure:    cfg.Session.CookieSecure,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		UploadDir:       uploadDir,
	}, store, svc, m, logger)

	// Start blocks until SIGINT or SIGTERM.
	return srv.Start()
}

func openStore(cfg config.StorageConfig, logger *slog.Logger) (repository.Store, error) {
	if cfg.Driver == "memory" {
		logger.Warn("using the in-memory store, data is lost on restart")
		return memory.New(), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Info("database opened", slog.String("path", cfg.DBPath))
	return db, nil
}

// openFileStore returns the upload store and, for disk storage, the
// directory the server should publish under /uploads.
func openFileStore(ctx context.Context, cfg *config.Config) (storage.FileStore, string, error) {
	if cfg.Upload.Driver == "minio" {
		store, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKeyID,
			SecretAccessKey: cfg.MinIO.SecretAccessKey,
			Bucket:          cfg.MinIO.Bucket,
			Region:          cfg.MinIO.Region,
			UseSSL:          cfg.MinIO.UseSSL,
			PublicURL:       cfg.MinIO.PublicURL,
		})
		return store, "", err
	}

	disk, err := storage.NewDiskStore(cfg.Upload.Dir, cfg.Upload.BaseURL)
	if err != nil {
		return nil, "", err
	}
	return disk, disk.Root(), nil
}
