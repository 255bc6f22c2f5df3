package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/h4ev/formgate/internal/accounts"
	"github.com/h4ev/formgate/internal/audit"
	"github.com/h4ev/formgate/internal/auth"
	"github.com/h4ev/formgate/internal/cache"
	"github.com/h4ev/formgate/internal/config"
	"github.com/h4ev/formgate/internal/database"
	"github.com/h4ev/formgate/internal/handlers"
	httpserver "github.com/h4ev/formgate/internal/http"
	"github.com/h4ev/formgate/internal/logging"
	"github.com/h4ev/formgate/internal/onadata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Invalid logging configuration: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	db, err := database.Open(logger, database.Config{
		Driver:     cfg.DBDriver,
		SQLitePath: cfg.SQLitePath,
		User:       cfg.PostgresUser,
		Password:   cfg.PostgresPassword,
		Host:       cfg.PostgresHost,
		Port:       cfg.PostgresPort,
		DBName:     cfg.PostgresDatabase,
		SSLMode:    cfg.PostgresSSLMode,
	})
	if err != nil {
		return err
	}

	store, err := newCacheStore(cfg, logger, db)
	if err != nil {
		return err
	}
	responseCache := cache.NewResponseCache(logger, store, cfg.CacheTTL, cfg.CacheKeyWindow)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	accountService := accounts.NewService(logger, accounts.NewGormStore(db))

	formsClient := onadata.NewClient(logger, onadata.Config{
		BaseURL: cfg.OnadataBaseURL,
		Token:   cfg.OnadataToken,
		Timeout: cfg.OnadataTimeout,
	})

	rateLimiter := handlers.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	router := handlers.Router{
		Logger:         logger,
		Accounts:       handlers.NewAccountHandler(logger, accountService, tokens),
		Forms:          handlers.NewFormsHandler(logger, formsClient, responseCache),
		Authenticator:  auth.NewAuthenticator(logger, tokens, accountService),
		Audit:          audit.NewLogger(logger, cfg.AuditLogDir),
		RateLimiter:    rateLimiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	server := httpserver.New(logger, router.Handler(), httpserver.Config{Addr: cfg.ListenAddr, TLSAddr: cfg.TLSAddr})
	g.Go(func() error { return server.Run(gctx) })

	g.Go(func() error {
		rateLimiter.Cleanup(gctx)
		return nil
	})

	if purger, ok := store.(cache.Purger); ok {
		g.Go(func() error {
			cache.NewCachePurger(logger, purger, cfg.CachePurgeInterval).Start(gctx)
			return nil
		})
	}

	logger.WithFields(logrus.Fields{
		"cache_backend": cfg.CacheBackend,
		"cache_ttl":     responseCache.TTL(),
		"audit_log_dir": cfg.AuditLogDir,
		"upstream":      cfg.OnadataBaseURL,
	}).Info("formgate started")

	return g.Wait()
}

func newCacheStore(cfg *config.Config, logger *logrus.Logger, db *gorm.DB) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemoryStore(cfg.CacheMemorySize)
	case "database":
		return cache.NewDatabaseStore(db), nil
	case "s3":
		return cache.NewS3Store(logger, cache.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, db)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.CacheBackend)
	}
}
