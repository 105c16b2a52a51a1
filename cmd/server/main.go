package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skotchmaster/learnhub/internal/config"
	"github.com/Skotchmaster/learnhub/internal/db"
	"github.com/Skotchmaster/learnhub/internal/events"
	"github.com/Skotchmaster/learnhub/internal/handlers"
	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/metrics"
	loggingmw "github.com/Skotchmaster/learnhub/internal/middleware/logging"
	"github.com/Skotchmaster/learnhub/internal/repo"
	"github.com/Skotchmaster/learnhub/internal/search"
	"github.com/Skotchmaster/learnhub/internal/service"
	"github.com/Skotchmaster/learnhub/internal/storage/memory"
	"github.com/Skotchmaster/learnhub/internal/storage/minio"
	"github.com/Skotchmaster/learnhub/internal/tokens"
	httpserver "github.com/Skotchmaster/learnhub/internal/transport/http"
	"github.com/Skotchmaster/learnhub/internal/upload"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	initCtx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), logger), 30*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		logger.Error("db_init_error", "error", err)
		os.Exit(1)
	}

	objects, err := newObjectStore(initCtx, cfg.Storage)
	if err != nil {
		cancel()
		logger.Error("storage_init_error", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}

	index := newUploadIndex(initCtx, cfg)
	cancel()

	producer := events.NewProducer(cfg.KafkaBrokers)
	if !producer.Enabled() {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	issuer := tokens.NewIssuer(tokens.Config{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	m := metrics.New(prometheus.DefaultRegisterer)
	relay := upload.NewRelay(objects, upload.Config{
		URLTTL:   cfg.Upload.URLTTL,
		Timeout:  cfg.Upload.Timeout,
		Retries:  cfg.Upload.Retries,
		Observer: m,
	})
	rp := repo.New(gdb)

	var storagePing httpserver.Pinger
	if p, ok := objects.(httpserver.Pinger); ok {
		storagePing = p
	}
	var remover service.ObjectRemover
	if r, ok := objects.(service.ObjectRemover); ok {
		remover = r
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 60 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), m.Middleware(), loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		DB:             gdb,
		Storage:        storagePing,
		Metrics:        metrics.Handler(prometheus.DefaultGatherer),
		Tokens:         issuer,
		Relay:          relay,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		CookieSecure:   cfg.CookieSecure,
		AuthHandler: &handlers.AuthHandler{
			Svc:              &service.AuthService{Repo: rp, Tokens: issuer, Events: producer},
			AccessCookieTTL:  cfg.AccessCookieTTL,
			RefreshCookieTTL: cfg.RefreshCookieTTL,
			CookieSecure:     cfg.CookieSecure,
		},
		UserHandler:   &handlers.UserHandler{Svc: &service.UserService{Repo: rp}},
		UploadHandler: &handlers.UploadHandler{Svc: &service.UploadService{Repo: rp, Events: producer, Index: index, Objects: remover}},
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	go func() {
		logger.Info("http_listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (upload.ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageMinio:
		return minio.New(ctx, cfg)
	case config.StorageMemory:
		logging.FromContext(ctx).Warn("storage_memory", "reason", "objects are lost on restart")
		return memory.New(cfg.Bucket), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// Search is optional: without ES_URL, or when the cluster is unreachable at
// boot, uploads are stored but not indexed.
func newUploadIndex(ctx context.Context, cfg config.Config) *search.Uploads {
	l := logging.FromContext(ctx)
	if cfg.ESURL == "" {
		l.Warn("search_disabled", "reason", "ES_URL is empty")
		return search.NewUploads(nil, cfg.ESUploadsIndex)
	}

	client, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
	if err != nil {
		l.Error("search_disabled", "reason", "elasticsearch unreachable", "error", err)
		return search.NewUploads(nil, cfg.ESUploadsIndex)
	}
	return search.NewUploads(client, cfg.ESUploadsIndex)
}
