package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/godilite/email-insights/internal/config"
	"github.com/godilite/email-insights/internal/httpx"
	"github.com/godilite/email-insights/internal/ingest"
	"github.com/godilite/email-insights/internal/repository"
	"github.com/godilite/email-insights/internal/service"
	"github.com/godilite/email-insights/pkg/cache"
	dbbuilder "github.com/godilite/email-insights/pkg/database"
)

type App struct {
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      *cache.Cache
	httpServer *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("database pool initialized", zap.String("path", cfg.DBPath))

	var cacheClient *cache.Cache
	if cfg.CacheEnabled {
		cacheClient, err = cache.New(ctx, cache.WithAddress(cfg.RedisAddr))
		if err != nil {
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		logger.Info("cache client initialized", zap.String("addr", cfg.RedisAddr))
	}

	store := repository.NewWeekStoreRepository(dbPool)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}

	// Reconstruct state from storage. Missing artifacts are tolerated;
	// the caller just sees less data until the weeks are re-ingested.
	report, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load historical data: %w", err)
	}
	if report.Complete {
		logger.Info("historical data loaded",
			zap.Int("weeks", report.WeeksFound),
			zap.String("latest_week", report.LatestWeek))
	} else {
		logger.Warn("historical data incomplete",
			zap.Int("weeks_found", report.WeeksFound),
			zap.Strings("missing_weeks", report.MissingWeeks),
			zap.Bool("mapping_loaded", report.MappingLoaded))
	}

	ingestor := ingest.NewIngestor(store, logger)
	reports := service.NewReportService(store, logger)

	var cacher httpx.Cacher
	if cacheClient != nil {
		cacher = cacheClient
	}
	handlers := httpx.NewHandlers(reports, ingestor, cacher, logger, cfg.CacheTTL)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpx.NewRouter(handlers, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		logger:     logger,
		dbPool:     dbPool,
		cache:      cacheClient,
		httpServer: httpServer,
	}, nil
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.logger.Info("application starting", zap.String("addr", a.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
	}

	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown error", zap.Error(err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}

	a.logger.Info("graceful shutdown completed")
	_ = a.logger.Sync()
	return nil
}
