// Package server initializes and runs the counter reconciliation server: it
// opens the database, runs migrations, connects the cache backend and starts
// the background drift-repair worker.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"artfolio/internal/logging"
	"artfolio/internal/server/cache"
	"artfolio/internal/server/config"
	"artfolio/internal/server/invalidation"
	"artfolio/internal/server/repositories/repomanager"
	"artfolio/internal/server/services"

	"github.com/redis/go-redis/v9"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client

	Engagement *services.EngagementService
	Views      *services.ViewService
	Repair     *services.RepairService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	// The cache is best-effort infrastructure: an unreachable Redis at
	// startup is logged, not fatal, because reads degrade to the ledger.
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn(ctx, "redis unreachable at startup, reads will degrade", "error", err)
	}

	store := cache.NewRedisCache(rdb)
	coordinator := invalidation.NewCoordinator(store, logger)

	reconciler := services.NewReconciler(db, repos, coordinator, logger)
	media := services.NewMediaService(c)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		redis:      rdb,
		Engagement: services.NewEngagementService(db, repos, reconciler, media, logger),
		Views:      services.NewViewService(db, repos, store, c, logger),
		Repair:     services.NewRepairService(db, repos, coordinator, logger, c.RepairInterval, c.RepairPageSize),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Repair.Run(ctx)
	}()

	wg.Wait()

	app.Shutdown(context.Background())
}

// Shutdown releases the database and cache connections.
func (app *App) Shutdown(ctx context.Context) {
	if err := app.redis.Close(); err != nil {
		app.logger.Error(ctx, "redis close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "app stopped")
}
