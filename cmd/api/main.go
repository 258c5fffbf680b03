package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fruteria-pos/api/controllers"
	"github.com/angelmondragon/fruteria-pos/api/routes"
	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/internal/checkout"
	"github.com/angelmondragon/fruteria-pos/internal/receipts"
	"github.com/angelmondragon/fruteria-pos/internal/sales"
	"github.com/angelmondragon/fruteria-pos/internal/sessions"
	"github.com/angelmondragon/fruteria-pos/pkg/backend"
	"github.com/angelmondragon/fruteria-pos/pkg/config"
	"github.com/angelmondragon/fruteria-pos/pkg/db"
	"github.com/angelmondragon/fruteria-pos/pkg/instance"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	"github.com/angelmondragon/fruteria-pos/pkg/metrics"
	"github.com/angelmondragon/fruteria-pos/pkg/migrate"
	pkgredis "github.com/angelmondragon/fruteria-pos/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	pingers := map[string]controllers.Pinger{}

	var receiptsRepo *receipts.Repository
	if cfg.Receipts.Enabled {
		dbClient, dbErr := db.New(ctx, cfg.DB, logg)
		if dbErr != nil {
			return dbErr
		}
		closers = append(closers, dbClient)
		if err := migrate.MaybeRun(ctx, cfg.DB, logg, dbClient); err != nil {
			return err
		}
		pingers["db"] = dbClient
		receiptsRepo = receipts.NewRepository(dbClient.DB())
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient)
		pingers["redis"] = redisClient
	}

	backendClient, err := backend.New(cfg.Backend, logg)
	if err != nil {
		return err
	}

	view, err := catalog.NewView(backendClient)
	if err != nil {
		return err
	}
	if refreshErr := view.Refresh(ctx); refreshErr != nil {
		logg.Warn(logg.WithField(ctx, "error", refreshErr.Error()), "catalog.initial_refresh_failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	coordinator, err := checkout.NewCoordinator(checkout.CoordinatorParams{
		Submitter: backendClient,
		Refresher: view,
		Metrics:   metrics.NewCheckoutMetrics(registry),
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	ledger, err := sales.NewLedger(backendClient)
	if err != nil {
		return err
	}

	store, err := sessionStore(cfg, redisClient)
	if err != nil {
		return err
	}

	params := sessions.ServiceParams{
		Store:    store,
		Catalog:  view,
		Checkout: coordinator,
		Logger:   logg,
	}
	var receiptReader controllers.ReceiptReader
	if receiptsRepo != nil {
		params.Receipts = receiptsRepo
		receiptReader = receiptsRepo
	}
	sessionService, err := sessions.NewService(params)
	if err != nil {
		return err
	}

	var idempotencyStore pkgredis.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, registry, pingers, view, sessionService, ledger, receiptReader, idempotencyStore),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"session_store": cfg.Sessions.Kind(),
		"receipts":      cfg.Receipts.Enabled,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func sessionStore(cfg *config.Config, redisClient *pkgredis.Client) (sessions.Store, error) {
	if cfg.Sessions.Kind() != config.SessionStoreRedis {
		return sessions.NewMemoryStore(), nil
	}
	if redisClient == nil {
		return nil, errors.New("redis session store requires a redis connection")
	}
	return sessions.NewRedisStore(redisClient, cfg.Sessions.TTL)
}
