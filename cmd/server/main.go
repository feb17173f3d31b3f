package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-reservation/internal/config"
	"github.com/iliyamo/venue-reservation/internal/database"
	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/logger"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/repository"
	"github.com/iliyamo/venue-reservation/internal/repository/memory"
	"github.com/iliyamo/venue-reservation/internal/router"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/worker"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		zl.Warn("redis unavailable, rate limiting and caching disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer func() { _ = rdb.Close() }()
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitMQURL, zl.Named("publisher"))
		defer func() { _ = pub.Close() }()
		events = pub

		audit := queue.NewAuditConsumer(cfg.RabbitMQURL, cfg.AuditLogPath, zl.Named("audit"))
		go func() {
			if err := audit.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	engine := service.NewAvailabilityEngine(store, cfg.Timezone)
	svc := service.NewReservationService(store, engine,
		service.WithPublisher(events),
		service.WithLogger(zl.Named("reservations")),
	)

	if cfg.SweeperInterval > 0 {
		sweeper := worker.NewCompletionSweeper(svc, cfg.SweeperInterval, zl)
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(zl.Named("http")))
	e.Use(echomw.ContextTimeout(cfg.RequestTimeout))

	router.RegisterRoutes(e, handler.Health(health))
	router.RegisterReservations(e, handler.NewReservationHandler(svc, zl.Named("handler")), router.ReservationRoutes{
		JWTSecret:    cfg.JWTSecret,
		WriteLimiter: middleware.NewTokenBucket(cfg.RateLimit, rdb, zl.Named("ratelimit")),
		StatsCache:   middleware.NewRedisCache(cfg.Cache, rdb),
		VenueRoles:   cfg.VenueViewRoles,
	})

	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening",
			zap.String("addr", ":"+cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
			zap.String("timezone", cfg.Timezone.String()))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore builds the Store for STORE_DRIVER together with the health
// check and cleanup that belong to it.
func openStore(ctx context.Context, cfg config.Config, zl *zap.Logger) (repository.Store, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := memory.New()
		if cfg.MemorySeedFile != "" {
			if err := mem.LoadSeedFile(cfg.MemorySeedFile); err != nil {
				return nil, nil, nil, err
			}
		}
		zl.Info("using in-memory store", zap.String("seed", cfg.MemorySeedFile))
		return mem, nil, func() {}, nil
	default:
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		if cfg.DB.AutoMigrate {
			if err := database.EnsureSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, nil, err
			}
		}
		zl.Info("connected to mysql", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
		return repository.NewSQLStore(db), db.PingContext, closeDB(db, zl), nil
	}
}

func closeDB(db *sql.DB, zl *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			zl.Warn("close mysql", zap.Error(err))
		}
	}
}
