package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"locker-reservation-service/internal/adapters/audit"
	"locker-reservation-service/internal/adapters/geocode"
	"locker-reservation-service/internal/adapters/notify"
	"locker-reservation-service/internal/adapters/ratelimit"
	"locker-reservation-service/internal/adapters/repositories"
	"locker-reservation-service/internal/api"
	"locker-reservation-service/internal/config"
	"locker-reservation-service/internal/platform/clock"
	"locker-reservation-service/internal/platform/db"
	"locker-reservation-service/internal/platform/obs"
	"locker-reservation-service/internal/ports"
	"locker-reservation-service/internal/services"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// main is the application composition root.
// It wires concrete adapters (SQL store, Redis, RabbitMQ) behind ports, starts
// the HTTP server and runs the expiry reclaimer until a shutdown signal.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	sqlDB, err := db.OpenFor(cfg.DBDriver, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	dialect, err := repositories.DialectFor(cfg.DBDriver)
	if err != nil {
		return err
	}
	store := repositories.NewSQLLockerStore(sqlDB, dialect)
	log.Printf("Database ready dialect=%s", dialect.Name())

	var geo ports.Geocoder
	if cfg.ORSAPIKey != "" {
		g, err := geocode.NewORSGeocoder(cfg.ORSAPIKey, cfg.ORSBaseURL, repositories.NewSQLGeocodeCache(sqlDB, dialect))
		if err != nil {
			return err
		}
		geo = g
	}

	// Initialize schema and seed demo data on startup for local runs.
	if err := initAndSeed(ctx, sqlDB, store, cfg.SeedPath, geo); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	deps := services.Deps{
		Store:   store,
		Clock:   clock.Real{},
		Metrics: metrics,
	}

	auditors := audit.Multi{audit.NewLogAuditor(os.Stdout)}
	if cfg.RabbitURL != "" {
		pub, err := notify.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer pub.Close()

		deps.Notifier = notify.NewEventNotifier(pub)
		auditors = append(auditors, audit.NewPublishingAuditor(pub))
		log.Printf("Publishing events exchange=%s", cfg.EventsExchange)
	} else {
		deps.Notifier = notify.LogNotifier{}
	}
	deps.Auditor = auditors

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		deps.Guard = ratelimit.NewRedisPickupGuard(rdb, cfg.PickupMaxFailures, cfg.PickupFailureWindow)
		log.Printf("Pickup guard enabled redis=%s max_failures=%d", cfg.RedisAddr, cfg.PickupMaxFailures)
	}

	locker := services.New(deps, cfg.Policy())
	router := api.NewRouter(locker, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Server listening addr=:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReclaimInterval)
		defer ticker.Stop()
		log.Printf("Reclaimer running interval=%s batch=%d", cfg.ReclaimInterval, cfg.ReclaimBatchSize)
		if err := locker.Reclaimer.Run(gctx, ticker.C); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func initAndSeed(
	ctx context.Context,
	sqlDB *sql.DB,
	store ports.LockerStore,
	seedPath string,
	geo ports.Geocoder,
) error {
	if err := repositories.InitSchema(ctx, sqlDB); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	if _, err := os.Stat(seedPath); errors.Is(err, os.ErrNotExist) {
		log.Printf("No seed file at %s, skipping seed", seedPath)
		return nil
	}
	if err := repositories.SeedFromJSON(ctx, store, seedPath, time.Now().UTC(), geo); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	return nil
}
