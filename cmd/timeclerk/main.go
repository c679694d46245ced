package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"timeclerk/internal/config"
	"timeclerk/internal/engine"
	"timeclerk/internal/reconcile"
	"timeclerk/internal/repository"
	"timeclerk/internal/server"
	"timeclerk/internal/service"
	"timeclerk/internal/stats"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var cache *stats.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		cache = stats.NewCache(client, "stats:", 0)
		log.Printf("[info] stats cache enabled at %s", cfg.RedisAddr)
	}

	var invalidator engine.CacheInvalidator
	if cache != nil {
		invalidator = cache
	}
	eng := engine.New(db, invalidator)
	aggregator := stats.NewAggregator(db, cache)
	sweeper := reconcile.NewSweeper(db, cfg.ReconcileRepair)

	scheduler := service.NewSchedulerService(time.Local)
	runSweep := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		drifts, err := sweeper.Sweep(jobCtx)
		if err != nil {
			log.Printf("[error] reconcile sweep: %v", err)
			return
		}
		log.Printf("[info] reconcile sweep done, %d drifted task(s)", len(drifts))
	}
	scheduled := false
	switch {
	case cfg.ReconcileTime != "":
		if _, err := scheduler.ScheduleDaily(cfg.ReconcileTime, runSweep); err != nil {
			log.Fatalf("schedule reconcile: %v", err)
		}
		log.Printf("[info] reconcile sweep scheduled daily at %s", cfg.ReconcileTime)
		scheduled = true
	case cfg.ReconcileInterval > 0:
		if _, err := scheduler.ScheduleInterval(cfg.ReconcileInterval, runSweep); err != nil {
			log.Fatalf("schedule reconcile: %v", err)
		}
		scheduled = true
	}
	if scheduled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	app := fiber.New(fiber.Config{AppName: "timeclerk"})
	server.NewHandler(eng, aggregator).RegisterRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.HTTPAddr)
	}()
	log.Printf("[info] timeclerk listening on %s", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("[error] shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("server stopped with error: %v", err)
		}
	}
	log.Println("Shutdown complete.")
}
