package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/cardforge/mint-worker/config"
	infraPkg "github.com/cardforge/mint-worker/infra"
	"github.com/cardforge/mint-worker/processor/worker"
	"github.com/cardforge/mint-worker/repository"
	"github.com/joho/godotenv"
)

const (
	workerLockKey = "mint-worker:leader"
	workerLockTTL = 30 * time.Second

	// After this many consecutive failed refreshes the lease must be
	// assumed lost and the run loop stopped: a second instance could
	// already be minting the same rows.
	maxLockRefreshFailures = 3
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra, cfg.EnvConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Exactly one worker instance may run against a given job store:
	// there is no row-level claim step, so two instances could fetch and
	// mint the same pending rows.
	locker := redislock.New(infra.Redis.Client)
	lock, err := locker.Obtain(ctx, workerLockKey, workerLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		log.Fatalf("Another mint worker instance already holds the lock %q", workerLockKey)
	}
	if err != nil {
		log.Fatalf("Failed to obtain worker lock: %v", err)
	}
	defer func() {
		_ = lock.Release(context.Background())
	}()

	go refreshLease(ctx, lock, workerLockTTL/3, infra.Logger, cancel)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		infra.Logger.InfoWithContextf(ctx, "[Mint Processor] Received %s, shutting down...", sig)
		cancel()
	}()

	processor := worker.NewMintProcessor(
		cfg.EnvConfig,
		repo.MintJobRepo,
		infra.MintService,
		infra.Logger,
		infra.Metrics,
		infra.Produce.NotificationService,
	)

	runErr := processor.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = infra.Metrics.Shutdown(shutdownCtx)
	_ = infra.Logger.Shutdown(shutdownCtx)
	infra.RabbitMQ.Close()
	infra.Postgres.Close()
	infra.Redis.Close()

	if runErr != nil {
		log.Printf("Mint processor stopped with error: %v", runErr)
		os.Exit(1)
	}
}

// lease is the part of redislock.Lock the refresh loop needs.
type lease interface {
	Refresh(ctx context.Context, ttl time.Duration, opt *redislock.Options) error
}

// refreshLease keeps the single-instance lease alive for the duration
// of the run loop. Once maxLockRefreshFailures refreshes in a row fail,
// the lease is treated as lost and onLost stops the run loop.
func refreshLease(ctx context.Context, lock lease, interval time.Duration, logger *infraPkg.LoggerClient, onLost func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := lock.Refresh(ctx, workerLockTTL, nil)
			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return
			}
			failures++
			logger.WarningWithContextf(ctx, "[Mint Processor] Failed to refresh worker lock (%d/%d): %v", failures, maxLockRefreshFailures, err)
			if failures >= maxLockRefreshFailures {
				logger.ErrorWithContextf(ctx, err, "[Mint Processor] Worker lock lost, stopping run loop")
				onLost()
				return
			}
		}
	}
}
