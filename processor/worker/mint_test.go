package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cardforge/mint-worker/config"
	"github.com/cardforge/mint-worker/entity"
	"github.com/cardforge/mint-worker/infra"
	"github.com/cardforge/mint-worker/repository"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entity.MintJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestProcessor(t *testing.T, db *gorm.DB, submitter Submitter, tune func(*config.EnvConfig)) (*MintProcessor, *repository.MintJobRepository) {
	t.Helper()
	cfg := &config.EnvConfig{}
	cfg.Worker.BatchSize = 100
	cfg.Worker.MaxRetries = 3
	cfg.Worker.PollInterval = time.Millisecond
	cfg.Worker.Concurrency = 10
	cfg.Worker.EmptyPollLimit = 3
	if tune != nil {
		tune(cfg)
	}

	repo := repository.NewMintJobRepository(db, cfg.Worker.RetryDelay, cfg.Worker.MaxRetries)
	log := infra.NewLoggerClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewMintProcessor(cfg, repo, submitter, log, nil, nil), repo
}

func seedPending(t *testing.T, db *gorm.DB, n int) []entity.MintJob {
	t.Helper()
	jobs := make([]entity.MintJob, 0, n)
	for i := 0; i < n; i++ {
		job := entity.MintJob{
			MintID:    uuid.New(),
			CardType:  "Brella",
			Level:     2,
			Title:     fmt.Sprintf("card-%d", i),
			Recipient: "0x7c41a0d8d9f35a2b",
			Rarity:    "rare",
			Rank:      4,
			Status:    entity.MintJobStatusPending,
		}
		if err := db.Create(&job).Error; err != nil {
			t.Fatalf("seed job: %v", err)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func TestRunDrainsQueueToCompletion(t *testing.T) {
	db := newTestDB(t)
	submitter := submitterFunc(func(ctx context.Context, request infra.MintRequest) (*infra.MintResponse, error) {
		return &infra.MintResponse{Status: infra.MintStatusSuccess, Digest: "0x" + request.Title}, nil
	})
	processor, repo := newTestProcessor(t, db, submitter, func(cfg *config.EnvConfig) {
		cfg.Worker.BatchSize = 2
	})
	seedPending(t, db, 5)

	if err := processor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts.Pending != 0 || counts.Completed != 5 || counts.Failed != 0 {
		t.Fatalf("expected full drain to completed, got %+v", counts)
	}

	var jobs []entity.MintJob
	if err := db.Find(&jobs).Error; err != nil {
		t.Fatalf("load jobs: %v", err)
	}
	for _, job := range jobs {
		if job.TransactionDigest == nil || *job.TransactionDigest == "" {
			t.Fatalf("completed job %s missing digest", job.MintID)
		}
		if job.CompletedAt == nil {
			t.Fatalf("completed job %s missing completed_at", job.MintID)
		}
	}
}

func TestRunRetriesUntilTerminalFailure(t *testing.T) {
	db := newTestDB(t)
	submitter := submitterFunc(func(ctx context.Context, request infra.MintRequest) (*infra.MintResponse, error) {
		return nil, errors.New("insufficient gas")
	})
	processor, repo := newTestProcessor(t, db, submitter, nil)
	seeded := seedPending(t, db, 1)

	if err := processor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var job entity.MintJob
	if err := db.First(&job, seeded[0].ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if job.Status != entity.MintJobStatusFailed {
		t.Fatalf("expected terminal failure, got %s", job.Status)
	}
	if job.RetryCount != 3 {
		t.Fatalf("expected exactly 3 recorded attempts, got %d", job.RetryCount)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage != "insufficient gas" {
		t.Fatalf("expected last error recorded, got %v", job.ErrorMessage)
	}
	if job.TransactionDigest != nil {
		t.Fatalf("failed job must not carry a digest")
	}

	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts.Failed != 1 || counts.Pending != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestRunMixedBatchIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	submitter := submitterFunc(func(ctx context.Context, request infra.MintRequest) (*infra.MintResponse, error) {
		if request.Title == "card-0" {
			return nil, errors.New("transaction rejected")
		}
		return &infra.MintResponse{Status: infra.MintStatusSuccess, Digest: "0xgood"}, nil
	})
	processor, _ := newTestProcessor(t, db, submitter, nil)
	seeded := seedPending(t, db, 2)

	if err := processor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var failing, succeeding entity.MintJob
	if err := db.First(&failing, seeded[0].ID).Error; err != nil {
		t.Fatalf("reload failing job: %v", err)
	}
	if err := db.First(&succeeding, seeded[1].ID).Error; err != nil {
		t.Fatalf("reload succeeding job: %v", err)
	}

	if failing.Status != entity.MintJobStatusFailed {
		t.Fatalf("expected failing job terminal, got %s", failing.Status)
	}
	if succeeding.Status != entity.MintJobStatusCompleted {
		t.Fatalf("sibling must complete despite failures, got %s", succeeding.Status)
	}
}

func TestRunRequiresConsecutiveEmptyPollsToStop(t *testing.T) {
	db := newTestDB(t)
	submitter := submitterFunc(func(ctx context.Context, request infra.MintRequest) (*infra.MintResponse, error) {
		return &infra.MintResponse{Status: infra.MintStatusSuccess, Digest: "0xabc"}, nil
	})
	pollInterval := 25 * time.Millisecond
	processor, _ := newTestProcessor(t, db, submitter, func(cfg *config.EnvConfig) {
		cfg.Worker.PollInterval = pollInterval
	})

	start := time.Now()
	if err := processor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	// Three consecutive empty polls means at least two poll-interval
	// sleeps before the drain verdict.
	if elapsed < 2*pollInterval {
		t.Fatalf("stopped after %s; a single empty poll must not count as drained", elapsed)
	}
}

func TestRunStoreFailureStopsLoop(t *testing.T) {
	db := newTestDB(t)
	submitter := submitterFunc(func(ctx context.Context, request infra.MintRequest) (*infra.MintResponse, error) {
		return &infra.MintResponse{Status: infra.MintStatusSuccess, Digest: "0xabc"}, nil
	})
	processor, _ := newTestProcessor(t, db, submitter, nil)
	seedPending(t, db, 1)

	if err := db.Migrator().DropTable(&entity.MintJob{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if err := processor.Run(context.Background()); err == nil {
		t.Fatalf("expected an error when the job store is unusable")
	}
}

func TestRunRecordsInFlightChunkAfterShutdown(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	submitter := submitterFunc(func(ctx context.Context, request infra.MintRequest) (*infra.MintResponse, error) {
		// Stop request lands mid-submission; the outcome must still be
		// recorded before the loop exits.
		cancel()
		return &infra.MintResponse{Status: infra.MintStatusSuccess, Digest: "0xlate"}, nil
	})
	processor, _ := newTestProcessor(t, db, submitter, nil)
	seeded := seedPending(t, db, 1)

	if err := processor.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var job entity.MintJob
	if err := db.First(&job, seeded[0].ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if job.Status != entity.MintJobStatusCompleted {
		t.Fatalf("in-flight outcome lost on shutdown: status %s", job.Status)
	}
	if job.TransactionDigest == nil || *job.TransactionDigest != "0xlate" {
		t.Fatalf("expected digest recorded, got %v", job.TransactionDigest)
	}
}
