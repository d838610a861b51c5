package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cardforge/mint-worker/config"
	"github.com/cardforge/mint-worker/entity"
	"github.com/cardforge/mint-worker/infra"
	"github.com/cardforge/mint-worker/infra/produce"
	"github.com/cardforge/mint-worker/repository"
)

// OutcomePublisher fans mint outcomes out to downstream consumers.
// Publish failures are logged, never fatal: the job table remains the
// source of truth.
type OutcomePublisher interface {
	PublishMintOutcome(ctx context.Context, message produce.MintOutcomeMessage) error
}

// MintProcessor drains the mint job table: fetch a batch, submit it with
// bounded concurrency, record every outcome, repeat until the store is
// observed empty across several consecutive polls.
type MintProcessor struct {
	repo      *repository.MintJobRepository
	executor  *Executor
	logger    *infra.LoggerClient
	metrics   *infra.MetricsClient
	publisher OutcomePublisher

	batchSize      int
	pollInterval   time.Duration
	emptyPollLimit int

	processed int64
	completed int64
	failed    int64
	retried   int64
}

func NewMintProcessor(
	cfg *config.EnvConfig,
	repo *repository.MintJobRepository,
	submitter Submitter,
	logger *infra.LoggerClient,
	metrics *infra.MetricsClient,
	publisher OutcomePublisher,
) *MintProcessor {
	return &MintProcessor{
		repo:           repo,
		executor:       NewExecutor(submitter, cfg.Worker.Concurrency),
		logger:         logger,
		metrics:        metrics,
		publisher:      publisher,
		batchSize:      cfg.Worker.BatchSize,
		pollInterval:   cfg.Worker.PollInterval,
		emptyPollLimit: cfg.Worker.EmptyPollLimit,
	}
}

// Run executes the poll loop until the queue drains, the context is
// canceled, or the job store becomes untrustworthy. A fetch or record
// error is returned to the caller: continuing with unreliable
// bookkeeping risks mis-recorded or duplicated mints.
func (p *MintProcessor) Run(ctx context.Context) error {
	p.logger.InfoWithContextf(ctx, "[Mint Processor] Started: batch_size=%d concurrency=%d poll_interval=%s",
		p.batchSize, p.executor.Concurrency, p.pollInterval)

	emptyPolls := 0

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoWithContextf(ctx, "[Mint Processor] Shutdown requested")
			p.reportProgress(ctx)
			return nil
		default:
		}

		jobs, err := p.repo.FetchPending(ctx, p.batchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch pending jobs: %w", err)
		}

		if len(jobs) == 0 {
			emptyPolls++
			p.logger.InfoWithContextf(ctx, "[Mint Processor] No pending jobs (%d/%d empty polls)",
				emptyPolls, p.emptyPollLimit)
			if emptyPolls >= p.emptyPollLimit {
				p.logger.InfoWithContextf(ctx, "[Mint Processor] Queue drained, stopping")
				p.reportProgress(ctx)
				return nil
			}
		} else {
			emptyPolls = 0
			p.logger.InfoWithContextf(ctx, "[Mint Processor] Processing batch of %d jobs", len(jobs))

			outcomes := p.executor.Execute(ctx, jobs)
			for _, outcome := range outcomes {
				if err := p.recordOutcome(ctx, outcome); err != nil {
					return err
				}
			}
		}

		p.reportProgress(ctx)

		select {
		case <-ctx.Done():
			p.logger.InfoWithContextf(ctx, "[Mint Processor] Shutdown requested")
			return nil
		case <-time.After(p.pollInterval):
		}
	}
}

// recordOutcome applies one attempt's result to the job store. Recording
// uses a context that survives cancellation: an outcome for a finished
// submission is never dropped because shutdown started meanwhile.
func (p *MintProcessor) recordOutcome(ctx context.Context, outcome Outcome) error {
	recordCtx := context.WithoutCancel(ctx)
	job := outcome.Job
	p.processed++

	if outcome.Success {
		if err := p.repo.MarkCompleted(recordCtx, job, outcome.Digest); err != nil {
			return fmt.Errorf("failed to record completion of job %s: %w", job.MintID, err)
		}
		p.completed++
		p.metrics.RecordCompleted(recordCtx)
		p.logger.InfoWithContextf(recordCtx, "[Mint Processor] Job %s completed, digest %s", job.MintID, outcome.Digest)
		p.publishOutcome(recordCtx, job, entity.MintJobStatusCompleted, outcome)
		return nil
	}

	terminal, err := p.repo.RecordFailure(recordCtx, job, outcome.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to record failure of job %s: %w", job.MintID, err)
	}

	if terminal {
		p.failed++
		p.metrics.RecordFailed(recordCtx)
		p.logger.WarningWithContextf(recordCtx, "[Mint Processor] Job %s failed permanently after %d attempts: %s",
			job.MintID, job.RetryCount+1, outcome.ErrorMessage)
		p.publishOutcome(recordCtx, job, entity.MintJobStatusFailed, outcome)
		return nil
	}

	p.retried++
	p.metrics.RecordRetried(recordCtx)
	p.logger.InfoWithContextf(recordCtx, "[Mint Processor] Job %s requeued (attempt %d): %s",
		job.MintID, job.RetryCount+1, outcome.ErrorMessage)
	return nil
}

func (p *MintProcessor) publishOutcome(ctx context.Context, job entity.MintJob, status entity.MintJobStatus, outcome Outcome) {
	if p.publisher == nil {
		return
	}
	message := produce.MintOutcomeMessage{
		MintID:            job.MintID.String(),
		CardType:          job.CardType,
		Recipient:         job.Recipient,
		Status:            string(status),
		TransactionDigest: outcome.Digest,
		ErrorMessage:      outcome.ErrorMessage,
		RetryCount:        job.RetryCount,
	}
	if err := p.publisher.PublishMintOutcome(ctx, message); err != nil {
		p.logger.WarningWithContextf(ctx, "[Mint Processor] Failed to publish outcome for job %s: %v", job.MintID, err)
	}
}

func (p *MintProcessor) reportProgress(ctx context.Context) {
	counts, err := p.repo.CountByStatus(context.WithoutCancel(ctx))
	if err != nil {
		p.logger.WarningWithContextf(ctx, "[Mint Processor] Failed to read status breakdown: %v", err)
		return
	}
	p.logger.InfoWithContextf(ctx,
		"[Mint Processor] Progress: processed=%d completed=%d failed=%d retried=%d | store: pending=%d completed=%d failed=%d",
		p.processed, p.completed, p.failed, p.retried,
		counts.Pending, counts.Completed, counts.Failed)
}
