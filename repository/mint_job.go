package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cardforge/mint-worker/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrJobNotRequeueable is returned when a requeue targets a job that is
// not in the failed state.
var ErrJobNotRequeueable = errors.New("job is not in a requeueable state")

// MintJobRepository is the only reader and writer of mint job lifecycle
// fields. All lifecycle updates are single-row and guarded on
// status = pending, so terminal rows are never mutated.
type MintJobRepository struct {
	db         *gorm.DB
	retryDelay time.Duration
	maxRetries int
}

func NewMintJobRepository(db *gorm.DB, retryDelay time.Duration, maxRetries int) *MintJobRepository {
	return &MintJobRepository{
		db:         db,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
	}
}

type StatusCounts struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// FetchPending returns at most limit eligible pending jobs, fresh jobs
// before already-retried ones, FIFO within the same retry count. A job
// that has failed before is eligible again only after retryDelay has
// elapsed since its last attempt.
func (r *MintJobRepository) FetchPending(ctx context.Context, limit int) ([]entity.MintJob, error) {
	var jobs []entity.MintJob
	q := r.db.WithContext(ctx).Where("status = ?", entity.MintJobStatusPending)
	if r.retryDelay > 0 {
		cutoff := time.Now().UTC().Add(-r.retryDelay)
		q = q.Where("retry_count = 0 OR updated_at <= ?", cutoff)
	}
	err := q.Order("retry_count ASC, created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkCompleted records a definitive mint success. A job that is no
// longer pending is left untouched.
func (r *MintJobRepository) MarkCompleted(ctx context.Context, job entity.MintJob, digest string) error {
	if job.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&entity.MintJob{}).
		Where("id = ? AND status = ?", job.ID, entity.MintJobStatusPending).
		Updates(map[string]interface{}{
			"status":             entity.MintJobStatusCompleted,
			"transaction_digest": digest,
			"completed_at":       now,
			"updated_at":         now,
		}).Error
}

// RecordFailure increments the retry counter and either requeues the job
// or, once the counter reaches the retry budget, marks it terminally
// failed. Returns whether the failure was terminal.
func (r *MintJobRepository) RecordFailure(ctx context.Context, job entity.MintJob, errorMessage string) (bool, error) {
	if job.Terminal() {
		return job.Status == entity.MintJobStatusFailed, nil
	}
	now := time.Now().UTC()
	newRetryCount := job.RetryCount + 1
	terminal := newRetryCount >= r.maxRetries

	updates := map[string]interface{}{
		"retry_count":   newRetryCount,
		"error_message": errorMessage,
		"updated_at":    now,
	}
	if terminal {
		updates["status"] = entity.MintJobStatusFailed
	}

	err := r.db.WithContext(ctx).Model(&entity.MintJob{}).
		Where("id = ? AND status = ?", job.ID, entity.MintJobStatusPending).
		Updates(updates).Error
	if err != nil {
		return false, err
	}
	return terminal, nil
}

func (r *MintJobRepository) Create(job *entity.MintJob) error {
	if job.MintID == uuid.Nil {
		job.MintID = uuid.New()
	}
	job.Status = entity.MintJobStatusPending
	job.RetryCount = 0
	return r.db.Create(job).Error
}

func (r *MintJobRepository) FindByMintID(mintID uuid.UUID) (*entity.MintJob, error) {
	var job entity.MintJob
	err := r.db.Where("mint_id = ?", mintID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *MintJobRepository) FindByStatus(status entity.MintJobStatus, limit int) ([]entity.MintJob, error) {
	var jobs []entity.MintJob
	err := r.db.Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// RequeueFailed resurrects a terminally failed job with a fresh retry
// budget. This is the operator-facing intervention path; the processor
// itself never leaves the failed state.
func (r *MintJobRepository) RequeueFailed(ctx context.Context, mintID uuid.UUID) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&entity.MintJob{}).
		Where("mint_id = ? AND status = ?", mintID, entity.MintJobStatusFailed).
		Updates(map[string]interface{}{
			"status":        entity.MintJobStatusPending,
			"retry_count":   0,
			"error_message": nil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotRequeueable
	}
	return nil
}

// CountByStatus is a fresh read of the job table breakdown, used by the
// progress reporter instead of a running tally so a crash cannot make
// the report drift from the store.
func (r *MintJobRepository) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&entity.MintJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return StatusCounts{}, err
	}

	var counts StatusCounts
	for _, row := range rows {
		switch entity.MintJobStatus(row.Status) {
		case entity.MintJobStatusPending:
			counts.Pending = row.Count
		case entity.MintJobStatusCompleted:
			counts.Completed = row.Count
		case entity.MintJobStatusFailed:
			counts.Failed = row.Count
		}
	}
	return counts, nil
}
