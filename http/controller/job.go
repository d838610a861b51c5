package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cardforge/mint-worker/entity"
	"github.com/cardforge/mint-worker/infra"
	"github.com/cardforge/mint-worker/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	jobStatsCacheKey = "mint-worker:job-stats"
	jobStatsCacheTTL = 10 * time.Second
)

type CreateMintJobRequest struct {
	CardType  string `json:"card_type" binding:"required"`
	Level     int    `json:"level" binding:"required,min=1"`
	Title     string `json:"title" binding:"required"`
	Recipient string `json:"recipient" binding:"required"`
	Rarity    string `json:"rarity" binding:"required"`
	Rank      int    `json:"rank" binding:"min=0"`
}

func (ctrl *Controller) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// cache returns the Redis client, or nil when the controller runs
// without one.
func (ctrl *Controller) cache() *infra.RedisClient {
	if ctrl.Infra == nil {
		return nil
	}
	return ctrl.Infra.Redis
}

// GetJobStats returns the status breakdown of the job table. Counts
// are served from Redis for up to jobStatsCacheTTL; enqueue and
// requeue invalidate the entry.
func (ctrl *Controller) GetJobStats(c *gin.Context) {
	ctx := c.Request.Context()

	if cache := ctrl.cache(); cache != nil {
		var cached repository.StatusCounts
		if err := cache.Get(ctx, jobStatsCacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	counts, err := ctrl.Repository.MintJobRepo.CountByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read job stats"})
		return
	}

	if cache := ctrl.cache(); cache != nil {
		// A failed write only costs the next request a recount.
		_ = cache.Set(ctx, jobStatsCacheKey, counts, jobStatsCacheTTL)
	}
	c.JSON(http.StatusOK, counts)
}

func (ctrl *Controller) ListJobs(c *gin.Context) {
	status := entity.MintJobStatus(c.DefaultQuery("status", string(entity.MintJobStatusPending)))
	switch status {
	case entity.MintJobStatusPending, entity.MintJobStatusCompleted, entity.MintJobStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	jobs, err := ctrl.Repository.MintJobRepo.FindByStatus(status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// EnqueueJob creates a pending mint job. The processor picks it up on
// its next poll.
func (ctrl *Controller) EnqueueJob(c *gin.Context) {
	var req CreateMintJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &entity.MintJob{
		MintID:    uuid.New(),
		CardType:  req.CardType,
		Level:     req.Level,
		Title:     req.Title,
		Recipient: req.Recipient,
		Rarity:    req.Rarity,
		Rank:      req.Rank,
	}

	if err := ctrl.Repository.MintJobRepo.Create(job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}
	if cache := ctrl.cache(); cache != nil {
		_ = cache.Delete(c.Request.Context(), jobStatsCacheKey)
	}
	c.JSON(http.StatusCreated, job)
}

// RequeueJob resurrects a terminally failed job with a fresh retry
// budget.
func (ctrl *Controller) RequeueJob(c *gin.Context) {
	mintID, err := uuid.Parse(c.Param("mint_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mint_id"})
		return
	}

	err = ctrl.Repository.MintJobRepo.RequeueFailed(c.Request.Context(), mintID)
	if errors.Is(err, repository.ErrJobNotRequeueable) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no failed job with that mint_id"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to requeue job"})
		return
	}
	if cache := ctrl.cache(); cache != nil {
		_ = cache.Delete(c.Request.Context(), jobStatsCacheKey)
	}
	c.JSON(http.StatusOK, gin.H{"mint_id": mintID, "status": entity.MintJobStatusPending})
}
