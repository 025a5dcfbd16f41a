package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sosdesk/intake/internal/pkg/apperror"
	"github.com/sosdesk/intake/internal/pkg/jobqueue"
)

// JobInspector reads analysis queue state.
type JobInspector interface {
	GetJob(ctx context.Context, jobID string) (*jobqueue.Job, error)
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// QueueController exposes the analysis job queue for operators.
type QueueController struct {
	queue JobInspector
}

func NewQueueController(queue JobInspector) *QueueController {
	return &QueueController{queue: queue}
}

// HandleStats returns pending and processing depth plus per-status totals.
func (qc *QueueController) HandleStats(c *fiber.Ctx) error {
	const op = "queue stats"
	ctx := c.UserContext()

	pending, err := qc.queue.GetQueueSize(ctx)
	if err != nil {
		return respondError(c, apperror.StorageFailure(op, err))
	}
	processing, err := qc.queue.GetProcessingSize(ctx)
	if err != nil {
		return respondError(c, apperror.StorageFailure(op, err))
	}
	stats, err := qc.queue.GetJobStats(ctx)
	if err != nil {
		return respondError(c, apperror.StorageFailure(op, err))
	}

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"totals":     stats,
	})
}

// HandleGetJob returns a queued, running or failed job. Completed jobs are
// removed from Redis and answer 404.
func (qc *QueueController) HandleGetJob(c *fiber.Ctx) error {
	const op = "get job"
	id := c.Params("id")
	job, err := qc.queue.GetJob(c.UserContext(), id)
	if errors.Is(err, redis.Nil) {
		return respondError(c, apperror.NotFound(op, "job %s not found", id))
	}
	if err != nil {
		return respondError(c, apperror.StorageFailure(op, err))
	}
	return c.JSON(job)
}
