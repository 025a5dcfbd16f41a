package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/internal/pkg/incident"
)

// Dispatcher turns committed incident events into Redis jobs so analysis
// survives a restart of the API process.
type Dispatcher struct {
	queue    *Queue
	fallback incident.Dispatcher
}

func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

// SetFallback installs the dispatcher used when Redis rejects an enqueue.
// Call it before the first Dispatch.
func (d *Dispatcher) SetFallback(fallback incident.Dispatcher) {
	d.fallback = fallback
}

func jobTypeFor(ev incident.EventType) (JobType, error) {
	switch ev {
	case incident.EventIncidentCreated:
		return JobTypeTextAnalysis, nil
	case incident.EventMultimediaCreated:
		return JobTypeImageAnalysis, nil
	default:
		return "", fmt.Errorf("no job type for event %q", ev)
	}
}

// Dispatch enqueues the event; the handler runs on a queue worker.
func (d *Dispatcher) Dispatch(ctx context.Context, ev incident.Event) error {
	jobType, err := jobTypeFor(ev.Type)
	if err != nil {
		return err
	}
	payload := AnalysisJobPayload{
		EventType:    string(ev.Type),
		IncidentID:   ev.IncidentID,
		MultimediaID: ev.MultimediaID,
		OccurredAt:   ev.OccurredAt,
	}
	_, err = d.queue.EnqueueJob(ctx, jobType, payload.ToMap())
	if err != nil && d.fallback != nil {
		log.Warnf("[JobQueue] Enqueue of %s for incident %s failed, running in-process: %v", ev.Type, ev.IncidentID, err)
		return d.fallback.Dispatch(ctx, ev)
	}
	return err
}

// RegisterAnalysisHandlers routes analysis jobs to h.
func RegisterAnalysisHandlers(q *Queue, h incident.Handler) {
	run := func(ctx context.Context, job *Job) error {
		payload, err := AnalysisJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode payload of job %s: %w", job.ID, err)
		}
		return h.HandleEvent(ctx, incident.Event{
			Type:         incident.EventType(payload.EventType),
			IncidentID:   payload.IncidentID,
			MultimediaID: payload.MultimediaID,
			OccurredAt:   payload.OccurredAt,
		})
	}
	q.Register(JobTypeTextAnalysis, run)
	q.Register(JobTypeImageAnalysis, run)
}
