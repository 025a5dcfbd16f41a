package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosdesk/intake/internal/pkg/incident"
)

func offlineQueue(opts Options) *Queue {
	// Nothing listens on this address; enqueues fail.
	return NewQueue(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), opts)
}

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, DefaultWorkers},
		{"Negative workers", -1, DefaultWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := offlineQueue(Options{Workers: tt.workers})

			assert.Equal(t, tt.expectedWorkers, queue.opts.Workers)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.Equal(t, DefaultStuckAfter, queue.opts.StuckAfter)
			assert.Equal(t, DefaultMaxRetries, queue.opts.MaxRetries)
			assert.False(t, queue.IsRunning())
		})
	}
}

func TestQueueRun(t *testing.T) {
	queue := offlineQueue(Options{JobTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	err := queue.run(ctx, &Job{ID: "1", Type: "unknown"})
	assert.ErrorContains(t, err, "unknown job type")

	queue.Register(JobTypeTextAnalysis, func(ctx context.Context, job *Job) error {
		panic("boom")
	})
	err = queue.run(ctx, &Job{ID: "2", Type: JobTypeTextAnalysis})
	assert.ErrorContains(t, err, "panicked")

	queue.Register(JobTypeTextAnalysis, func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err = queue.run(ctx, &Job{ID: "3", Type: JobTypeTextAnalysis})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestJobTypeFor(t *testing.T) {
	jt, err := jobTypeFor(incident.EventIncidentCreated)
	require.NoError(t, err)
	assert.Equal(t, JobTypeTextAnalysis, jt)

	jt, err = jobTypeFor(incident.EventMultimediaCreated)
	require.NoError(t, err)
	assert.Equal(t, JobTypeImageAnalysis, jt)

	_, err = jobTypeFor("incident_deleted")
	assert.Error(t, err)
}

type recordingHandler struct {
	events chan incident.Event
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev incident.Event) error {
	h.events <- ev
	return h.err
}

func TestRegisterAnalysisHandlersDecodesPayload(t *testing.T) {
	queue := offlineQueue(Options{})
	h := &recordingHandler{events: make(chan incident.Event, 1)}
	RegisterAnalysisHandlers(queue, h)

	payload := AnalysisJobPayload{EventType: string(incident.EventMultimediaCreated), IncidentID: "inc-1", MultimediaID: "m-1"}
	require.NoError(t, queue.run(context.Background(), &Job{ID: "j", Type: JobTypeImageAnalysis, Payload: payload.ToMap()}))

	ev := <-h.events
	assert.Equal(t, incident.EventMultimediaCreated, ev.Type)
	assert.Equal(t, "inc-1", ev.IncidentID)
	assert.Equal(t, "m-1", ev.MultimediaID)
}

type eventRecorder struct {
	events []incident.Event
}

func (r *eventRecorder) Dispatch(ctx context.Context, ev incident.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestDispatcherFallsBackWhenEnqueueFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev := incident.Event{Type: incident.EventIncidentCreated, IncidentID: "inc-7", OccurredAt: time.Now()}

	d := NewDispatcher(offlineQueue(Options{}))
	assert.Error(t, d.Dispatch(ctx, ev))

	fallback := &eventRecorder{}
	d.SetFallback(fallback)
	require.NoError(t, d.Dispatch(ctx, ev))
	require.Len(t, fallback.events, 1)
	assert.Equal(t, "inc-7", fallback.events[0].IncidentID)

	// Unknown events are refused before Redis is involved.
	assert.Error(t, d.Dispatch(ctx, incident.Event{Type: "incident_deleted"}))
	assert.Len(t, fallback.events, 1)
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "intake:job:", JobKeyPrefix)
	assert.Equal(t, "intake:job_queue", JobQueueKey)
	assert.Equal(t, 0, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}
