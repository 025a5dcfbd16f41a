package incident

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
)

type EventType string

const (
	EventIncidentCreated   EventType = "incident_created"
	EventMultimediaCreated EventType = "multimedia_created"
)

// Event is raised once the transaction that created an entity commits.
type Event struct {
	Type         EventType `json:"type"`
	IncidentID   string    `json:"incident_id"`
	MultimediaID string    `json:"multimedia_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Dispatcher hands committed events to the analysis handlers. Dispatch
// must not run the handler on the caller's goroutine.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Handler runs the analysis an event asks for.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// StatusChange describes one committed transition.
type StatusChange struct {
	IncidentID    string                `json:"incident_id"`
	From          models.IncidentStatus `json:"from"`
	To            models.IncidentStatus `json:"to"`
	Actor         string                `json:"actor"`
	Reason        string                `json:"reason,omitempty"`
	FinalPriority *int                  `json:"final_priority,omitempty"`
	ChangedAt     time.Time             `json:"changed_at"`
}

// StatusPublisher forwards committed transitions to outside consumers.
type StatusPublisher interface {
	PublishStatusChange(ctx context.Context, change StatusChange) error
}

// AsyncDispatcher runs handlers on background goroutines, at most
// Workers at a time. Handlers get a context detached from the request.
type AsyncDispatcher struct {
	handler Handler
	sem     chan struct{}
	wg      sync.WaitGroup
	timeout time.Duration
}

const DefaultAsyncWorkers = 4

// NewAsyncDispatcher creates a dispatcher bounded to workers concurrent
// handlers. timeout caps each handler run; zero means no limit.
func NewAsyncDispatcher(handler Handler, workers int, timeout time.Duration) *AsyncDispatcher {
	if workers <= 0 {
		workers = DefaultAsyncWorkers
	}
	return &AsyncDispatcher{
		handler: handler,
		sem:     make(chan struct{}, workers),
		timeout: timeout,
	}
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, ev Event) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := d.handler.HandleEvent(ctx, ev); err != nil {
			log.Errorf("[Dispatcher] %s for incident %s failed: %v", ev.Type, ev.IncidentID, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched handler has returned.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// unitOfWork collects what a transaction wants to announce after commit.
type unitOfWork struct {
	repos   *repository.Repositories
	events  []Event
	changes []StatusChange
	files   []string
}

func (u *unitOfWork) raise(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	u.events = append(u.events, ev)
}

// removeAfterCommit schedules a stored file for deletion once the
// rows referencing it are gone.
func (u *unitOfWork) removeAfterCommit(paths ...string) {
	for _, p := range paths {
		if p != "" {
			u.files = append(u.files, p)
		}
	}
}
