// Package incident owns the incident lifecycle: intake, status changes,
// post-commit analysis and priority fusion.
package incident

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/apperror"
	"github.com/sosdesk/intake/internal/pkg/mlclient"
	"github.com/sosdesk/intake/internal/pkg/storage"
)

// TextAnalyzer is the text classification gateway.
type TextAnalyzer interface {
	Analyze(ctx context.Context, req mlclient.TextRequest) (*mlclient.TextResult, error)
	IsHealthy(ctx context.Context) bool
}

// ImageAnalyzer is the image veracity and severity gateway.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, req mlclient.ImageRequest) (*mlclient.ImageResult, error)
	IsHealthy(ctx context.Context) bool
}

// Thumbnailer renders a preview for a stored image and returns its path.
type Thumbnailer interface {
	Generate(ctx context.Context, src string) (string, error)
}

// Service is the incident orchestrator.
type Service struct {
	repos      *repository.Repositories
	text       TextAnalyzer
	image      ImageAnalyzer
	files      storage.FileStore
	thumbs     Thumbnailer
	dispatcher Dispatcher
	publisher  StatusPublisher
	locks      *keyedMutex
	validate   *validator.Validate
	cfg        Config
}

type Option func(*Service)

// WithDispatcher replaces the in-process dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithStatusPublisher(p StatusPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithFileStore(fs storage.FileStore) Option {
	return func(s *Service) { s.files = fs }
}

func WithThumbnailer(t Thumbnailer) Option {
	return func(s *Service) { s.thumbs = t }
}

// NewService wires the orchestrator. Without WithDispatcher events run on
// an AsyncDispatcher owned by the service.
func NewService(repos *repository.Repositories, text TextAnalyzer, image ImageAnalyzer, cfg Config, opts ...Option) *Service {
	if cfg.PlausibilityThreshold <= 0 {
		cfg.PlausibilityThreshold = DefaultPlausibilityThreshold
	}
	s := &Service{
		repos:    repos,
		text:     text,
		image:    image,
		locks:    newKeyedMutex(),
		validate: newValidator(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = NewAsyncDispatcher(s, cfg.AsyncWorkers, cfg.AnalysisTimeout)
	}
	return s
}

// Dispatcher returns the dispatcher events are handed to.
func (s *Service) Dispatcher() Dispatcher {
	return s.dispatcher
}

func (s *Service) Config() Config {
	return s.cfg
}

// inTx runs fn in one transaction and, after commit, hands the collected
// events and status changes to the dispatcher and publisher.
func (s *Service) inTx(ctx context.Context, fn func(uow *unitOfWork) error) error {
	uow := &unitOfWork{}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		uow.repos = tx
		return fn(uow)
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, uow)
	return nil
}

// withIncidentLock serializes fn with every other mutation of the same
// incident. The row is re-read inside the transaction with a row lock.
func (s *Service) withIncidentLock(ctx context.Context, incidentID string, fn func(uow *unitOfWork, inc *models.Incident) error) error {
	unlock := s.locks.Lock(incidentID)
	defer unlock()

	return s.inTx(ctx, func(uow *unitOfWork) error {
		inc, err := uow.repos.Incident.GetForUpdate(ctx, incidentID)
		if err != nil {
			return lookupError("load incident", "incident", incidentID, err)
		}
		return fn(uow, inc)
	})
}

func (s *Service) afterCommit(ctx context.Context, uow *unitOfWork) {
	for _, path := range uow.files {
		if s.files == nil {
			break
		}
		if err := s.files.Delete(ctx, path); err != nil {
			log.Warnf("[Incident] Failed to remove stored file %s: %v", path, err)
		}
	}
	for _, ev := range uow.events {
		if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
			log.Errorf("[Incident] Failed to dispatch %s for incident %s: %v", ev.Type, ev.IncidentID, err)
		}
	}
	if s.publisher == nil {
		return
	}
	for _, change := range uow.changes {
		if err := s.publisher.PublishStatusChange(ctx, change); err != nil {
			log.Warnf("[Incident] Failed to publish status change %s -> %s for incident %s: %v",
				change.From, change.To, change.IncidentID, err)
		}
	}
}

// transition moves inc to the target status, saves it and appends the
// history row in the current transaction.
func (s *Service) transition(ctx context.Context, uow *unitOfWork, inc *models.Incident, to models.IncidentStatus, actor, reason string, metadata map[string]interface{}, mode transitionMode) error {
	if err := checkTransition(inc, to, mode); err != nil {
		return err
	}
	if actor == "" {
		actor = models.SystemActor
	}

	from := inc.Status
	entry := models.NewStateHistory(inc.ID, from, to, actor, reason, metadata)
	inc.Status = to
	switch to {
	case models.StatusAnalyzed:
		at := entry.ChangedAt
		inc.AnalysisCompletedAt = &at
	case models.StatusRejected, models.StatusCanceled:
		inc.RejectionReason = reason
	}

	if err := uow.repos.Incident.Update(ctx, inc); err != nil {
		return apperror.StorageFailure("save incident", err)
	}
	if err := uow.repos.StateHistory.Create(ctx, entry); err != nil {
		return apperror.StorageFailure("record status change", err)
	}

	uow.changes = append(uow.changes, StatusChange{
		IncidentID:    inc.ID,
		From:          from,
		To:            to,
		Actor:         actor,
		Reason:        reason,
		FinalPriority: inc.FinalPriority,
		ChangedAt:     entry.ChangedAt,
	})
	return nil
}

// lookupError maps a repository read failure to NotFound or StorageFailure.
func lookupError(op, what, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(op, "%s %s not found", what, id)
	}
	return apperror.StorageFailure(op, err)
}
