package incident

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

type RequesterInput struct {
	FullName string `json:"full_name" validate:"required,max=150"`
	Phone    string `json:"phone" validate:"required,phone"`
	Channel  string `json:"channel" validate:"required"`
}

type LocationInput struct {
	Description string   `json:"description" validate:"required"`
	Reference   string   `json:"reference"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	City        string   `json:"city" validate:"max=100"`
	District    string   `json:"district" validate:"max=100"`
	Zone        string   `json:"zone" validate:"max=100"`
}

// CreateInput is an incoming report.
type CreateInput struct {
	Requester       RequesterInput `json:"requester" validate:"required"`
	Location        LocationInput  `json:"location" validate:"required"`
	Description     string         `json:"description" validate:"required"`
	ReportedType    string         `json:"reported_type" validate:"max=100"`
	InitialPriority int            `json:"initial_priority" validate:"omitempty,min=1,max=5"`
	Observations    string         `json:"observations"`
}

// UpdateInput carries the operator-editable fields. Nil leaves a field as is.
type UpdateInput struct {
	Description  *string `json:"description" validate:"omitempty,min=1"`
	ReportedType *string `json:"reported_type" validate:"omitempty,max=100"`
	Observations *string `json:"observations"`
}

// PageResult is one page of a listing.
type PageResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func newPageResult[T any](items []T, total int64, page repository.Page) *PageResult[T] {
	p := page.Normalize()
	if items == nil {
		items = []T{}
	}
	return &PageResult[T]{Items: items, Total: total, Page: p.Number, Size: p.Size}
}

const createAttempts = 2

// CreateIncident registers a report in status RECEIVED. The requester is
// matched by phone number and created when unknown; a concurrent insert of
// the same phone is retried as a lookup. Text analysis is dispatched after
// the transaction commits.
func (s *Service) CreateIncident(ctx context.Context, in CreateInput) (*models.Incident, error) {
	const op = "create incident"
	if err := s.checkInput(op, in); err != nil {
		return nil, err
	}
	channel, err := models.ParseChannel(in.Requester.Channel)
	if err != nil {
		return nil, apperror.InvalidRequest(op, "%v", err)
	}
	in.Requester.Channel = string(channel)

	var created *models.Incident
	for attempt := 1; attempt <= createAttempts; attempt++ {
		created, err = s.createOnce(ctx, in)
		if err == nil || apperror.KindOf(err) != apperror.KindConflict {
			break
		}
		log.Warnf("[Incident] Requester %s was registered concurrently, retrying lookup", in.Requester.Phone)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[Incident] Created incident %s for requester %s", created.ID, created.RequesterID)
	return created, nil
}

func (s *Service) createOnce(ctx context.Context, in CreateInput) (*models.Incident, error) {
	var inc *models.Incident
	err := s.inTx(ctx, func(uow *unitOfWork) error {
		requester, err := findOrCreateRequester(ctx, uow.repos, in.Requester)
		if err != nil {
			return err
		}

		loc := models.NewLocation(in.Location.Description, in.Location.Latitude, in.Location.Longitude,
			in.Location.City, in.Location.District, in.Location.Zone)
		loc.Reference = in.Location.Reference
		if err := uow.repos.Location.Create(ctx, loc); err != nil {
			return apperror.StorageFailure("save location", err)
		}

		inc = models.NewIncident(requester.ID, loc.ID, strings.TrimSpace(in.Description), in.ReportedType, in.InitialPriority)
		inc.Observations = in.Observations
		if err := uow.repos.Incident.Create(ctx, inc); err != nil {
			return apperror.StorageFailure("save incident", err)
		}
		inc.Requester = requester
		inc.Location = loc

		uow.raise(Event{Type: EventIncidentCreated, IncidentID: inc.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inc, nil
}

func findOrCreateRequester(ctx context.Context, repos *repository.Repositories, in RequesterInput) (*models.Requester, error) {
	existing, err := repos.Requester.GetByPhone(ctx, in.Phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.StorageFailure("find requester", err)
	}

	requester := models.NewRequester(in.FullName, in.Phone, models.Channel(in.Channel))
	if err := repos.Requester.Create(ctx, requester); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("create requester", "requester with phone %s already exists", in.Phone)
		}
		return nil, apperror.StorageFailure("create requester", err)
	}
	return requester, nil
}

// GetIncident returns the incident row without relations.
func (s *Service) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := s.repos.Incident.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get incident", "incident", id, err)
	}
	return inc, nil
}

// GetIncidentDetail returns the incident with requester, location,
// analyses, multimedia and history.
func (s *Service) GetIncidentDetail(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := s.repos.Incident.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError("get incident detail", "incident", id, err)
	}
	return inc, nil
}

func (s *Service) ListIncidents(ctx context.Context, filter repository.IncidentFilter, page repository.Page) (*PageResult[models.Incident], error) {
	const op = "list incidents"
	if filter.MinPriority != nil && (*filter.MinPriority < 1 || *filter.MinPriority > 5) {
		return nil, apperror.InvalidRequest(op, "priority must be between 1 and 5")
	}
	if filter.MaxPriority != nil && (*filter.MaxPriority < 1 || *filter.MaxPriority > 5) {
		return nil, apperror.InvalidRequest(op, "priority must be between 1 and 5")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperror.InvalidRequest(op, "start date must be before end date")
	}
	items, total, err := s.repos.Incident.List(ctx, filter, page)
	if err != nil {
		return nil, apperror.StorageFailure(op, err)
	}
	return newPageResult(items, total, page), nil
}

// ListForDispatch returns plausible incidents ordered by final priority.
func (s *Service) ListForDispatch(ctx context.Context, page repository.Page) (*PageResult[models.Incident], error) {
	items, total, err := s.repos.Incident.ListForDispatch(ctx, page)
	if err != nil {
		return nil, apperror.StorageFailure("list for dispatch", err)
	}
	return newPageResult(items, total, page), nil
}

// ListPendingAnalysis returns incidents still waiting for a final priority.
func (s *Service) ListPendingAnalysis(ctx context.Context, page repository.Page) (*PageResult[models.Incident], error) {
	items, total, err := s.repos.Incident.ListPendingAnalysis(ctx, page)
	if err != nil {
		return nil, apperror.StorageFailure("list pending analysis", err)
	}
	return newPageResult(items, total, page), nil
}

func (s *Service) ListHighPriority(ctx context.Context, page repository.Page) (*PageResult[models.Incident], error) {
	items, total, err := s.repos.Incident.ListHighPriority(ctx, page)
	if err != nil {
		return nil, apperror.StorageFailure("list high priority", err)
	}
	return newPageResult(items, total, page), nil
}

// CountByStatus returns how many incidents sit in each status.
func (s *Service) CountByStatus(ctx context.Context) (map[models.IncidentStatus]int64, error) {
	counts, err := s.repos.Incident.CountByStatus(ctx)
	if err != nil {
		return nil, apperror.StorageFailure("count by status", err)
	}
	for _, st := range models.AllStatuses() {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// CountReportedSince returns how many incidents were reported at or after since.
func (s *Service) CountReportedSince(ctx context.Context, since time.Time) (int64, error) {
	_, total, err := s.repos.Incident.List(ctx, repository.IncidentFilter{From: &since}, repository.Page{Number: 1, Size: 1})
	if err != nil {
		return 0, apperror.StorageFailure("count reported since", err)
	}
	return total, nil
}

// UpdateIncident edits description, reported type and observations.
// Status and priorities are never touched here.
func (s *Service) UpdateIncident(ctx context.Context, id string, in UpdateInput) (*models.Incident, error) {
	const op = "update incident"
	if err := s.checkInput(op, in); err != nil {
		return nil, err
	}

	var out *models.Incident
	err := s.withIncidentLock(ctx, id, func(uow *unitOfWork, inc *models.Incident) error {
		if in.Description != nil {
			inc.Description = strings.TrimSpace(*in.Description)
		}
		if in.ReportedType != nil {
			inc.ReportedType = *in.ReportedType
		}
		if in.Observations != nil {
			inc.Observations = *in.Observations
		}
		if err := uow.repos.Incident.Update(ctx, inc); err != nil {
			return apperror.StorageFailure(op, err)
		}
		out = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Incident] Updated incident %s", id)
	return out, nil
}

// DeleteIncident removes the incident and everything that hangs off it.
// Requester and location rows go too once nothing else references them.
// Stored files are removed after the transaction commits.
func (s *Service) DeleteIncident(ctx context.Context, id string) error {
	const op = "delete incident"
	err := s.withIncidentLock(ctx, id, func(uow *unitOfWork, inc *models.Incident) error {
		if inc.Status == models.StatusApproved {
			return apperror.InvalidRequest(op, "approved incidents cannot be deleted; cancel or force-reject first")
		}
		repos := uow.repos

		items, err := repos.Multimedia.GetByIncident(ctx, inc.ID)
		if err != nil {
			return apperror.StorageFailure(op, err)
		}
		for _, item := range items {
			if err := repos.ImageAnalysis.DeleteByMultimedia(ctx, item.ID); err != nil {
				return apperror.StorageFailure(op, err)
			}
			if err := repos.Multimedia.Delete(ctx, item.ID); err != nil {
				return apperror.StorageFailure(op, err)
			}
			uow.removeAfterCommit(item.StoragePath, item.ThumbnailPath)
		}

		if err := repos.StateHistory.DeleteByIncident(ctx, inc.ID); err != nil {
			return apperror.StorageFailure(op, err)
		}
		if err := repos.Incident.Delete(ctx, inc.ID); err != nil {
			return apperror.StorageFailure(op, err)
		}
		if inc.TextAnalysisID != nil {
			if err := repos.TextAnalysis.Delete(ctx, *inc.TextAnalysisID); err != nil {
				return apperror.StorageFailure(op, err)
			}
		}

		if n, err := repos.Incident.CountByRequester(ctx, inc.RequesterID); err != nil {
			return apperror.StorageFailure(op, err)
		} else if n == 0 {
			if err := repos.Requester.Delete(ctx, inc.RequesterID); err != nil {
				return apperror.StorageFailure(op, err)
			}
		}
		if n, err := repos.Incident.CountByLocation(ctx, inc.LocationID); err != nil {
			return apperror.StorageFailure(op, err)
		} else if n == 0 {
			if err := repos.Location.Delete(ctx, inc.LocationID); err != nil {
				return apperror.StorageFailure(op, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Infof("[Incident] Deleted incident %s", id)
	return nil
}

// GetRequester returns a requester by id.
func (s *Service) GetRequester(ctx context.Context, id string) (*models.Requester, error) {
	r, err := s.repos.Requester.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get requester", "requester", id, err)
	}
	return r, nil
}

func (s *Service) GetRequesterByPhone(ctx context.Context, phone string) (*models.Requester, error) {
	r, err := s.repos.Requester.GetByPhone(ctx, phone)
	if err != nil {
		return nil, lookupError("get requester", "requester with phone", phone, err)
	}
	return r, nil
}

func (s *Service) ListRequesters(ctx context.Context, page repository.Page) (*PageResult[models.Requester], error) {
	items, total, err := s.repos.Requester.List(ctx, page)
	if err != nil {
		return nil, apperror.StorageFailure("list requesters", err)
	}
	return newPageResult(items, total, page), nil
}

// GetLocation returns a location by id.
func (s *Service) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	l, err := s.repos.Location.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get location", "location", id, err)
	}
	return l, nil
}

// ListHistory returns the transitions of an incident, newest first.
func (s *Service) ListHistory(ctx context.Context, incidentID string) ([]models.StateHistory, error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	entries, err := s.repos.StateHistory.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, apperror.StorageFailure("list history", err)
	}
	return entries, nil
}

func (s *Service) CountHistory(ctx context.Context, incidentID string) (int64, error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return 0, err
	}
	n, err := s.repos.StateHistory.CountByIncident(ctx, incidentID)
	if err != nil {
		return 0, apperror.StorageFailure("count history", err)
	}
	return n, nil
}

func (s *Service) ListHistoryByActor(ctx context.Context, actor string) ([]models.StateHistory, error) {
	entries, err := s.repos.StateHistory.ListByActor(ctx, actor)
	if err != nil {
		return nil, apperror.StorageFailure("list history by actor", err)
	}
	return entries, nil
}

func (s *Service) ListHistoryBetween(ctx context.Context, from, to time.Time) ([]models.StateHistory, error) {
	if from.After(to) {
		return nil, apperror.InvalidRequest("list history", "start date must be before end date")
	}
	entries, err := s.repos.StateHistory.ListBetween(ctx, from, to)
	if err != nil {
		return nil, apperror.StorageFailure("list history between", err)
	}
	return entries, nil
}

// LatestHistory returns the most recent transition of an incident.
func (s *Service) LatestHistory(ctx context.Context, incidentID string) (*models.StateHistory, error) {
	entry, err := s.repos.StateHistory.Latest(ctx, incidentID)
	if err != nil {
		return nil, lookupError("latest history", "history for incident", incidentID, err)
	}
	return entry, nil
}
