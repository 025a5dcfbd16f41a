package incident

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

// RequesterUpdate edits a requester. Nil leaves a field as is.
type RequesterUpdate struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=150"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Channel  *string `json:"channel"`
}

// LocationUpdate edits a location. Nil leaves a field as is.
type LocationUpdate struct {
	Description *string  `json:"description" validate:"omitempty,min=1"`
	Reference   *string  `json:"reference"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	City        *string  `json:"city" validate:"omitempty,max=100"`
	District    *string  `json:"district" validate:"omitempty,max=100"`
	Zone        *string  `json:"zone" validate:"omitempty,max=100"`
}

// UpdateRequester edits name, phone or channel. A phone already used by
// another requester is a Conflict.
func (s *Service) UpdateRequester(ctx context.Context, id string, in RequesterUpdate) (*models.Requester, error) {
	const op = "update requester"
	if err := s.checkInput(op, in); err != nil {
		return nil, err
	}
	r, err := s.GetRequester(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		r.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Phone != nil {
		r.Phone = *in.Phone
	}
	if in.Channel != nil {
		channel, err := models.ParseChannel(*in.Channel)
		if err != nil {
			return nil, apperror.InvalidRequest(op, "%v", err)
		}
		r.Channel = channel
	}
	if err := s.repos.Requester.Update(ctx, r); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict(op, "requester with phone %s already exists", r.Phone)
		}
		return nil, apperror.StorageFailure(op, err)
	}
	log.Infof("[Requester] Updated requester %s", id)
	return r, nil
}

func (s *Service) ListRequestersByChannel(ctx context.Context, channel string, page repository.Page) (*PageResult[models.Requester], error) {
	const op = "list requesters by channel"
	ch, err := models.ParseChannel(channel)
	if err != nil {
		return nil, apperror.InvalidRequest(op, "%v", err)
	}
	items, total, err := s.repos.Requester.ListByChannel(ctx, ch, page)
	if err != nil {
		return nil, apperror.StorageFailure(op, err)
	}
	return newPageResult(items, total, page), nil
}

// CountActiveIncidents counts the requester's incidents that are neither
// rejected nor canceled.
func (s *Service) CountActiveIncidents(ctx context.Context, requesterID string) (int64, error) {
	if _, err := s.GetRequester(ctx, requesterID); err != nil {
		return 0, err
	}
	n, err := s.repos.Incident.CountActiveByRequester(ctx, requesterID)
	if err != nil {
		return 0, apperror.StorageFailure("count active incidents", err)
	}
	return n, nil
}

// UpdateLocation edits a location. Clearing the city restores DefaultCity.
func (s *Service) UpdateLocation(ctx context.Context, id string, in LocationUpdate) (*models.Location, error) {
	const op = "update location"
	if err := s.checkInput(op, in); err != nil {
		return nil, err
	}
	l, err := s.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Description != nil {
		l.Description = strings.TrimSpace(*in.Description)
	}
	if in.Reference != nil {
		l.Reference = *in.Reference
	}
	if in.Latitude != nil {
		l.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		l.Longitude = in.Longitude
	}
	if in.City != nil {
		l.City = strings.TrimSpace(*in.City)
		if l.City == "" {
			l.City = models.DefaultCity
		}
	}
	if in.District != nil {
		l.District = *in.District
	}
	if in.Zone != nil {
		l.Zone = *in.Zone
	}
	if err := s.repos.Location.Update(ctx, l); err != nil {
		return nil, apperror.StorageFailure(op, err)
	}
	log.Infof("[Location] Updated location %s", id)
	return l, nil
}

func (s *Service) ListLocationsByDistrict(ctx context.Context, district string, page repository.Page) (*PageResult[models.Location], error) {
	const op = "list locations by district"
	if strings.TrimSpace(district) == "" {
		return nil, apperror.InvalidRequest(op, "district is required")
	}
	items, total, err := s.repos.Location.ListByDistrict(ctx, district, page)
	if err != nil {
		return nil, apperror.StorageFailure(op, err)
	}
	return newPageResult(items, total, page), nil
}
