package incident

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

// StatusInput is an operator-driven status change.
type StatusInput struct {
	Status       string                 `json:"status" validate:"required"`
	Actor        string                 `json:"actor" validate:"max=100"`
	Reason       string                 `json:"reason"`
	Observations *string                `json:"observations"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ChangeStatus applies a validated transition and records it.
func (s *Service) ChangeStatus(ctx context.Context, id string, in StatusInput) (*models.Incident, error) {
	const op = "change status"
	if err := s.checkInput(op, in); err != nil {
		return nil, err
	}
	to, err := models.ParseIncidentStatus(in.Status)
	if err != nil {
		return nil, apperror.InvalidRequest(op, "%v", err)
	}
	reason := strings.TrimSpace(in.Reason)
	switch to {
	case models.StatusRejected:
		if reason == "" {
			return nil, apperror.InvalidRequest(op, "a rejection reason is required")
		}
	case models.StatusCanceled:
		if reason == "" {
			reason = DefaultCancelReason
		}
	}
	return s.move(ctx, id, to, in.Actor, reason, in.Metadata, in.Observations, operatorMove)
}

// Approve marks an analyzed, plausible incident ready for dispatch.
func (s *Service) Approve(ctx context.Context, id, actor, observations string) (*models.Incident, error) {
	var obs *string
	if observations != "" {
		obs = &observations
	}
	return s.move(ctx, id, models.StatusApproved, actor, "", nil, obs, operatorMove)
}

// Reject closes the incident. Approved incidents need ForceReject.
func (s *Service) Reject(ctx context.Context, id, actor, reason string) (*models.Incident, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.InvalidRequest("reject incident", "a rejection reason is required")
	}
	return s.move(ctx, id, models.StatusRejected, actor, reason, nil, nil, operatorMove)
}

// ForceReject rejects an incident even after approval.
func (s *Service) ForceReject(ctx context.Context, id, actor, reason string) (*models.Incident, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.InvalidRequest("force reject incident", "a rejection reason is required")
	}
	return s.move(ctx, id, models.StatusRejected, actor, reason, map[string]interface{}{"forced": true}, nil, forcedMove)
}

// Cancel withdraws the incident on the requester's behalf.
func (s *Service) Cancel(ctx context.Context, id, actor, reason string) (*models.Incident, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultCancelReason
	}
	return s.move(ctx, id, models.StatusCanceled, actor, reason, nil, nil, operatorMove)
}

func (s *Service) move(ctx context.Context, id string, to models.IncidentStatus, actor, reason string, metadata map[string]interface{}, observations *string, mode transitionMode) (*models.Incident, error) {
	var (
		out  *models.Incident
		from models.IncidentStatus
	)
	err := s.withIncidentLock(ctx, id, func(uow *unitOfWork, inc *models.Incident) error {
		from = inc.Status
		if observations != nil {
			inc.Observations = *observations
		}
		if err := s.transition(ctx, uow, inc, to, actor, reason, metadata, mode); err != nil {
			return err
		}
		out = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Incident] Incident %s moved from %s to %s by %s", id, from, to, actorOrSystem(actor))
	return out, nil
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return models.SystemActor
	}
	return actor
}
