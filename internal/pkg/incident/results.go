package incident

import (
	"context"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

// highPriorityCutoff is the least urgent priority still counted as high.
const highPriorityCutoff = 2

func (s *Service) GetTextAnalysis(ctx context.Context, id string) (*models.TextAnalysis, error) {
	a, err := s.repos.TextAnalysis.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get text analysis", "text analysis", id, err)
	}
	return a, nil
}

// GetIncidentTextAnalysis returns the current text analysis of an incident.
func (s *Service) GetIncidentTextAnalysis(ctx context.Context, incidentID string) (*models.TextAnalysis, error) {
	inc, err := s.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if inc.TextAnalysisID == nil {
		return nil, apperror.NotFound("get text analysis", "incident %s has no text analysis yet", incidentID)
	}
	return s.GetTextAnalysis(ctx, *inc.TextAnalysisID)
}

// ListPendingTextAnalyses returns analyses that have not completed,
// including failed ones.
func (s *Service) ListPendingTextAnalyses(ctx context.Context, page repository.Page) (*PageResult[models.TextAnalysis], error) {
	filter := repository.TextAnalysisFilter{
		Statuses: []models.AnalysisStatus{models.AnalysisPending, models.AnalysisError},
	}
	items, total, err := s.repos.TextAnalysis.List(ctx, filter, page)
	if err != nil {
		return nil, apperror.StorageFailure("list pending text analyses", err)
	}
	return newPageResult(items, total, page), nil
}

func (s *Service) ListHighPriorityTextAnalyses(ctx context.Context, page repository.Page) (*PageResult[models.TextAnalysis], error) {
	cutoff := highPriorityCutoff
	items, total, err := s.repos.TextAnalysis.List(ctx, repository.TextAnalysisFilter{MaxPriority: &cutoff}, page)
	if err != nil {
		return nil, apperror.StorageFailure("list high priority text analyses", err)
	}
	return newPageResult(items, total, page), nil
}

func (s *Service) GetImageAnalysis(ctx context.Context, id string) (*models.ImageAnalysis, error) {
	a, err := s.repos.ImageAnalysis.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get image analysis", "image analysis", id, err)
	}
	return a, nil
}

// GetMultimediaImageAnalysis returns the analysis of one uploaded image.
func (s *Service) GetMultimediaImageAnalysis(ctx context.Context, multimediaID string) (*models.ImageAnalysis, error) {
	if _, err := s.GetMultimedia(ctx, multimediaID); err != nil {
		return nil, err
	}
	a, err := s.repos.ImageAnalysis.GetByMultimedia(ctx, multimediaID)
	if err != nil {
		return nil, lookupError("get image analysis", "image analysis for multimedia", multimediaID, err)
	}
	return a, nil
}

func (s *Service) ListIncidentImageAnalyses(ctx context.Context, incidentID string, page repository.Page) (*PageResult[models.ImageAnalysis], error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.listImageAnalyses(ctx, "list incident image analyses", repository.ImageAnalysisFilter{IncidentID: incidentID}, page)
}

// ListLowVeracityImageAnalyses returns images scoring under the
// plausibility threshold, likely false alarms.
func (s *Service) ListLowVeracityImageAnalyses(ctx context.Context, page repository.Page) (*PageResult[models.ImageAnalysis], error) {
	threshold := s.cfg.PlausibilityThreshold
	return s.listImageAnalyses(ctx, "list low veracity image analyses", repository.ImageAnalysisFilter{VeracityBelow: &threshold}, page)
}

func (s *Service) ListAnomalousImageAnalyses(ctx context.Context, page repository.Page) (*PageResult[models.ImageAnalysis], error) {
	return s.listImageAnalyses(ctx, "list anomalous image analyses", repository.ImageAnalysisFilter{AnomaliesOnly: true}, page)
}

func (s *Service) listImageAnalyses(ctx context.Context, op string, filter repository.ImageAnalysisFilter, page repository.Page) (*PageResult[models.ImageAnalysis], error) {
	items, total, err := s.repos.ImageAnalysis.List(ctx, filter, page)
	if err != nil {
		return nil, apperror.StorageFailure(op, err)
	}
	return newPageResult(items, total, page), nil
}
