package incident

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/internal/pkg/apperror"
	"github.com/sosdesk/intake/internal/pkg/mlclient"
)

// HandleEvent routes a committed event to its analysis handler. Disabled
// analyses and unavailable gateways abort without error; the incident stays
// analyzable through the manual triggers.
func (s *Service) HandleEvent(ctx context.Context, ev Event) error {
	var err error
	switch ev.Type {
	case EventIncidentCreated:
		if !s.cfg.TextAnalysisEnabled {
			log.Infof("[Analysis] Text analysis disabled, skipping incident %s", ev.IncidentID)
			return nil
		}
		err = s.AnalyzeText(ctx, ev.IncidentID)
	case EventMultimediaCreated:
		if !s.cfg.ImageAnalysisEnabled {
			log.Infof("[Analysis] Image analysis disabled, skipping multimedia %s", ev.MultimediaID)
			return nil
		}
		err = s.AnalyzeImage(ctx, ev.MultimediaID)
	default:
		return apperror.InvalidRequest("handle event", "unknown event type %q", ev.Type)
	}
	if apperror.Is(err, apperror.KindGatewayUnavailable) {
		log.Warnf("[Analysis] %s for incident %s aborted: %v", ev.Type, ev.IncidentID, err)
		return nil
	}
	return err
}

func analyzable(op string, inc *models.Incident) error {
	if inc.Status.IsTerminal() || inc.Status == models.StatusApproved {
		return apperror.InvalidRequest(op, "incident %s is %s and is not analyzed again", inc.ID, inc.Status)
	}
	return nil
}

// AnalyzeText classifies the incident description and folds the result
// into the incident. The gateway is called outside the incident lock; an
// unhealthy gateway aborts before anything changes.
func (s *Service) AnalyzeText(ctx context.Context, incidentID string) error {
	const op = "text analysis"
	if !s.cfg.TextAnalysisEnabled {
		return apperror.GatewayUnavailable(op, "text analysis is disabled")
	}

	inc, err := s.GetIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	if err := analyzable(op, inc); err != nil {
		log.Infof("[Analysis] Skipping text analysis: %v", err)
		return err
	}
	if !s.text.IsHealthy(ctx) {
		log.Warnf("[Analysis] Text gateway unavailable, incident %s not analyzed", incidentID)
		return apperror.GatewayUnavailable(op, "text analysis service is unavailable")
	}

	var description string
	err = s.withIncidentLock(ctx, incidentID, func(uow *unitOfWork, inc *models.Incident) error {
		description = inc.Description
		return s.transition(ctx, uow, inc, models.StatusInTextAnalysis, models.SystemActor, "text analysis started", nil, analysisMove)
	})
	if err != nil {
		log.Errorf("[Analysis] Text analysis of incident %s failed at stage start: %v", incidentID, err)
		return err
	}

	res, err := s.text.Analyze(ctx, mlclient.TextRequest{Text: description, IncidentID: incidentID})
	if err != nil {
		log.Errorf("[Analysis] Text analysis of incident %s failed at stage gateway: %v", incidentID, err)
		return err
	}

	err = s.withIncidentLock(ctx, incidentID, func(uow *unitOfWork, inc *models.Incident) error {
		analysis := textAnalysisFrom(description, res)
		if err := uow.repos.TextAnalysis.Create(ctx, analysis); err != nil {
			return apperror.StorageFailure("save text analysis", err)
		}
		previous := inc.TextAnalysisID

		inc.TextAnalysisID = &analysis.ID
		inc.TextPriority = res.Priority
		if res.PredictedType != "" {
			inc.ClassifiedType = res.PredictedType
		}
		applyFusion(inc)
		metadata := map[string]interface{}{"text_priority": *res.Priority, "final_priority": derefInt(inc.FinalPriority)}
		if err := s.transition(ctx, uow, inc, models.StatusAnalyzed, models.SystemActor, "text analysis completed", metadata, analysisMove); err != nil {
			return err
		}

		if previous != nil && *previous != analysis.ID {
			if err := uow.repos.TextAnalysis.Delete(ctx, *previous); err != nil {
				return apperror.StorageFailure("replace text analysis", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("[Analysis] Text analysis of incident %s failed at stage persist: %v", incidentID, err)
		return err
	}
	log.Infof("[Analysis] Text analysis of incident %s completed with priority %d", incidentID, *res.Priority)
	return nil
}

// AnalyzeImage scores one image for veracity and visual severity and
// folds the result into its incident.
func (s *Service) AnalyzeImage(ctx context.Context, multimediaID string) error {
	const op = "image analysis"
	if !s.cfg.ImageAnalysisEnabled {
		return apperror.GatewayUnavailable(op, "image analysis is disabled")
	}

	item, err := s.repos.Multimedia.GetByID(ctx, multimediaID)
	if err != nil {
		return lookupError(op, "multimedia", multimediaID, err)
	}
	if item.Kind != models.FileKindImage {
		log.Infof("[Analysis] Multimedia %s is %s, skipping image analysis", item.ID, item.Kind)
		return nil
	}
	inc, err := s.GetIncident(ctx, item.IncidentID)
	if err != nil {
		return err
	}
	if err := analyzable(op, inc); err != nil {
		log.Infof("[Analysis] Skipping image analysis: %v", err)
		return err
	}
	if !s.image.IsHealthy(ctx) {
		log.Warnf("[Analysis] Image gateway unavailable, multimedia %s not analyzed", multimediaID)
		return apperror.GatewayUnavailable(op, "image analysis service is unavailable")
	}

	err = s.withIncidentLock(ctx, item.IncidentID, func(uow *unitOfWork, inc *models.Incident) error {
		return s.transition(ctx, uow, inc, models.StatusInImageAnalysis, models.SystemActor, "image analysis started",
			map[string]interface{}{"multimedia_id": item.ID}, analysisMove)
	})
	if err != nil {
		log.Errorf("[Analysis] Image analysis of multimedia %s failed at stage start: %v", multimediaID, err)
		return err
	}

	res, err := s.image.Analyze(ctx, mlclient.ImageRequest{
		ImagePath:    item.StoragePath,
		MultimediaID: item.ID,
		IncidentID:   item.IncidentID,
	})
	if err != nil {
		log.Errorf("[Analysis] Image analysis of multimedia %s failed at stage gateway: %v", multimediaID, err)
		return err
	}
	veracity := res.VeracityScore.Float()
	plausible := veracity >= s.cfg.PlausibilityThreshold

	err = s.withIncidentLock(ctx, item.IncidentID, func(uow *unitOfWork, inc *models.Incident) error {
		current, err := uow.repos.Multimedia.GetByID(ctx, item.ID)
		if err != nil {
			return lookupError(op, "multimedia", item.ID, err)
		}
		if err := uow.repos.ImageAnalysis.Upsert(ctx, imageAnalysisFrom(current.ID, res)); err != nil {
			return apperror.StorageFailure("save image analysis", err)
		}
		current.ImageAnalysis = nil
		current.AnalysisCompleted = true
		if err := uow.repos.Multimedia.Update(ctx, current); err != nil {
			return apperror.StorageFailure("save multimedia", err)
		}

		if res.VisualSeverity != nil {
			severity := *res.VisualSeverity
			inc.ImagePriority = &severity
		}
		inc.VeracityScore = &veracity
		inc.Plausible = &plausible
		applyFusion(inc)
		metadata := map[string]interface{}{
			"multimedia_id":  current.ID,
			"veracity_score": veracity,
			"plausible":      plausible,
			"final_priority": derefInt(inc.FinalPriority),
		}
		return s.transition(ctx, uow, inc, models.StatusAnalyzed, models.SystemActor, "image analysis completed", metadata, analysisMove)
	})
	if err != nil {
		log.Errorf("[Analysis] Image analysis of multimedia %s failed at stage persist: %v", multimediaID, err)
		return err
	}
	log.Infof("[Analysis] Image analysis of multimedia %s completed, veracity %.2f plausible %t", multimediaID, veracity, plausible)
	return nil
}

// AnalyzeIncident runs the text analysis and then every pending image
// analysis of the incident. Failures are collected; one failing step does
// not stop the others.
func (s *Service) AnalyzeIncident(ctx context.Context, incidentID string) error {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return err
	}
	var errs []error
	if s.cfg.TextAnalysisEnabled {
		if err := s.AnalyzeText(ctx, incidentID); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cfg.ImageAnalysisEnabled {
		pending, err := s.repos.Multimedia.ListPendingImages(ctx, incidentID)
		if err != nil {
			return apperror.StorageFailure("list pending images", err)
		}
		for _, item := range pending {
			if err := s.AnalyzeImage(ctx, item.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// TriggerTextAnalysis re-runs the text analysis on operator request and
// returns the refreshed incident.
func (s *Service) TriggerTextAnalysis(ctx context.Context, incidentID string) (*models.Incident, error) {
	if err := s.AnalyzeText(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.GetIncident(ctx, incidentID)
}

// TriggerImageAnalysis analyzes every image of the incident still
// awaiting a result.
func (s *Service) TriggerImageAnalysis(ctx context.Context, incidentID string) (*models.Incident, error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	pending, err := s.repos.Multimedia.ListPendingImages(ctx, incidentID)
	if err != nil {
		return nil, apperror.StorageFailure("list pending images", err)
	}
	if len(pending) == 0 {
		return nil, apperror.InvalidRequest("trigger image analysis", "incident %s has no images awaiting analysis", incidentID)
	}
	var errs []error
	for _, item := range pending {
		if err := s.AnalyzeImage(ctx, item.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s.GetIncident(ctx, incidentID)
}

func (s *Service) TriggerFullAnalysis(ctx context.Context, incidentID string) (*models.Incident, error) {
	if err := s.AnalyzeIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.GetIncident(ctx, incidentID)
}

// ComputePriority recomputes the final priority from the stored inputs.
// No transition is recorded.
func (s *Service) ComputePriority(ctx context.Context, incidentID string) (*models.Incident, error) {
	var out *models.Incident
	err := s.withIncidentLock(ctx, incidentID, func(uow *unitOfWork, inc *models.Incident) error {
		out = inc
		if !applyFusion(inc) {
			return nil
		}
		if err := uow.repos.Incident.Update(ctx, inc); err != nil {
			return apperror.StorageFailure("save final priority", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func textAnalysisFrom(text string, res *mlclient.TextResult) *models.TextAnalysis {
	a := models.NewTextAnalysis(text)
	a.Priority = *res.Priority
	a.Severity = res.Severity
	a.PredictedType = res.PredictedType
	a.Categories = datatypes.JSONMap(res.Categories)
	a.Keywords = datatypes.JSONSlice[string](res.CriticalKeywords)
	a.MedicalEntities = datatypes.JSONMap(res.MedicalEntities)
	a.CategoryProbabilities = datatypes.JSONMap(res.CategoryProbabilities)
	a.Confidence = res.Confidence.Float()
	if res.ModelVersion != "" {
		a.ModelVersion = res.ModelVersion
	}
	if res.Algorithm != "" {
		a.Algorithm = res.Algorithm
	}
	a.ProcessingMs = res.ProcessingMs
	if at, ok := parseAnalyzedAt(res.AnalyzedAt); ok {
		a.AnalyzedAt = at
	}
	return a
}

func imageAnalysisFrom(multimediaID string, res *mlclient.ImageResult) *models.ImageAnalysis {
	a := models.NewImageAnalysis(multimediaID)
	a.IsAccident = res.IsAccident
	a.VeracityScore = res.VeracityScore.Float()
	a.SceneType = res.SceneType
	if res.VisualSeverity != nil {
		a.VisualSeverity = *res.VisualSeverity
	}
	a.CriticalElements = datatypes.JSONMap(res.CriticalElements)
	a.DetectedObjects = datatypes.JSONMap(res.DetectedObjects)
	a.PersonCount = res.PersonCount
	a.VehicleCount = res.VehicleCount
	a.SceneCategories = datatypes.JSONMap(res.SceneCategories)
	a.SceneConfidence = res.SceneConfidence.Float()
	a.IsAnomaly = res.IsAnomaly
	a.AnomalyScore = res.AnomalyScore.Float()
	a.SuspicionReason = res.SuspicionReason
	if res.Quality != "" {
		a.Quality = models.ParseImageQuality(res.Quality)
	}
	a.Resolution = res.Resolution
	a.IsClear = res.IsClear
	a.VisionModel = res.VisionModel
	a.VeracityModel = res.VeracityModel
	a.ProcessingMs = res.ProcessingMs
	if at, ok := parseAnalyzedAt(res.AnalyzedAt); ok {
		a.AnalyzedAt = at
	}
	return a
}

var analyzedAtLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"}

func parseAnalyzedAt(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range analyzedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func derefInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
