package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sosdesk/intake/internal/pkg/incident"
)

// AnalysisController exposes stored text and image analysis results.
type AnalysisController struct {
	svc *incident.Service
}

func NewAnalysisController(svc *incident.Service) *AnalysisController {
	return &AnalysisController{svc: svc}
}

func (ac *AnalysisController) HandleGetText(c *fiber.Ctx) error {
	a, err := ac.svc.GetTextAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (ac *AnalysisController) HandleGetIncidentText(c *fiber.Ctx) error {
	a, err := ac.svc.GetIncidentTextAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (ac *AnalysisController) HandleListPendingText(c *fiber.Ctx) error {
	page, err := ac.svc.ListPendingTextAnalyses(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (ac *AnalysisController) HandleListHighPriorityText(c *fiber.Ctx) error {
	page, err := ac.svc.ListHighPriorityTextAnalyses(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (ac *AnalysisController) HandleGetImage(c *fiber.Ctx) error {
	a, err := ac.svc.GetImageAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (ac *AnalysisController) HandleGetMultimediaImage(c *fiber.Ctx) error {
	a, err := ac.svc.GetMultimediaImageAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (ac *AnalysisController) HandleListIncidentImages(c *fiber.Ctx) error {
	page, err := ac.svc.ListIncidentImageAnalyses(c.UserContext(), c.Params("id"), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (ac *AnalysisController) HandleListLowVeracity(c *fiber.Ctx) error {
	page, err := ac.svc.ListLowVeracityImageAnalyses(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (ac *AnalysisController) HandleListAnomalies(c *fiber.Ctx) error {
	page, err := ac.svc.ListAnomalousImageAnalyses(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}
