package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/sosdesk/intake/internal/pkg/incident"
	"github.com/sosdesk/intake/internal/pkg/statistics"
)

// StatsProvider serves the incident counters.
type StatsProvider interface {
	Get(ctx context.Context) (*statistics.Snapshot, error)
}

// IncidentController exposes the incident lifecycle over HTTP.
type IncidentController struct {
	svc   *incident.Service
	stats StatsProvider
}

func NewIncidentController(svc *incident.Service, stats StatsProvider) *IncidentController {
	return &IncidentController{svc: svc, stats: stats}
}

// decisionRequest is the body of approve, reject and cancel.
type decisionRequest struct {
	Actor        string `json:"actor"`
	Reason       string `json:"reason"`
	Observations string `json:"observations"`
}

// HandleCreate registers a new report. 201 with the stored incident.
func (ic *IncidentController) HandleCreate(c *fiber.Ctx) error {
	var in incident.CreateInput
	if err := parseBody(c, "create incident", &in); err != nil {
		return respondError(c, err)
	}
	inc, err := ic.svc.CreateIncident(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inc)
}

func (ic *IncidentController) HandleList(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := ic.svc.ListIncidents(c.UserContext(), filter, pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (ic *IncidentController) HandleListForDispatch(c *fiber.Ctx) error {
	page, err := ic.svc.ListForDispatch(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (ic *IncidentController) HandleListPendingAnalysis(c *fiber.Ctx) error {
	page, err := ic.svc.ListPendingAnalysis(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (ic *IncidentController) HandleListHighPriority(c *fiber.Ctx) error {
	page, err := ic.svc.ListHighPriority(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// HandleStats returns incident counts per status and for today.
func (ic *IncidentController) HandleStats(c *fiber.Ctx) error {
	snap, err := ic.stats.Get(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

func (ic *IncidentController) HandleGet(c *fiber.Ctx) error {
	inc, err := ic.svc.GetIncident(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

// HandleGetDetail returns the incident with its requester, location,
// analyses, multimedia and history.
func (ic *IncidentController) HandleGetDetail(c *fiber.Ctx) error {
	inc, err := ic.svc.GetIncidentDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleUpdate(c *fiber.Ctx) error {
	var in incident.UpdateInput
	if err := parseBody(c, "update incident", &in); err != nil {
		return respondError(c, err)
	}
	inc, err := ic.svc.UpdateIncident(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleDelete(c *fiber.Ctx) error {
	if err := ic.svc.DeleteIncident(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (ic *IncidentController) HandleChangeStatus(c *fiber.Ctx) error {
	var in incident.StatusInput
	if err := parseBody(c, "change status", &in); err != nil {
		return respondError(c, err)
	}
	inc, err := ic.svc.ChangeStatus(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

// decision parses an optional body. An empty body is allowed.
func decision(c *fiber.Ctx, op string) (decisionRequest, error) {
	var req decisionRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	err := parseBody(c, op, &req)
	return req, err
}

func (ic *IncidentController) HandleApprove(c *fiber.Ctx) error {
	req, err := decision(c, "approve")
	if err != nil {
		return respondError(c, err)
	}
	inc, err := ic.svc.Approve(c.UserContext(), c.Params("id"), req.Actor, req.Observations)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleReject(c *fiber.Ctx) error {
	req, err := decision(c, "reject")
	if err != nil {
		return respondError(c, err)
	}
	inc, err := ic.svc.Reject(c.UserContext(), c.Params("id"), req.Actor, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

// HandleForceReject rejects even an approved incident.
func (ic *IncidentController) HandleForceReject(c *fiber.Ctx) error {
	req, err := decision(c, "force reject")
	if err != nil {
		return respondError(c, err)
	}
	inc, err := ic.svc.ForceReject(c.UserContext(), c.Params("id"), req.Actor, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleCancel(c *fiber.Ctx) error {
	req, err := decision(c, "cancel")
	if err != nil {
		return respondError(c, err)
	}
	inc, err := ic.svc.Cancel(c.UserContext(), c.Params("id"), req.Actor, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleTextAnalysis(c *fiber.Ctx) error {
	inc, err := ic.svc.TriggerTextAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleImageAnalysis(c *fiber.Ctx) error {
	inc, err := ic.svc.TriggerImageAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleFullAnalysis(c *fiber.Ctx) error {
	inc, err := ic.svc.TriggerFullAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

// HandleComputePriority re-runs priority fusion on the stored partial
// priorities.
func (ic *IncidentController) HandleComputePriority(c *fiber.Ctx) error {
	inc, err := ic.svc.ComputePriority(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inc)
}

func (ic *IncidentController) HandleHistory(c *fiber.Ctx) error {
	entries, err := ic.svc.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

func (ic *IncidentController) HandleCountHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	n, err := ic.svc.CountHistory(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"incident_id": id, "transitions": n})
}

func (ic *IncidentController) HandleLatestHistory(c *fiber.Ctx) error {
	entry, err := ic.svc.LatestHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entry)
}

// HandleSearchHistory lists history rows by ?actor= or by ?from=&to=.
func (ic *IncidentController) HandleSearchHistory(c *fiber.Ctx) error {
	const op = "search history"
	if actor := c.Query("actor"); actor != "" {
		entries, err := ic.svc.ListHistoryByActor(c.UserContext(), actor)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	}

	from, err := parseTimeQuery(c.Query("from"))
	if err != nil || from == nil {
		return badRequest(c, op, "actor or from/to is required")
	}
	to, err := parseTimeQuery(c.Query("to"))
	if err != nil || to == nil {
		return badRequest(c, op, "to must be RFC3339 or YYYY-MM-DD")
	}
	entries, err := ic.svc.ListHistoryBetween(c.UserContext(), *from, *to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}
