package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sosdesk/intake/internal/pkg/incident"
)

// RequesterController serves requesters and their reported locations.
type RequesterController struct {
	svc *incident.Service
}

func NewRequesterController(svc *incident.Service) *RequesterController {
	return &RequesterController{svc: svc}
}

func (rc *RequesterController) HandleList(c *fiber.Ctx) error {
	page, err := rc.svc.ListRequesters(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (rc *RequesterController) HandleGet(c *fiber.Ctx) error {
	requester, err := rc.svc.GetRequester(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requester)
}

func (rc *RequesterController) HandleGetByPhone(c *fiber.Ctx) error {
	requester, err := rc.svc.GetRequesterByPhone(c.UserContext(), c.Params("phone"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requester)
}

func (rc *RequesterController) HandleGetLocation(c *fiber.Ctx) error {
	location, err := rc.svc.GetLocation(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(location)
}

func (rc *RequesterController) HandleUpdate(c *fiber.Ctx) error {
	var in incident.RequesterUpdate
	if err := parseBody(c, "update requester", &in); err != nil {
		return respondError(c, err)
	}
	requester, err := rc.svc.UpdateRequester(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requester)
}

func (rc *RequesterController) HandleListByChannel(c *fiber.Ctx) error {
	page, err := rc.svc.ListRequestersByChannel(c.UserContext(), c.Params("channel"), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (rc *RequesterController) HandleCountActive(c *fiber.Ctx) error {
	id := c.Params("id")
	n, err := rc.svc.CountActiveIncidents(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"requester_id": id, "active_incidents": n})
}

func (rc *RequesterController) HandleUpdateLocation(c *fiber.Ctx) error {
	var in incident.LocationUpdate
	if err := parseBody(c, "update location", &in); err != nil {
		return respondError(c, err)
	}
	location, err := rc.svc.UpdateLocation(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(location)
}

func (rc *RequesterController) HandleListLocationsByDistrict(c *fiber.Ctx) error {
	page, err := rc.svc.ListLocationsByDistrict(c.UserContext(), c.Params("district"), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}
