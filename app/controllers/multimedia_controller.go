package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/sosdesk/intake/internal/pkg/apperror"
	"github.com/sosdesk/intake/internal/pkg/incident"
)

// MultimediaController handles image uploads attached to incidents.
type MultimediaController struct {
	svc *incident.Service
}

func NewMultimediaController(svc *incident.Service) *MultimediaController {
	return &MultimediaController{svc: svc}
}

// HandleUpload accepts a multipart form with a "file" part and optional
// "description" and "is_primary" fields.
func (mc *MultimediaController) HandleUpload(c *fiber.Ctx) error {
	const op = "upload multimedia"

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, op, "file is required")
	}
	file, err := fh.Open()
	if err != nil {
		return respondError(c, apperror.StorageFailure(op, err))
	}
	defer file.Close()

	isPrimary := false
	if raw := c.FormValue("is_primary"); raw != "" {
		if isPrimary, err = strconv.ParseBool(raw); err != nil {
			return badRequest(c, op, "is_primary must be true or false")
		}
	}

	item, err := mc.svc.UploadMultimedia(c.UserContext(), c.Params("id"), incident.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     file,
		Description: c.FormValue("description"),
		IsPrimary:   isPrimary,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (mc *MultimediaController) HandleList(c *fiber.Ctx) error {
	items, err := mc.svc.ListMultimedia(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(items)
}

func (mc *MultimediaController) HandleGet(c *fiber.Ctx) error {
	item, err := mc.svc.GetMultimedia(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

func (mc *MultimediaController) HandleDelete(c *fiber.Ctx) error {
	if err := mc.svc.DeleteMultimedia(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
