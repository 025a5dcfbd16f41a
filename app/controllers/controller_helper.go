package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindInvalidRequest:
		return fiber.StatusBadRequest
	case apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindGatewayUnavailable:
		return fiber.StatusServiceUnavailable
	case apperror.KindGatewayFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the JSON error body for err.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	status := statusFor(kind)

	message := apperror.MessageOf(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		message = "Internal server error"
	}

	return c.Status(status).JSON(fiber.Map{
		"error":     string(kind),
		"message":   message,
		"path":      c.Path(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func badRequest(c *fiber.Ctx, op, format string, args ...interface{}) error {
	return respondError(c, apperror.InvalidRequest(op, format, args...))
}

// parseBody decodes the JSON body into out.
func parseBody(c *fiber.Ctx, op string, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.InvalidRequest(op, "malformed request body")
	}
	return nil
}

// pageFromQuery reads ?page=&size= (1-based page).
func pageFromQuery(c *fiber.Ctx) repository.Page {
	return repository.Page{
		Number: c.QueryInt("page", 1),
		Size:   c.QueryInt("size", repository.DefaultPageSize),
	}
}

func parseTimeQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIntQuery(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// filterFromQuery builds an incident filter from the listing query string.
// status accepts a comma separated list.
func filterFromQuery(c *fiber.Ctx) (repository.IncidentFilter, error) {
	const op = "list incidents"
	var f repository.IncidentFilter

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, err := models.ParseIncidentStatus(part)
			if err != nil {
				return f, apperror.InvalidRequest(op, "%v", err)
			}
			f.Statuses = append(f.Statuses, s)
		}
	}

	var err error
	if f.MinPriority, err = parseIntQuery(c.Query("min_priority")); err != nil {
		return f, apperror.InvalidRequest(op, "min_priority must be a number")
	}
	if f.MaxPriority, err = parseIntQuery(c.Query("max_priority")); err != nil {
		return f, apperror.InvalidRequest(op, "max_priority must be a number")
	}
	if f.From, err = parseTimeQuery(c.Query("from")); err != nil {
		return f, apperror.InvalidRequest(op, "from must be RFC3339 or YYYY-MM-DD")
	}
	if f.To, err = parseTimeQuery(c.Query("to")); err != nil {
		return f, apperror.InvalidRequest(op, "to must be RFC3339 or YYYY-MM-DD")
	}

	if raw := c.Query("plausible"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, apperror.InvalidRequest(op, "plausible must be true or false")
		}
		f.Plausible = &v
	}
	if raw := c.Query("channel"); raw != "" {
		ch, err := models.ParseChannel(raw)
		if err != nil {
			return f, apperror.InvalidRequest(op, "%v", err)
		}
		f.Channel = ch
	}

	f.RequesterID = c.Query("requester_id")
	f.District = c.Query("district")
	return f, nil
}
