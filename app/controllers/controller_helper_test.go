package controllers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperror.Kind
		want int
	}{
		{apperror.KindNotFound, fiber.StatusNotFound},
		{apperror.KindInvalidRequest, fiber.StatusBadRequest},
		{apperror.KindConflict, fiber.StatusConflict},
		{apperror.KindGatewayUnavailable, fiber.StatusServiceUnavailable},
		{apperror.KindGatewayFailure, fiber.StatusBadGateway},
		{apperror.KindStorageFailure, fiber.StatusInternalServerError},
		{apperror.KindInternal, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.kind), string(tt.kind))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return respondError(c, apperror.StorageFailure("save", errors.New("dial tcp 10.0.0.3:3306: refused")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "storage_failure", body["error"])
	assert.Equal(t, "Internal server error", body["message"])
	assert.Equal(t, "/boom", body["path"])
}

func TestFilterFromQuery(t *testing.T) {
	var got repository.IncidentFilter
	var gotErr error
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		got, gotErr = filterFromQuery(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET",
		"/?status=analyzed,APPROVED&min_priority=1&max_priority=2&from=2025-01-01&plausible=true&channel=WHATSAPP&district=Sur", nil))
	require.NoError(t, err)
	require.NoError(t, gotErr)

	assert.Equal(t, []models.IncidentStatus{models.StatusAnalyzed, models.StatusApproved}, got.Statuses)
	require.NotNil(t, got.MinPriority)
	assert.Equal(t, 1, *got.MinPriority)
	require.NotNil(t, got.MaxPriority)
	assert.Equal(t, 2, *got.MaxPriority)
	require.NotNil(t, got.From)
	assert.Equal(t, 2025, got.From.Year())
	assert.Nil(t, got.To)
	require.NotNil(t, got.Plausible)
	assert.True(t, *got.Plausible)
	assert.Equal(t, models.ChannelWhatsApp, got.Channel)
	assert.Equal(t, "Sur", got.District)

	for _, query := range []string{"/?min_priority=high", "/?from=yesterday", "/?plausible=maybe", "/?channel=sms"} {
		_, err := app.Test(httptest.NewRequest("GET", query, nil))
		require.NoError(t, err)
		assert.True(t, apperror.Is(gotErr, apperror.KindInvalidRequest), query)
	}
}
