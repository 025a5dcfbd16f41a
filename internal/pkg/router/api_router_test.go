package router

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosdesk/intake/app/controllers"
	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/database/dbtest"
	"github.com/sosdesk/intake/internal/pkg/incident"
	"github.com/sosdesk/intake/internal/pkg/mlclient"
	"github.com/sosdesk/intake/internal/pkg/storage"
)

const testAPIKey = "test-key"

type heldEvents struct{}

func (heldEvents) Dispatch(ctx context.Context, ev incident.Event) error { return nil }

// fakeML answers both gateway contracts.
func fakeML(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok","model_loaded":true,"model_version":"test-v1"}`)
	})
	mux.HandleFunc("/text/analyze", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"prioridad_calculada":2,"nivel_gravedad":4,"tipo_incidente_predicho":"traffic_accident","score_confianza":0.9}`)
	})
	mux.HandleFunc("/image/analyze", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"es_imagen_accidente":true,"score_veracidad":0.9,"nivel_gravedad_visual":4}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ml := fakeML(t)
	text := mlclient.NewTextClient(mlclient.Config{BaseURL: ml.URL, AnalyzePath: "/text/analyze"})
	img := mlclient.NewImageClient(mlclient.Config{BaseURL: ml.URL, AnalyzePath: "/image/analyze"})

	db := dbtest.New(t)
	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	svc := incident.NewService(repository.NewRepositories(db), text, img, incident.DefaultConfig(),
		incident.WithDispatcher(heldEvents{}),
		incident.WithFileStore(store),
		incident.WithThumbnailer(storage.NewThumbnailer()),
	)
	health := controllers.NewHealthController(
		func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		nil,
		map[string]controllers.HealthChecker{"text": text, "image": img},
	)

	app := fiber.New()
	InstallRouter(app, APIConfig{Service: svc, Health: health, APIKey: testAPIKey, RateLimit: 1000})
	return app
}

func call(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func createBody(phone string) map[string]interface{} {
	return map[string]interface{}{
		"requester":     map[string]interface{}{"full_name": "Juan Perez", "phone": phone, "channel": "telegram"},
		"location":      map[string]interface{}{"description": "Plaza principal", "district": "Centro"},
		"description":   "Incendio en un local comercial",
		"reported_type": "incendio",
	}
}

func uploadPNG(t *testing.T, app *fiber.App, incidentID string) (*http.Response, map[string]interface{}) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	img.Set(10, 10, color.RGBA{G: 255, A: 255})
	var pic bytes.Buffer
	require.NoError(t, png.Encode(&pic, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "scene.png")
	require.NoError(t, err)
	_, err = part.Write(pic.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("is_primary", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/incidents/"+incidentID+"/multimedia", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	return send(t, app, req)
}

func TestHealthIsPublic(t *testing.T) {
	app := newTestApp(t)

	resp, body := send(t, app, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["database"])

	gateways, ok := body["gateways"].(map[string]interface{})
	require.True(t, ok)
	text := gateways["text"].(map[string]interface{})
	assert.Equal(t, true, text["healthy"])
	assert.Equal(t, "test-v1", text["model_version"])
}

func TestAPIRequiresKey(t *testing.T) {
	app := newTestApp(t)

	resp, body := send(t, app, httptest.NewRequest("GET", "/api/v1/incidents", nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])
}

func TestIncidentLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)

	resp, created := call(t, app, "POST", "/api/v1/incidents", createBody("+59171111111"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := created["id"].(string)
	assert.Equal(t, string(models.StatusReceived), created["status"])

	resp, inc := call(t, app, "POST", "/api/v1/incidents/"+id+"/analysis/text", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.StatusAnalyzed), inc["status"])
	assert.EqualValues(t, 2, inc["final_priority"])

	resp, item := uploadPNG(t, app, id)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, item["is_primary"])
	assert.NotEmpty(t, item["thumbnail_url"])

	resp, inc = call(t, app, "POST", "/api/v1/incidents/"+id+"/analysis/image", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, inc["final_priority"])
	assert.Equal(t, true, inc["plausible"])

	resp, inc = call(t, app, "POST", "/api/v1/incidents/"+id+"/approve", map[string]string{"actor": "operator-7"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.StatusApproved), inc["status"])

	resp, body := call(t, app, "POST", "/api/v1/incidents/"+id+"/reject", map[string]string{"actor": "operator-7", "reason": "duplicate"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["error"])

	resp, body = call(t, app, "DELETE", "/api/v1/incidents/"+id, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, inc = call(t, app, "POST", "/api/v1/incidents/"+id+"/force-reject", map[string]string{"actor": "supervisor", "reason": "duplicate"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.StatusRejected), inc["status"])
	assert.Equal(t, "duplicate", inc["rejection_reason"])

	req := httptest.NewRequest("GET", "/api/v1/incidents/"+id+"/history", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var history []models.StateHistory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 6)
	assert.Equal(t, models.StatusRejected, history[0].NewStatus)
	assert.Equal(t, "supervisor", history[0].Actor)

	resp, latest := call(t, app, "GET", "/api/v1/incidents/"+id+"/history/latest", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.StatusRejected), latest["new_status"])

	resp, count := call(t, app, "GET", "/api/v1/incidents/"+id+"/history/count", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 6, count["transitions"])

	resp, detail := call(t, app, "GET", "/api/v1/incidents/"+id+"/detail", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotNil(t, detail["requester"])
	assert.NotNil(t, detail["text_analysis"])
	assert.Len(t, detail["multimedia"], 1)
}

func TestListingsAndLookups(t *testing.T) {
	app := newTestApp(t)

	resp, created := call(t, app, "POST", "/api/v1/incidents", createBody("+59172222222"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := created["id"].(string)
	requesterID := created["requester_id"].(string)
	locationID := created["location_id"].(string)

	resp, page := call(t, app, "GET", "/api/v1/incidents?status=received&channel=telegram&district=Centro", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page["total"])

	resp, page = call(t, app, "GET", "/api/v1/incidents/pending-analysis", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page["total"])

	resp, stats := call(t, app, "GET", "/api/v1/incidents/stats", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	byStatus := stats["by_status"].(map[string]interface{})
	assert.EqualValues(t, 1, byStatus[string(models.StatusReceived)])
	assert.EqualValues(t, 0, byStatus[string(models.StatusApproved)])

	resp, requester := call(t, app, "GET", "/api/v1/requesters/by-phone/+59172222222", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, requesterID, requester["id"])

	resp, _ = call(t, app, "GET", "/api/v1/requesters/"+requesterID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, location := call(t, app, "GET", "/api/v1/locations/"+locationID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Centro", location["district"])

	resp, updated := call(t, app, "PATCH", "/api/v1/incidents/"+id, map[string]string{"observations": "caller on site"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "caller on site", updated["observations"])

	resp, canceled := call(t, app, "POST", "/api/v1/incidents/"+id+"/cancel", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, incident.DefaultCancelReason, canceled["rejection_reason"])

	resp, _ = call(t, app, "DELETE", "/api/v1/incidents/"+id, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = call(t, app, "GET", "/api/v1/incidents/"+id, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestErrorResponses(t *testing.T) {
	app := newTestApp(t)

	resp, body := call(t, app, "GET", "/api/v1/incidents/does-not-exist", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
	assert.Equal(t, "/api/v1/incidents/does-not-exist", body["path"])
	assert.NotEmpty(t, body["timestamp"])

	bad := createBody("12ab")
	resp, body = call(t, app, "POST", "/api/v1/incidents", bad)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "phone")

	resp, _ = call(t, app, "GET", "/api/v1/incidents?status=bogus", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, "GET", "/api/v1/history", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest("POST", "/api/v1/incidents", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	resp, body = send(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "malformed request body", body["message"])
}

func TestUploadRejectsNonImage(t *testing.T) {
	app := newTestApp(t)

	resp, created := call(t, app, "POST", "/api/v1/incidents", createBody("+59173333333"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("just some text, not a picture"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/incidents/"+created["id"].(string)+"/multimedia", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	resp, out := send(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", out["error"])
}

func TestAnalysisResultsOverHTTP(t *testing.T) {
	app := newTestApp(t)

	resp, created := call(t, app, "POST", "/api/v1/incidents", createBody("+59174444444"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := created["id"].(string)

	resp, body := call(t, app, "GET", "/api/v1/incidents/"+id+"/text-analysis", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])

	resp, _ = call(t, app, "POST", "/api/v1/incidents/"+id+"/analysis/text", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, item := uploadPNG(t, app, id)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = call(t, app, "POST", "/api/v1/incidents/"+id+"/analysis/image", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, text := call(t, app, "GET", "/api/v1/incidents/"+id+"/text-analysis", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, text["priority"])
	resp, _ = call(t, app, "GET", "/api/v1/text-analyses/"+text["id"].(string), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, page := call(t, app, "GET", "/api/v1/text-analyses/high-priority", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page["total"])
	resp, page = call(t, app, "GET", "/api/v1/text-analyses/pending", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, page["total"])

	resp, img := call(t, app, "GET", "/api/v1/multimedia/"+item["id"].(string)+"/analysis", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0.9, img["veracity_score"], 1e-9)
	resp, _ = call(t, app, "GET", "/api/v1/image-analyses/"+img["id"].(string), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, page = call(t, app, "GET", "/api/v1/incidents/"+id+"/image-analyses", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page["total"])
	resp, page = call(t, app, "GET", "/api/v1/image-analyses/low-veracity", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, page["total"])
	resp, page = call(t, app, "GET", "/api/v1/image-analyses/anomalies", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, page["total"])
}

func TestRequesterAndLocationEditsOverHTTP(t *testing.T) {
	app := newTestApp(t)

	resp, created := call(t, app, "POST", "/api/v1/incidents", createBody("+59175555555"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	requesterID := created["requester_id"].(string)
	locationID := created["location_id"].(string)
	resp, _ = call(t, app, "POST", "/api/v1/incidents", createBody("+59176666666"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, requester := call(t, app, "PATCH", "/api/v1/requesters/"+requesterID, map[string]string{"full_name": "Juan Perez Soliz", "channel": "whatsapp"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Juan Perez Soliz", requester["full_name"])

	resp, body := call(t, app, "PATCH", "/api/v1/requesters/"+requesterID, map[string]string{"phone": "+59176666666"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["error"])

	resp, page := call(t, app, "GET", "/api/v1/requesters/channel/telegram", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page["total"])
	resp, _ = call(t, app, "GET", "/api/v1/requesters/channel/sms", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, count := call(t, app, "GET", "/api/v1/requesters/"+requesterID+"/active-incidents", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, count["active_incidents"])

	resp, location := call(t, app, "PATCH", "/api/v1/locations/"+locationID, map[string]string{"district": "Equipetrol"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Equipetrol", location["district"])

	resp, page = call(t, app, "GET", "/api/v1/locations/district/Equipetrol", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page["total"])
	resp, page = call(t, app, "GET", "/api/v1/locations/district/Centro", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page["total"])
}
