package mlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosdesk/intake/internal/pkg/apperror"
)

func newServer(t *testing.T, handler http.HandlerFunc) Config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return Config{BaseURL: srv.URL + "/", Timeout: time.Second, HealthTimeout: 200 * time.Millisecond}
}

func TestTextAnalyze(t *testing.T) {
	var got TextRequest
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultAnalyzePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"prioridad_calculada": 2,
			"nivel_gravedad": 3,
			"tipo_incidente_predicho": "trauma",
			"categorias_detectadas": {"trauma": 0.8},
			"palabras_clave_criticas": ["fractura"],
			"score_confianza": "0.92",
			"probabilidades_categorias": {"trauma": 0.8},
			"tiempo_procesamiento_ms": 15,
			"campo_extra": true
		}`))
	})

	res, err := NewTextClient(cfg).Analyze(context.Background(), TextRequest{Text: "fractura de brazo", IncidentID: "inc-1"})
	require.NoError(t, err)
	assert.Equal(t, "fractura de brazo", got.Text)
	assert.Equal(t, "inc-1", got.IncidentID)
	assert.Equal(t, 2, *res.Priority)
	assert.Equal(t, 3, res.Severity)
	assert.Equal(t, []string{"fractura"}, res.CriticalKeywords)
	assert.InDelta(t, 0.92, res.Confidence.Float(), 1e-9)
}

func TestTextAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"Server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"Malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"prioridad_calculada":`))
		}},
		{"Priority out of range", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"prioridad_calculada": 9}`))
		}},
		{"Missing priority", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"nivel_gravedad": 2}`))
		}},
		{"Timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(1500 * time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newServer(t, tt.handler)
			_, err := NewTextClient(cfg).Analyze(context.Background(), TextRequest{Text: "x"})
			require.Error(t, err)
			assert.Equal(t, apperror.KindGatewayFailure, apperror.KindOf(err))
		})
	}
}

func TestImageAnalyze(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "uploads/a.jpg", req.ImagePath)
		_, _ = w.Write([]byte(`{
			"es_imagen_accidente": true,
			"score_veracidad": 0.87,
			"nivel_gravedad_visual": 4,
			"objetos_detectados": {"car": 2},
			"personas_detectadas": 1,
			"calidad_imagen": "BUENA",
			"score_anomalia": null
		}`))
	})

	res, err := NewImageClient(cfg).Analyze(context.Background(), ImageRequest{ImagePath: "uploads/a.jpg", MultimediaID: "m1"})
	require.NoError(t, err)
	assert.True(t, res.IsAccident)
	assert.InDelta(t, 0.87, res.VeracityScore.Float(), 1e-9)
	assert.Equal(t, 4, *res.VisualSeverity)
	assert.Equal(t, "BUENA", res.Quality)
	assert.Zero(t, res.AnomalyScore.Float())
}

func TestImageAnalyzeRequiresVeracity(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nivel_gravedad_visual": 2}`))
	})

	_, err := NewImageClient(cfg).Analyze(context.Background(), ImageRequest{ImagePath: "x"})
	assert.True(t, apperror.Is(err, apperror.KindGatewayFailure))
}

func TestIsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected bool
	}{
		{"Model loaded", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, DefaultHealthPath, r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true,"model_version":"v1"}`))
		}, true},
		{"Model not loaded", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"degraded","model_loaded":false}`))
		}, false},
		{"Non-200", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, false},
		{"Malformed", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}, false},
		{"Slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte(`{"model_loaded":true}`))
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newServer(t, tt.handler)
			assert.Equal(t, tt.expected, NewTextClient(cfg).IsHealthy(context.Background()))
			assert.Equal(t, tt.expected, NewImageClient(cfg).IsHealthy(context.Background()))
		})
	}
}

func TestUnreachableGatewayIsUnhealthy(t *testing.T) {
	cfg := Config{BaseURL: "http://127.0.0.1:1", HealthTimeout: 200 * time.Millisecond}
	assert.False(t, NewTextClient(cfg).IsHealthy(context.Background()))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://ml:8000/"}.withDefaults()
	assert.Equal(t, "http://ml:8000", cfg.BaseURL)
	assert.Equal(t, DefaultAnalyzePath, cfg.AnalyzePath)
	assert.Equal(t, DefaultHealthPath, cfg.HealthPath)
	assert.Equal(t, DefaultHealthTimeout, cfg.HealthTimeout)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
