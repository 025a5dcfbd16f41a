package mlclient

import (
	"context"
	"fmt"

	"github.com/sosdesk/intake/internal/pkg/apperror"
)

// TextRequest is the body sent to the text gateway.
type TextRequest struct {
	Text       string `json:"texto"`
	IncidentID string `json:"incidente_id,omitempty"`
}

// TextResult is the text gateway's classification of an incident description.
type TextResult struct {
	Priority              *int                   `json:"prioridad_calculada"`
	Severity              int                    `json:"nivel_gravedad"`
	PredictedType         string                 `json:"tipo_incidente_predicho"`
	Categories            map[string]interface{} `json:"categorias_detectadas"`
	CriticalKeywords      []string               `json:"palabras_clave_criticas"`
	MedicalEntities       map[string]interface{} `json:"entidades_medicas"`
	Confidence            Score                  `json:"score_confianza"`
	CategoryProbabilities map[string]interface{} `json:"probabilidades_categorias"`
	ModelVersion          string                 `json:"modelo_version"`
	Algorithm             string                 `json:"algoritmo_usado"`
	ProcessingMs          int                    `json:"tiempo_procesamiento_ms"`
	AnalyzedAt            string                 `json:"fecha_analisis"`
}

// TextClient talks to the text classification gateway.
type TextClient struct {
	gw gateway
}

func NewTextClient(cfg Config) *TextClient {
	return &TextClient{gw: newGateway("text", cfg)}
}

// Analyze classifies the text. Every failure is a GatewayFailure.
func (c *TextClient) Analyze(ctx context.Context, req TextRequest) (*TextResult, error) {
	var result TextResult
	if err := c.gw.post(ctx, req, &result); err != nil {
		return nil, apperror.GatewayFailure("text analyze", err)
	}
	if result.Priority == nil || *result.Priority < 1 || *result.Priority > 5 {
		return nil, apperror.GatewayFailure("text analyze",
			fmt.Errorf("%w: priority out of range", ErrMalformedResponse))
	}
	return &result, nil
}

// IsHealthy reports whether the gateway is reachable with its model loaded.
func (c *TextClient) IsHealthy(ctx context.Context) bool {
	_, ok := c.gw.health(ctx)
	return ok
}

// Health returns the raw health body when the gateway answers.
func (c *TextClient) Health(ctx context.Context) (*HealthStatus, bool) {
	return c.gw.health(ctx)
}
