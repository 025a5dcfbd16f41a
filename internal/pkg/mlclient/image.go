package mlclient

import (
	"context"
	"fmt"

	"github.com/sosdesk/intake/internal/pkg/apperror"
)

// ImageRequest is the body sent to the image gateway.
type ImageRequest struct {
	ImagePath    string `json:"imagen_path"`
	MultimediaID string `json:"multimedia_id,omitempty"`
	IncidentID   string `json:"incidente_id,omitempty"`
}

// ImageResult is the image gateway's verdict on one picture.
type ImageResult struct {
	IsAccident       bool                   `json:"es_imagen_accidente"`
	VeracityScore    *Score                 `json:"score_veracidad"`
	SceneType        string                 `json:"tipo_escena_detectada"`
	VisualSeverity   *int                   `json:"nivel_gravedad_visual"`
	CriticalElements map[string]interface{} `json:"elementos_criticos_detectados"`
	DetectedObjects  map[string]interface{} `json:"objetos_detectados"`
	PersonCount      int                    `json:"personas_detectadas"`
	VehicleCount     int                    `json:"vehiculos_detectados"`
	SceneCategories  map[string]interface{} `json:"categorias_escena"`
	SceneConfidence  Score                  `json:"score_confianza_escena"`
	IsAnomaly        bool                   `json:"es_anomalia"`
	AnomalyScore     Score                  `json:"score_anomalia"`
	SuspicionReason  string                 `json:"razon_sospecha"`
	Quality          string                 `json:"calidad_imagen"`
	Resolution       string                 `json:"resolucion_imagen"`
	IsClear          bool                   `json:"es_imagen_clara"`
	VisionModel      string                 `json:"modelo_vision"`
	VeracityModel    string                 `json:"modelo_veracidad"`
	ProcessingMs     int                    `json:"tiempo_procesamiento_ms"`
	AnalyzedAt       string                 `json:"fecha_analisis"`
}

// ImageClient talks to the image classification gateway.
type ImageClient struct {
	gw gateway
}

func NewImageClient(cfg Config) *ImageClient {
	return &ImageClient{gw: newGateway("image", cfg)}
}

// Analyze classifies the stored image. Every failure is a GatewayFailure.
func (c *ImageClient) Analyze(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	var result ImageResult
	if err := c.gw.post(ctx, req, &result); err != nil {
		return nil, apperror.GatewayFailure("image analyze", err)
	}
	if result.VisualSeverity != nil && (*result.VisualSeverity < 1 || *result.VisualSeverity > 5) {
		return nil, apperror.GatewayFailure("image analyze",
			fmt.Errorf("%w: visual severity out of range", ErrMalformedResponse))
	}
	if result.VeracityScore == nil || *result.VeracityScore < 0 || *result.VeracityScore > 1 {
		return nil, apperror.GatewayFailure("image analyze",
			fmt.Errorf("%w: veracity score out of range", ErrMalformedResponse))
	}
	return &result, nil
}

func (c *ImageClient) IsHealthy(ctx context.Context) bool {
	_, ok := c.gw.health(ctx)
	return ok
}

func (c *ImageClient) Health(ctx context.Context) (*HealthStatus, bool) {
	return c.gw.health(ctx)
}
