package incident

import (
	"time"

	"github.com/sosdesk/intake/internal/pkg/env"
	"github.com/sosdesk/intake/internal/pkg/upload"
)

const (
	DefaultPlausibilityThreshold = 0.5
	DefaultCancelReason          = "Canceled by requester"
)

// Config tunes the orchestrator.
type Config struct {
	// PlausibilityThreshold is the minimum veracity score for an image
	// to count as plausible.
	PlausibilityThreshold float64
	TextAnalysisEnabled   bool
	ImageAnalysisEnabled  bool
	// AnalysisTimeout caps one background handler run.
	AnalysisTimeout time.Duration
	AsyncWorkers    int
	Upload          upload.Rules
}

func DefaultConfig() Config {
	return Config{
		PlausibilityThreshold: DefaultPlausibilityThreshold,
		TextAnalysisEnabled:   true,
		ImageAnalysisEnabled:  true,
		AnalysisTimeout:       2 * time.Minute,
		AsyncWorkers:          DefaultAsyncWorkers,
		Upload:                upload.Rules{MaxBytes: upload.DefaultMaxBytes},
	}
}

// ConfigFromEnv reads the orchestrator settings from the environment.
func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		PlausibilityThreshold: env.GetEnvFloat("PLAUSIBILITY_THRESHOLD", def.PlausibilityThreshold),
		TextAnalysisEnabled:   env.GetEnvBool("ML_TEXT_ENABLED", def.TextAnalysisEnabled),
		ImageAnalysisEnabled:  env.GetEnvBool("ML_IMAGE_ENABLED", def.ImageAnalysisEnabled),
		AnalysisTimeout:       env.GetEnvDuration("ANALYSIS_TIMEOUT", def.AnalysisTimeout),
		AsyncWorkers:          env.GetEnvInt("ANALYSIS_WORKERS", def.AsyncWorkers),
		Upload:                upload.RulesFromEnv(),
	}
}
