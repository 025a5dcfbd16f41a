package mlclient

import (
	"strings"
	"time"

	"github.com/sosdesk/intake/internal/pkg/env"
)

const (
	DefaultAnalyzePath   = "/analyze"
	DefaultHealthPath    = "/health"
	DefaultHealthTimeout = 3 * time.Second
)

// Config points a gateway client at one ML service.
type Config struct {
	BaseURL       string
	AnalyzePath   string
	HealthPath    string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.AnalyzePath == "" {
		c.AnalyzePath = DefaultAnalyzePath
	}
	if c.HealthPath == "" {
		c.HealthPath = DefaultHealthPath
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	return c
}

// TextConfigFromEnv reads ML_TEXT_* settings.
func TextConfigFromEnv() Config {
	return Config{
		BaseURL:       env.GetEnv("ML_TEXT_URL", "http://localhost:8001"),
		AnalyzePath:   env.GetEnv("ML_TEXT_ANALYZE_PATH", DefaultAnalyzePath),
		HealthPath:    env.GetEnv("ML_TEXT_HEALTH_PATH", DefaultHealthPath),
		Timeout:       env.GetEnvDuration("ML_TEXT_TIMEOUT", 30*time.Second),
		HealthTimeout: env.GetEnvDuration("ML_HEALTH_TIMEOUT", DefaultHealthTimeout),
	}
}

// ImageConfigFromEnv reads ML_IMAGE_* settings.
func ImageConfigFromEnv() Config {
	return Config{
		BaseURL:       env.GetEnv("ML_IMAGE_URL", "http://localhost:8002"),
		AnalyzePath:   env.GetEnv("ML_IMAGE_ANALYZE_PATH", DefaultAnalyzePath),
		HealthPath:    env.GetEnv("ML_IMAGE_HEALTH_PATH", DefaultHealthPath),
		Timeout:       env.GetEnvDuration("ML_IMAGE_TIMEOUT", 60*time.Second),
		HealthTimeout: env.GetEnvDuration("ML_HEALTH_TIMEOUT", DefaultHealthTimeout),
	}
}
