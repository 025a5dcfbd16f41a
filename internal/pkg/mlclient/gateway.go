package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
)

// ErrMalformedResponse is returned when a 200 response cannot be used.
var ErrMalformedResponse = errors.New("malformed gateway response")

// StatusError reports a non-200 analyze response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// HealthStatus is the body of the gateway health endpoint.
type HealthStatus struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelVersion string `json:"model_version"`
}

// gateway holds the HTTP plumbing shared by the text and image clients.
type gateway struct {
	name string
	cfg  Config
	http *http.Client
}

func newGateway(name string, cfg Config) gateway {
	cfg = cfg.withDefaults()
	return gateway{
		name: name,
		cfg:  cfg,
		http: &http.Client{},
	}
}

// post sends body as JSON to the analyze endpoint and decodes the 200
// response into out. The call is bounded by cfg.Timeout.
func (g gateway) post(ctx context.Context, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", g.name, err)
	}

	url := g.cfg.BaseURL + g.cfg.AnalyzePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", g.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debugf("[MLClient] POST %s", url)
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s gateway: %w", g.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// health queries the health endpoint under its own short timeout. Any
// transport error, non-200 status or undecodable body is unhealthy.
func (g gateway) health(ctx context.Context) (*HealthStatus, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.HealthTimeout)
	defer cancel()

	url := g.cfg.BaseURL + g.cfg.HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warnf("[MLClient] %s health request: %v", g.name, err)
		return nil, false
	}

	resp, err := g.http.Do(req)
	if err != nil {
		log.Warnf("[MLClient] %s gateway unreachable: %v", g.name, err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("[MLClient] %s gateway health returned %d", g.name, resp.StatusCode)
		return nil, false
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		log.Warnf("[MLClient] %s gateway health body malformed: %v", g.name, err)
		return nil, false
	}
	return &status, status.ModelLoaded
}

// Score is a probability the gateways may encode as a JSON number or as a
// decimal string.
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(raw) == 0 || string(raw) == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid score %s: %w", data, err)
	}
	*s = Score(v)
	return nil
}

func (s Score) Float() float64 {
	return float64(s)
}
