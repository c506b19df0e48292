package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/solarfleet/control-plane/internal/domain/sim"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// SimActionResult is the outcome of a carrier-side SIM action.
type SimActionResult struct {
	Succeeded bool
	ErrorMsg  string
}

// SimProvider performs a carrier-side action against a SIM by ICCID.
type SimProvider interface {
	Perform(ctx context.Context, iccid string, action sim.ActionType) (SimActionResult, error)
}

// HTTPSimProvider posts the action to a configured carrier bridge;
// with no base URL it reports success without making a network call,
// matching the reference's degraded-mode posture for optional
// integrations.
type HTTPSimProvider struct {
	client  *http.Client
	baseURL string
	log     *logger.Logger
}

// NewHTTPSimProvider constructs a SIM provider. baseURL may be empty.
func NewHTTPSimProvider(client *http.Client, baseURL string, log *logger.Logger) *HTTPSimProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("sim-http-provider")
	}
	return &HTTPSimProvider{client: client, baseURL: baseURL, log: log}
}

// Perform implements SimProvider.
func (p *HTTPSimProvider) Perform(ctx context.Context, iccid string, action sim.ActionType) (SimActionResult, error) {
	if p.baseURL == "" {
		p.log.WithField("iccid", iccid).WithField("action", action).Debug("sim base url unset, treating action as succeeded")
		return SimActionResult{Succeeded: true}, nil
	}

	body, err := json.Marshal(map[string]string{"iccid": iccid, "action": string(action)})
	if err != nil {
		return SimActionResult{}, err
	}

	url := strings.TrimRight(p.baseURL, "/") + "/actions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return SimActionResult{}, fmt.Errorf("build sim action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return SimActionResult{Succeeded: false, ErrorMsg: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return SimActionResult{Succeeded: false, ErrorMsg: fmt.Sprintf("carrier returned status %d", resp.StatusCode)}, nil
	}
	return SimActionResult{Succeeded: true}, nil
}
