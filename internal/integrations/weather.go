// Package integrations holds the thin HTTP-backed adapters for the
// external services the control plane pulls from: weather, reverse
// geocoding, and SIM-carrier actions. Each degrades to deterministic
// canned data when its base URL is left unconfigured, mirroring the
// teacher's posture for optional outbound integrations.
package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/solarfleet/control-plane/internal/domain/weather"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// WeatherObservation is a single fetched weather reading for a
// coordinate.
type WeatherObservation struct {
	Condition    string
	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
}

// WeatherProvider fetches a current weather observation for a site's
// coordinates.
type WeatherProvider interface {
	Fetch(ctx context.Context, lat, lon float64) (WeatherObservation, error)
}

// HTTPWeatherProvider calls a configured weather API; with no base URL
// it returns a fixed fair-weather observation so the daily pull still
// populates a row rather than failing outright.
type HTTPWeatherProvider struct {
	client  *http.Client
	baseURL string
	log     *logger.Logger
}

// NewHTTPWeatherProvider constructs a weather provider. baseURL may be
// empty, in which case Fetch always returns canned data.
func NewHTTPWeatherProvider(client *http.Client, baseURL string, log *logger.Logger) *HTTPWeatherProvider {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("weather-http-provider")
	}
	return &HTTPWeatherProvider{client: client, baseURL: baseURL, log: log}
}

// Fetch implements WeatherProvider.
func (p *HTTPWeatherProvider) Fetch(ctx context.Context, lat, lon float64) (WeatherObservation, error) {
	if p.baseURL == "" {
		p.log.WithField("lat", lat).WithField("lon", lon).Debug("weather base url unset, returning canned observation")
		return WeatherObservation{Condition: "CLEAR", TemperatureC: 22, HumidityPct: 40, WindSpeedMS: 3}, nil
	}

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return WeatherObservation{}, fmt.Errorf("parse weather base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return WeatherObservation{}, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return WeatherObservation{}, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WeatherObservation{}, fmt.Errorf("unexpected weather status %d", resp.StatusCode)
	}

	var payload struct {
		Condition    string  `json:"condition"`
		TemperatureC float64 `json:"temperatureC"`
		HumidityPct  float64 `json:"humidityPct"`
		WindSpeedMS  float64 `json:"windSpeedMs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return WeatherObservation{}, fmt.Errorf("decode weather response: %w", err)
	}
	return WeatherObservation{
		Condition:    payload.Condition,
		TemperatureC: payload.TemperatureC,
		HumidityPct:  payload.HumidityPct,
		WindSpeedMS:  payload.WindSpeedMS,
	}, nil
}

// ToSnapshot converts an observation into the persisted row for siteID
// on day.
func (o WeatherObservation) ToSnapshot(siteID string, day time.Time) *weather.Snapshot {
	return &weather.Snapshot{
		SiteID:       siteID,
		Date:         day,
		Condition:    o.Condition,
		TemperatureC: o.TemperatureC,
		HumidityPct:  o.HumidityPct,
		WindSpeedMS:  o.WindSpeedMS,
		FetchedAt:    time.Now().UTC(),
	}
}
