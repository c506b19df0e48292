package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/solarfleet/control-plane/pkg/logger"
)

// Address is a reverse-geocoded coordinate.
type Address struct {
	Line1      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// GeocodeProvider resolves a street address for a coordinate.
type GeocodeProvider interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

// HTTPGeocodeProvider calls a configured reverse-geocoding API; with
// no base URL it returns an empty address rather than failing the
// caller.
type HTTPGeocodeProvider struct {
	client  *http.Client
	baseURL string
	log     *logger.Logger
}

// NewHTTPGeocodeProvider constructs a geocode provider. baseURL may be
// empty.
func NewHTTPGeocodeProvider(client *http.Client, baseURL string, log *logger.Logger) *HTTPGeocodeProvider {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("geocode-http-provider")
	}
	return &HTTPGeocodeProvider{client: client, baseURL: baseURL, log: log}
}

// Reverse implements GeocodeProvider.
func (p *HTTPGeocodeProvider) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	if p.baseURL == "" {
		p.log.WithField("lat", lat).WithField("lon", lon).Debug("geocode base url unset, returning empty address")
		return Address{}, nil
	}

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return Address{}, fmt.Errorf("parse geocode base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Address{}, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Address{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("unexpected geocode status %d", resp.StatusCode)
	}

	var payload struct {
		Line1      string `json:"line1"`
		City       string `json:"city"`
		Region     string `json:"region"`
		PostalCode string `json:"postalCode"`
		Country    string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Address{}, fmt.Errorf("decode geocode response: %w", err)
	}
	return Address{
		Line1:      payload.Line1,
		City:       payload.City,
		Region:     payload.Region,
		PostalCode: payload.PostalCode,
		Country:    payload.Country,
	}, nil
}
