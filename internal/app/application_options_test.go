package app

import (
	"context"
	"net/http"
	"testing"

	"github.com/solarfleet/control-plane/internal/config"
	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/domain/sim"
	"github.com/solarfleet/control-plane/internal/integrations"
	"github.com/solarfleet/control-plane/internal/notifications"
)

type fakeWeatherProvider struct{}

func (fakeWeatherProvider) Fetch(ctx context.Context, lat, lon float64) (integrations.WeatherObservation, error) {
	return integrations.WeatherObservation{Condition: "TEST"}, nil
}

type fakeSimProvider struct{}

func (fakeSimProvider) Perform(ctx context.Context, iccid string, action sim.ActionType) (integrations.SimActionResult, error) {
	return integrations.SimActionResult{Succeeded: true}, nil
}

type fakeGeocodeProvider struct{}

func (fakeGeocodeProvider) Reverse(ctx context.Context, lat, lon float64) (integrations.Address, error) {
	return integrations.Address{City: "Testville"}, nil
}

type fakeAdapter struct{ sent int }

func (a *fakeAdapter) Send(ctx context.Context, channel *notification.Channel, event *notification.Event) error {
	a.sent++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTExpiresIn:      0,
		DeviceHMACSecret: "device-secret",
		AlertEvalIntervalMinutes: 5,
		RollupCron:  "0 2 * * *",
		WeatherCron: "0 6 * * *",
	}
}

func TestNew_WithCustomProvidersAndAdapters(t *testing.T) {
	adapter := &fakeAdapter{}
	application, err := New(NewMemoryStores(), testConfig(), nil,
		WithHTTPClient(&http.Client{}),
		WithWeatherProvider(fakeWeatherProvider{}),
		WithSimProvider(fakeSimProvider{}),
		WithGeocodeProvider(fakeGeocodeProvider{}),
		WithNotificationAdapters(map[notification.ChannelType]notifications.Adapter{
			notification.Webhook: adapter,
		}),
		WithoutBackgroundJobs(),
	)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if application.WeatherProvider != (fakeWeatherProvider{}) {
		t.Fatalf("weather provider override not applied")
	}
	if application.SimProvider != (fakeSimProvider{}) {
		t.Fatalf("sim provider override not applied")
	}
	if application.GeocodeProvider != (fakeGeocodeProvider{}) {
		t.Fatalf("geocode provider override not applied")
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(NewMemoryStores(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
