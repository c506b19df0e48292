package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/infrastructure/testutil"
)

func TestHTTPSimProviderDegradesWithoutBaseURL(t *testing.T) {
	p := NewHTTPSimProvider(nil, "", nil)
	result, err := p.Perform(context.Background(), "8901260", "SUSPEND")
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
}

func TestHTTPSimProviderPostsActionToCarrierBridge(t *testing.T) {
	var gotPath string
	srv := testutil.NewHTTPTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "8901260", body["iccid"])
		assert.Equal(t, "SUSPEND", body["action"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPSimProvider(srv.Client(), srv.URL, nil)
	result, err := p.Perform(context.Background(), "8901260", "SUSPEND")
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "/actions", gotPath)
}

func TestHTTPSimProviderReportsCarrierFailureStatus(t *testing.T) {
	srv := testutil.NewHTTPTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPSimProvider(srv.Client(), srv.URL, nil)
	result, err := p.Perform(context.Background(), "8901260", "RESUME")
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.NotEmpty(t, result.ErrorMsg)
}

func TestHTTPWeatherProviderDegradesWithoutBaseURL(t *testing.T) {
	p := NewHTTPWeatherProvider(nil, "", nil)
	obs, err := p.Fetch(context.Background(), 37.77, -122.42)
	require.NoError(t, err)
	assert.Equal(t, "CLEAR", obs.Condition)
}

func TestHTTPWeatherProviderFetchesAndParsesResponse(t *testing.T) {
	srv := testutil.NewHTTPTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "37.77", r.URL.Query().Get("lat"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"condition":    "CLOUDY",
			"temperatureC": 18.5,
			"humidityPct":  62.0,
			"windSpeedMs":  4.2,
		})
	}))
	defer srv.Close()

	p := NewHTTPWeatherProvider(srv.Client(), srv.URL, nil)
	obs, err := p.Fetch(context.Background(), 37.77, -122.42)
	require.NoError(t, err)
	assert.Equal(t, "CLOUDY", obs.Condition)
	assert.Equal(t, 18.5, obs.TemperatureC)
}

func TestHTTPGeocodeProviderDegradesWithoutBaseURL(t *testing.T) {
	p := NewHTTPGeocodeProvider(nil, "", nil)
	addr, err := p.Reverse(context.Background(), 37.77, -122.42)
	require.NoError(t, err)
	assert.Equal(t, Address{}, addr)
}
