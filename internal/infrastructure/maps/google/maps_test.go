package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.RetryMaxBackoff = time.Millisecond
	return resilience.NewExecutor(cfg)
}

func TestGeocodeSendsRegionAndReturnsFirstMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "Studio Babelsberg, Potsdam", r.URL.Query().Get("address"))
		assert.Equal(t, "de", r.URL.Query().Get("region"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"formatted_address":"August-Bebel-Straße 26-53, 14482 Potsdam, Germany","geometry":{"location":{"lat":52.38,"lng":13.12}}},
			{"formatted_address":"other"}]}`))
	}))
	defer server.Close()

	geo := NewGeocoder(New(server.URL, "k", 0, fastExecutor()))
	res, err := geo.Geocode(context.Background(), "Studio Babelsberg, Potsdam", "DE")
	require.NoError(t, err)
	assert.Equal(t, "August-Bebel-Straße 26-53, 14482 Potsdam, Germany", res.FormattedAddress)
	assert.InDelta(t, 52.38, res.Lat, 1e-9)
}

func TestGeocodeZeroResultsIsNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	geo := NewGeocoder(New(server.URL, "k", 0, fastExecutor()))
	_, err := geo.Geocode(context.Background(), "nowhere", "")
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOverQueryLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Berlin"}]}`))
	}))
	defer server.Close()

	geo := NewGeocoder(New(server.URL, "k", 0, fastExecutor()))
	res, err := geo.Geocode(context.Background(), "Berlin", "")
	require.NoError(t, err)
	assert.Equal(t, "Berlin", res.FormattedAddress)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequestDeniedIsConfigurationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))
	}))
	defer server.Close()

	geo := NewGeocoder(New(server.URL, "k", 0, fastExecutor()))
	_, err := geo.Geocode(context.Background(), "Berlin", "")
	assert.True(t, domain.IsKind(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "API key is invalid")
}

func TestMissingKeySkipsNetwork(t *testing.T) {
	_, err := NewDirections(New("http://127.0.0.1:1", "", 0, nil)).RouteMeters(context.Background(), "a", "a", nil)
	assert.True(t, domain.IsKind(err, domain.ErrConfiguration))
}

func TestRouteMetersSumsLegs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Base", q.Get("origin"))
		assert.Equal(t, "Base", q.Get("destination"))
		assert.Equal(t, "Set A|Set B", q.Get("waypoints"))
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"legs":[
			{"distance":{"value":12000}},{"distance":{"value":5650}},{"distance":{"value":31000}}]}]}`))
	}))
	defer server.Close()

	dir := NewDirections(New(server.URL, "k", 0, fastExecutor()))
	meters, err := dir.RouteMeters(context.Background(), "Base", "Base", []string{"Set A", "Set B"})
	require.NoError(t, err)
	assert.InDelta(t, 48650, meters, 1e-9)
}

func TestRouteNotFoundWaypoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND","routes":[]}`))
	}))
	defer server.Close()

	_, err := NewDirections(New(server.URL, "k", 0, fastExecutor())).RouteMeters(context.Background(), "a", "b", []string{"??"})
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
}
