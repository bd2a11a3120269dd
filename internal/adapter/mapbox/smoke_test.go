//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-sim/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	// Suwałki town centre.
	result, err := c.ReverseGeocode(context.Background(), 54.1115, 22.9309)
	require.NoError(t, err)

	assert.Contains(t, result.FormattedAddress, "Suwałki")
	assert.NotEmpty(t, result.PlaceName)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestSmoke_ReverseGeocode_OpenSea(t *testing.T) {
	c := smokeClient(t)

	// The middle of the Baltic has no enclosing place; the client must not fail.
	_, err := c.ReverseGeocode(context.Background(), 55.5, 18.0)
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	// First call: cache miss → real API call.
	r1, err := cached.ReverseGeocode(context.Background(), 53.1325, 23.1688)
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Białystok")

	// Second call: cache hit → no API call.
	r2, err := cached.ReverseGeocode(context.Background(), 53.1325, 23.1688)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
