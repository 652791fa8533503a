package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricebot/scraperd/internal/discovery/remote"
	"github.com/pricebot/scraperd/internal/scraper"
)

func TestDiscoverReturnsServiceURLs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/discover", r.URL.Path)

		var req struct {
			Domains []string `json:"domains"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"shop.example"}, req.Domains)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"urls":["https://shop.example/p/1","https://shop.example/p/2"]}`))
	}))
	defer srv.Close()

	d, err := remote.New(remote.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	urls, err := d.Discover(context.Background(), []string{"shop.example"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example/p/1", "https://shop.example/p/2"}, urls)
}

func TestDiscoverNonOKStatusIsDiscoveryError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "sitemap unreachable", http.StatusBadGateway)
	}))
	defer srv.Close()

	d, err := remote.New(remote.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = d.Discover(context.Background(), []string{"shop.example"})
	var discErr *scraper.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Contains(t, discErr.Reason, "502")
}

func TestDiscoverUnreachableServiceIsDiscoveryError(t *testing.T) {
	t.Parallel()

	d, err := remote.New(remote.Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = d.Discover(context.Background(), []string{"shop.example"})
	var discErr *scraper.DiscoveryError
	require.ErrorAs(t, err, &discErr)
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := remote.New(remote.Config{})
	assert.Error(t, err)
}
