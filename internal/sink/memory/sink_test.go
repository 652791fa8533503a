package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricebot/scraperd/internal/scraper"
)

func TestAppendAndQueryPerJob(t *testing.T) {
	t.Parallel()

	s := New()
	a := scraper.ScrapeOutcome{URL: "https://a.example/p/1", Success: true}
	b := scraper.ScrapeOutcome{URL: "https://b.example/p/1", Success: false, Error: "404"}
	require.NoError(t, s.Append(context.Background(), "job-a", a))
	require.NoError(t, s.Append(context.Background(), "job-b", b))

	got, err := s.Query(context.Background(), "job-a")
	require.NoError(t, err)
	assert.Equal(t, []scraper.ScrapeOutcome{a}, got)

	got, err = s.Query(context.Background(), "job-b")
	require.NoError(t, err)
	assert.Equal(t, []scraper.ScrapeOutcome{b}, got)
}

func TestFailNextAppends(t *testing.T) {
	t.Parallel()

	s := New()
	s.FailNextAppends(1)
	outcome := scraper.ScrapeOutcome{URL: "https://a.example/p/1", Success: true}

	assert.Error(t, s.Append(context.Background(), "job-a", outcome))
	require.NoError(t, s.Append(context.Background(), "job-a", outcome))

	got, err := s.Query(context.Background(), "job-a")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
