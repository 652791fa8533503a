package sink_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricebot/scraperd/internal/scraper"
	"github.com/pricebot/scraperd/internal/sink"
	"github.com/pricebot/scraperd/internal/sink/memory"
)

// queryless accepts appends but cannot serve reads, like the jsonl file.
type queryless struct {
	appended int
}

func (q *queryless) Append(context.Context, string, scraper.ScrapeOutcome) error {
	q.appended++
	return nil
}

func (q *queryless) Query(context.Context, string) ([]scraper.ScrapeOutcome, error) {
	return nil, sink.ErrQueryUnsupported
}

func TestFanoutAppendsToAllBackends(t *testing.T) {
	t.Parallel()

	file := &queryless{}
	store := memory.New()
	fan := sink.NewFanout(file, store)

	outcome := scraper.ScrapeOutcome{URL: "https://shop.example/p/1", Success: true}
	require.NoError(t, fan.Append(context.Background(), "job-1", outcome))

	assert.Equal(t, 1, file.appended)
	stored, err := store.Query(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, []scraper.ScrapeOutcome{outcome}, stored)
}

func TestFanoutQuerySkipsQuerylessBackends(t *testing.T) {
	t.Parallel()

	store := memory.New()
	fan := sink.NewFanout(&queryless{}, store)

	outcome := scraper.ScrapeOutcome{URL: "https://shop.example/p/1", Success: false, Error: "404"}
	require.NoError(t, fan.Append(context.Background(), "job-1", outcome))

	got, err := fan.Query(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, []scraper.ScrapeOutcome{outcome}, got)
}

func TestFanoutAppendFailsIfAnyBackendFails(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.FailNextAppends(1)
	fan := sink.NewFanout(store, memory.New())

	err := fan.Append(context.Background(), "job-1", scraper.ScrapeOutcome{URL: "https://x/1"})
	assert.Error(t, err)
}

func TestFanoutQueryWithoutReadableBackend(t *testing.T) {
	t.Parallel()

	fan := sink.NewFanout(&queryless{})
	_, err := fan.Query(context.Background(), "job-1")
	assert.True(t, errors.Is(err, sink.ErrQueryUnsupported))
}
