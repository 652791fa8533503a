package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricebot/scraperd/internal/scraper"
)

func TestAppendInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithDB(mock)
	outcome := scraper.ScrapeOutcome{
		URL:     "https://shop.example/p/1",
		Success: true,
		Payload: json.RawMessage(`{"price":"9.99"}`),
	}

	mock.ExpectExec("INSERT INTO scrape_results").
		WithArgs("job-1", outcome.URL, true, []byte(`{"price":"9.99"}`), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Append(context.Background(), "job-1", outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendDuplicateRowIsNoOp(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithDB(mock)
	outcome := scraper.ScrapeOutcome{URL: "https://shop.example/p/1", Success: true}

	// ON CONFLICT DO NOTHING reports zero affected rows; not an error.
	mock.ExpectExec("INSERT INTO scrape_results").
		WithArgs("job-1", outcome.URL, true, nil, (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, s.Append(context.Background(), "job-1", outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendPropagatesFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithDB(mock)
	mock.ExpectExec("INSERT INTO scrape_results").
		WithArgs("job-1", "https://shop.example/p/1", false, nil, ptr("410 gone")).
		WillReturnError(errors.New("connection reset"))

	err = s.Append(context.Background(), "job-1", scraper.ScrapeOutcome{
		URL: "https://shop.example/p/1", Success: false, Error: "410 gone",
	})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryReturnsOutcomesInOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithDB(mock)
	rows := pgxmock.NewRows([]string{"url", "success", "payload", "error_text"}).
		AddRow("https://shop.example/p/1", true, []byte(`{"price":"9.99"}`), nil).
		AddRow("https://shop.example/p/2", false, nil, ptr("price selector not found"))

	mock.ExpectQuery("SELECT url, success, payload, error_text").
		WithArgs("job-1").
		WillReturnRows(rows)

	outcomes, err := s.Query(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "https://shop.example/p/1", outcomes[0].URL)
	assert.True(t, outcomes[0].Success)
	assert.JSONEq(t, `{"price":"9.99"}`, string(outcomes[0].Payload))
	assert.False(t, outcomes[1].Success)
	assert.Equal(t, "price selector not found", outcomes[1].Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func ptr(s string) *string { return &s }
