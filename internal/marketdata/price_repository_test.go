package marketdata_test

import (
	"testing"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
	testhelpers "github.com/aristath/regret/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPriceRepo(t *testing.T) *marketdata.PriceRepository {
	t.Helper()
	db := testhelpers.NewTestDB(t, "history")
	repo, err := marketdata.NewPriceRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestPriceRepository_UpsertAndGetDailyBars(t *testing.T) {
	repo := newPriceRepo(t)

	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-05", 12),
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("MSFT", "2024-09-02", 400),
	}
	require.NoError(t, repo.UpsertBars(bars))

	got, err := repo.GetDailyBars("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testhelpers.MustDate("2024-09-02"), got[0].Date)
	assert.Equal(t, testhelpers.MustDate("2024-09-05"), got[1].Date)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, domain.CurrencyEUR, got[0].Currency)

	// Upsert on the same (symbol, date) replaces the row.
	updated := testhelpers.Bar("AAPL", "2024-09-02", 11)
	require.NoError(t, repo.UpsertBars([]marketdata.PriceBar{updated}))

	got, err = repo.GetDailyBars("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 11, got[0].Close, 1e-9)
}

func TestPriceRepository_GetDailyBarsWindow(t *testing.T) {
	repo := newPriceRepo(t)

	require.NoError(t, repo.UpsertBars([]marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-05", 12),
		testhelpers.Bar("AAPL", "2024-09-10", 14),
	}))

	got, err := repo.GetDailyBars("AAPL",
		testhelpers.MustDate("2024-09-03"), testhelpers.MustDate("2024-09-09"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, testhelpers.MustDate("2024-09-05"), got[0].Date)
}

func TestPriceRepository_GetPriceSeries(t *testing.T) {
	repo := newPriceRepo(t)

	require.NoError(t, repo.UpsertBars([]marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-05", 12),
	}))

	series, err := repo.GetPriceSeries("AAPL", time.Time{}, time.Time{}, marketdata.FieldClose)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.InDelta(t, 10, series[testhelpers.MustDate("2024-09-02")], 1e-9)
	assert.InDelta(t, 12, series[testhelpers.MustDate("2024-09-05")], 1e-9)
}

func TestPriceRepository_GetLatestPrice(t *testing.T) {
	repo := newPriceRepo(t)

	_, err := repo.GetLatestPrice("AAPL", marketdata.FieldClose)
	require.ErrorIs(t, err, domain.ErrMissingPrice)

	require.NoError(t, repo.UpsertBars([]marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-05", 12),
	}))

	price, err := repo.GetLatestPrice("AAPL", marketdata.FieldClose)
	require.NoError(t, err)
	assert.InDelta(t, 12, price, 1e-9)
}
