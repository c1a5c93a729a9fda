package marketdata_test

import (
	"testing"
	"time"

	"github.com/aristath/regret/internal/marketdata"
	testhelpers "github.com/aristath/regret/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	delegate marketdata.PriceSource
	series   int
	latest   int
}

func (c *countingSource) GetPriceSeries(ticker string, from, to time.Time, field marketdata.PriceField) (map[time.Time]float64, error) {
	c.series++
	return c.delegate.GetPriceSeries(ticker, from, to, field)
}

func (c *countingSource) GetLatestPrice(ticker string, field marketdata.PriceField) (float64, error) {
	c.latest++
	return c.delegate.GetLatestPrice(ticker, field)
}

func TestCachingPriceSource_FetchesEachRangeOnce(t *testing.T) {
	inner := &countingSource{delegate: marketdata.NewInMemoryPriceSource([]marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-05", 12),
	})}
	cached := marketdata.NewCachingPriceSource(inner)

	for i := 0; i < 3; i++ {
		series, err := cached.GetPriceSeries("AAPL", time.Time{}, time.Time{}, marketdata.FieldClose)
		require.NoError(t, err)
		assert.Len(t, series, 2)
	}
	assert.Equal(t, 1, inner.series)

	// A different window is a different cache entry.
	_, err := cached.GetPriceSeries("AAPL",
		testhelpers.MustDate("2024-09-02"), testhelpers.MustDate("2024-09-02"), marketdata.FieldClose)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.series)

	for i := 0; i < 3; i++ {
		price, err := cached.GetLatestPrice("AAPL", marketdata.FieldClose)
		require.NoError(t, err)
		assert.InDelta(t, 12, price, 1e-9)
	}
	assert.Equal(t, 1, inner.latest)
}

func TestCachingPriceSource_CallersCannotMutateCache(t *testing.T) {
	cached := marketdata.NewCachingPriceSource(marketdata.NewInMemoryPriceSource([]marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
	}))

	series, err := cached.GetPriceSeries("AAPL", time.Time{}, time.Time{}, marketdata.FieldClose)
	require.NoError(t, err)
	series[testhelpers.MustDate("2024-09-02")] = 999

	fresh, err := cached.GetPriceSeries("AAPL", time.Time{}, time.Time{}, marketdata.FieldClose)
	require.NoError(t, err)
	assert.InDelta(t, 10, fresh[testhelpers.MustDate("2024-09-02")], 1e-9)
}

func TestPriceBar_Field(t *testing.T) {
	bar := marketdata.PriceBar{Open: 1, High: 2, Low: 3, Close: 4, AdjClose: 5}

	tests := []struct {
		field marketdata.PriceField
		want  float64
	}{
		{marketdata.FieldOpen, 1},
		{marketdata.FieldHigh, 2},
		{marketdata.FieldLow, 3},
		{marketdata.FieldClose, 4},
		{marketdata.FieldAdjClose, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, bar.Field(tt.field), 1e-12, string(tt.field))
	}
}
