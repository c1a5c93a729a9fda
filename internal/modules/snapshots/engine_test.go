package snapshots

import (
	"context"
	"testing"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
	testhelpers "github.com/aristath/regret/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eurFX() *marketdata.InMemoryFXSource {
	return marketdata.NewInMemoryFXSource()
}

func baseRequest(txs []domain.Transaction, bars []marketdata.PriceBar) Request {
	return Request{
		Symbol:       "AAPL",
		Transactions: txs,
		Bars:         bars,
		FX:           eurFX(),
		BaseCurrency: domain.CurrencyEUR,
		Strategy:     domain.MatchFIFO,
	}
}

func TestEngine_WorkedScenario(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 5), // cost/share 10.05
		testhelpers.Buy("AAPL", "2024-09-05", 50, 12, 5),  // cost/share 12.10
	}
	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-05", 12),
		testhelpers.Bar("AAPL", "2024-09-10", 14),
	}

	req := baseRequest(txs, bars)
	req.SellCosts = SellCostModel{FeeFlat: 5}

	rows, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	last := rows[2]
	assert.Equal(t, testhelpers.MustDate("2024-09-10"), last.Date)
	assert.InDelta(t, 150, last.SharesOpen, 1e-9)
	assert.InDelta(t, 2100, last.MarketValueBase, 1e-9)
	assert.InDelta(t, 1610, last.CostBasisOpenBase, 1e-9)
	assert.InDelta(t, 490, last.UnrealizedPLBase, 1e-9)
	assert.InDelta(t, 0, last.RealizedPLToDateBase, 1e-9)
	assert.InDelta(t, 485, last.HypoLiquidationPLBase, 1e-9)
	assert.InDelta(t, 485, last.DayOpportunityBase, 1e-9)
	assert.Equal(t, 2, last.LotCount)
	assert.InDelta(t, 1, last.FxRate, 1e-9)
	assert.InDelta(t, 14, last.PriceBase, 1e-9)
}

func TestEngine_ZeroPositionIdentity(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 0),
		testhelpers.Sell("AAPL", "2024-09-05", 100, 12, 0),
	}
	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-05", 12),
		testhelpers.Bar("AAPL", "2024-09-10", 14),
	}

	req := baseRequest(txs, bars)
	req.SellCosts = SellCostModel{FeeFlat: 5}

	rows, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Flat position: hypothetical liquidation equals realized, the day
	// offers no opportunity, and the sell-cost model never applies.
	flat := rows[2]
	assert.InDelta(t, 0, flat.SharesOpen, 1e-9)
	assert.InDelta(t, 200, flat.RealizedPLToDateBase, 1e-9)
	assert.InDelta(t, flat.RealizedPLToDateBase, flat.HypoLiquidationPLBase, 1e-9)
	assert.InDelta(t, 0, flat.DayOpportunityBase, 1e-9)
}

func TestEngine_PeakMonotonicityAndDrawdown(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 0),
	}
	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-03", 15), // peak
		testhelpers.Bar("AAPL", "2024-09-04", 12), // decline
	}

	rows, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), baseRequest(txs, bars))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i].PeakHypoPLToDateBase, rows[i-1].PeakHypoPLToDateBase)
	}

	// Day 2: hypo 500 is the peak; day 3: hypo 200, drawdown (500-200)/500.
	assert.InDelta(t, 500, rows[1].PeakHypoPLToDateBase, 1e-9)
	assert.InDelta(t, 0, rows[1].DrawdownFromPeakPct, 1e-9)
	assert.InDelta(t, 500, rows[2].PeakHypoPLToDateBase, 1e-9)
	assert.InDelta(t, 0.6, rows[2].DrawdownFromPeakPct, 1e-9)

	// Unrealized is market value minus open cost basis on every row.
	for _, row := range rows {
		assert.InDelta(t, row.MarketValueBase-row.CostBasisOpenBase, row.UnrealizedPLBase, 1e-9)
	}
}

func TestEngine_MissingPriceOnTransactionDay(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 0),
		testhelpers.Sell("AAPL", "2024-09-03", 50, 12, 0), // no bar this day
	}
	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-04", 12),
	}

	_, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), baseRequest(txs, bars))
	require.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestEngine_EmptyBarSeriesIsFatal(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 0),
	}

	// A journaled symbol whose price ingestion produced nothing must not
	// pass silently as an empty series.
	_, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), baseRequest(txs, nil))
	require.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestEngine_WindowBeforeFirstTransactionIsFatal(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 0),
	}
	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
	}

	req := baseRequest(txs, bars)
	req.To = testhelpers.MustDate("2024-09-01")

	_, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestEngine_MissingFxRateIsFatal(t *testing.T) {
	tx := testhelpers.Buy("AAPL", "2024-09-02", 10, 100, 0)
	tx.Currency = domain.CurrencyUSD

	bar := testhelpers.Bar("AAPL", "2024-09-02", 100)
	bar.Currency = domain.CurrencyUSD

	req := baseRequest([]domain.Transaction{tx}, []marketdata.PriceBar{bar})
	// No USD->EUR rates registered.

	_, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrMissingFxRate)
}

func TestEngine_RealizedCrystallizesAtSaleDateRate(t *testing.T) {
	buy := testhelpers.Buy("AAPL", "2024-09-02", 10, 100, 0)
	buy.Currency = domain.CurrencyUSD
	sell := testhelpers.Sell("AAPL", "2024-09-05", 10, 100, 0)
	sell.Currency = domain.CurrencyUSD

	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 100),
		testhelpers.Bar("AAPL", "2024-09-05", 100),
	}
	for i := range bars {
		bars[i].Currency = domain.CurrencyUSD
	}

	fx := marketdata.NewInMemoryFXSource()
	fx.SetRate(testhelpers.MustDate("2024-09-02"), domain.CurrencyUSD, domain.CurrencyEUR, 0.9)
	fx.SetRate(testhelpers.MustDate("2024-09-05"), domain.CurrencyUSD, domain.CurrencyEUR, 0.8)

	req := baseRequest([]domain.Transaction{buy, sell}, bars)
	req.FX = fx

	rows, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Cost basis fixed at the buy-date rate, proceeds at the sale-date
	// rate: 10*100*0.8 - 10*100*0.9 = -100 EUR, a pure FX loss.
	assert.InDelta(t, -100, rows[1].RealizedPLToDateBase, 1e-9)
	assert.InDelta(t, 0, rows[1].SharesOpen, 1e-9)
}

func TestEngine_TaxOnPositiveHypoGains(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 0),
	}
	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
		testhelpers.Bar("AAPL", "2024-09-03", 15),
	}

	req := baseRequest(txs, bars)
	req.SellCosts = SellCostModel{TaxRate: 0.25}

	rows, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Net gain 500 taxed at 25%.
	assert.InDelta(t, 375, rows[1].HypoLiquidationPLBase, 1e-9)
}

func TestEngine_Cancellation(t *testing.T) {
	txs := []domain.Transaction{
		testhelpers.Buy("AAPL", "2024-09-02", 100, 10, 0),
	}
	bars := []marketdata.PriceBar{
		testhelpers.Bar("AAPL", "2024-09-02", 10),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := NewEngine(zerolog.Nop()).ComputeSnapshots(ctx, baseRequest(txs, bars))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, rows)
}

func TestEngine_EmptyTransactions(t *testing.T) {
	rows, err := NewEngine(zerolog.Nop()).ComputeSnapshots(context.Background(), baseRequest(nil, nil))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestRegretAtToday(t *testing.T) {
	tests := []struct {
		name   string
		series []domain.DailySnapshot
		want   float64
	}{
		{"empty series", nil, 0},
		{
			"below peak",
			[]domain.DailySnapshot{
				{HypoLiquidationPLBase: 500, PeakHypoPLToDateBase: 500},
				{HypoLiquidationPLBase: 200, PeakHypoPLToDateBase: 500},
			},
			300,
		},
		{
			"at peak",
			[]domain.DailySnapshot{
				{HypoLiquidationPLBase: 500, PeakHypoPLToDateBase: 500},
			},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RegretAtToday(tt.series), 1e-9)
		})
	}
}

func TestSellCostModel_NetProceeds(t *testing.T) {
	tests := []struct {
		name  string
		model SellCostModel
		mv    float64
		want  float64
	}{
		{"no costs", SellCostModel{}, 1000, 1000},
		{"bps only", SellCostModel{FeeBps: 10}, 1000, 999},
		{"flat only", SellCostModel{FeeFlat: 5}, 1000, 995},
		{"floored at zero", SellCostModel{FeeFlat: 50}, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.model.NetProceeds(tt.mv), 1e-9)
		})
	}
}
