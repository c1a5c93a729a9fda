// Package snapshots implements the daily snapshot engine: a one-pass fold
// over trading days that turns a symbol's lot trajectory plus a daily price
// series into the per-day regret metrics (hypothetical liquidation P&L,
// day opportunity, running peak, drawdown).
package snapshots

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
	"github.com/aristath/regret/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// SellCostModel estimates the cost of hypothetically liquidating a
// position: basis points of notional plus a flat per-trade fee, with an
// optional tax rate applied to positive net gains.
type SellCostModel struct {
	FeeBps  float64 `json:"fee_bps"`
	FeeFlat float64 `json:"fee_flat"`
	TaxRate float64 `json:"tax_rate"`
}

// NetProceeds returns the estimated proceeds of selling marketValue worth
// of shares, floored at zero.
func (m SellCostModel) NetProceeds(marketValue float64) float64 {
	proceeds := marketValue*(1-m.FeeBps/10000) - m.FeeFlat
	if proceeds < 0 {
		return 0
	}
	return proceeds
}

// Request describes one snapshot computation for one symbol.
type Request struct {
	Symbol string
	From   time.Time // zero = first transaction date
	To     time.Time // zero = last available bar

	// Transactions is the symbol's full ordered history, including rows
	// before From - the position must be built up from the beginning.
	Transactions []domain.Transaction

	// Bars is the daily price series covering the window, ascending.
	Bars []marketdata.PriceBar

	FX           marketdata.FXSource
	BaseCurrency domain.Currency
	SellCosts    SellCostModel

	Strategy               domain.MatchingStrategy
	AllowNegativePositions bool
}

// Engine computes daily snapshot series
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new snapshot engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("service", "snapshot_engine").Logger()}
}

// ComputeSnapshots produces the full ordered snapshot series for the
// request window. The computation is all-or-nothing: any missing price or
// FX rate, bad transaction ordering, or cancellation returns an error and
// no rows, so consumers can never observe a silently truncated series.
//
// Rows are emitted from the first transaction date forward; fields before
// that date are undefined and no row exists for them.
func (e *Engine) ComputeSnapshots(ctx context.Context, req Request) ([]domain.DailySnapshot, error) {
	if len(req.Transactions) == 0 {
		return nil, nil
	}
	if req.FX == nil {
		return nil, fmt.Errorf("fx source is required")
	}

	// Everything downstream of here works in base currency. Each
	// transaction converts at its own date's rate, so realized P&L stays
	// crystallized at the rate of the sale, not the rate of the snapshot
	// day.
	baseTxs, err := e.convertTransactions(req)
	if err != nil {
		return nil, err
	}

	barByDay := make(map[time.Time]marketdata.PriceBar, len(req.Bars))
	var barDays []time.Time
	for _, bar := range req.Bars {
		day := domain.Day(bar.Date)
		if _, dup := barByDay[day]; !dup {
			barDays = append(barDays, day)
		}
		barByDay[day] = bar
	}
	sort.Slice(barDays, func(i, j int) bool { return barDays[i].Before(barDays[j]) })

	from := domain.Day(req.Transactions[0].Timestamp)
	if !req.From.IsZero() && domain.Day(req.From).After(from) {
		from = domain.Day(req.From)
	}
	// A journaled symbol with no usable bars is the worst missing-price
	// case and must fail loudly, not produce an empty series.
	to := req.To
	if to.IsZero() {
		if len(barDays) == 0 {
			return nil, fmt.Errorf("symbol %s has no price bars: %w", req.Symbol, domain.ErrMissingPrice)
		}
		to = barDays[len(barDays)-1]
	}
	to = domain.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("symbol %s: no bars in window ending %s: %w",
			req.Symbol, to.Format("2006-01-02"), domain.ErrMissingPrice)
	}

	// A transaction inside the window on a day without a bar means the
	// price series is incomplete; forward-filling here would corrupt the
	// peak/drawdown state for every later date.
	for _, tx := range baseTxs {
		day := domain.Day(tx.Timestamp)
		if day.Before(from) || day.After(to) {
			continue
		}
		if _, ok := barByDay[day]; !ok {
			return nil, fmt.Errorf("transaction %s on %s: %w", tx.ID, day.Format("2006-01-02"), domain.ErrMissingPrice)
		}
	}

	book, err := ledger.NewBook(req.Symbol, ledger.RebuildOptions{
		Strategy:               req.Strategy,
		AllowNegativePositions: req.AllowNegativePositions,
	})
	if err != nil {
		return nil, err
	}

	txIdx := 0
	applyThrough := func(day time.Time) error {
		for txIdx < len(baseTxs) && !domain.Day(baseTxs[txIdx].Timestamp).After(day) {
			if err := book.Apply(baseTxs[txIdx]); err != nil {
				return err
			}
			txIdx++
		}
		return nil
	}

	// Build up the position for days before the window; those days need no
	// prices because no rows are emitted for them.
	if err := applyThrough(from.AddDate(0, 0, -1)); err != nil {
		return nil, err
	}

	var snapshots []domain.DailySnapshot
	peak := math.Inf(-1)

	for _, day := range barDays {
		if day.Before(from) {
			continue
		}
		if day.After(to) {
			break
		}
		// Cancellation is polled once per iteration; a cancelled run
		// discards all partial results.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := applyThrough(day); err != nil {
			return nil, err
		}

		bar := barByDay[day]
		rate, err := req.FX.GetRate(day, bar.Currency, req.BaseCurrency)
		if err != nil {
			return nil, err
		}
		priceBase := bar.AdjClose * rate

		sharesOpen := book.SharesOpen()
		costBasisOpen := book.CostBasisOpen()
		if sharesOpen < 0 {
			sharesOpen = 0
			costBasisOpen = 0
		}

		realized := book.RealizedTotal()
		marketValue := sharesOpen * priceBase
		unrealized := marketValue - costBasisOpen

		var hypoPL, dayOpportunity float64
		if sharesOpen == 0 {
			// Flat position: liquidating changes nothing.
			hypoPL = realized
			dayOpportunity = 0
		} else {
			net := req.SellCosts.NetProceeds(marketValue) - costBasisOpen
			if net > 0 && req.SellCosts.TaxRate > 0 {
				net *= 1 - req.SellCosts.TaxRate
			}
			hypoPL = realized + net
			dayOpportunity = math.Max(0, hypoPL-realized)
		}

		if math.IsInf(peak, -1) {
			peak = hypoPL
		} else {
			peak = math.Max(peak, hypoPL)
		}

		drawdown := 0.0
		if peak != 0 {
			drawdown = (peak - hypoPL) / math.Abs(peak)
		}

		snapshots = append(snapshots, domain.DailySnapshot{
			Date:                  day,
			Symbol:                req.Symbol,
			SharesOpen:            sharesOpen,
			MarketValueBase:       marketValue,
			CostBasisOpenBase:     costBasisOpen,
			UnrealizedPLBase:      unrealized,
			RealizedPLToDateBase:  realized,
			HypoLiquidationPLBase: hypoPL,
			DayOpportunityBase:    dayOpportunity,
			PeakHypoPLToDateBase:  peak,
			DrawdownFromPeakPct:   drawdown,
			FxRate:                rate,
			PriceBase:             priceBase,
			LotCount:              book.LotCount(),
		})
	}

	e.log.Debug().
		Str("symbol", req.Symbol).
		Int("rows", len(snapshots)).
		Msg("Computed snapshot series")
	return snapshots, nil
}

// convertTransactions rewrites each monetary transaction into base
// currency at its own date's rate.
func (e *Engine) convertTransactions(req Request) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, len(req.Transactions))
	for i, tx := range req.Transactions {
		if tx.Type == domain.TransactionSplit || tx.Currency == req.BaseCurrency || tx.Currency == "" {
			out[i] = tx
			continue
		}
		rate, err := req.FX.GetRate(domain.Day(tx.Timestamp), tx.Currency, req.BaseCurrency)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		tx.Price *= rate
		tx.Fee *= rate
		tx.Tax *= rate
		tx.Currency = req.BaseCurrency
		out[i] = tx
	}
	return out, nil
}

// RegretAtToday returns the regret metric for the latest row of a
// date-ordered series: how far today's hypothetical liquidation P&L sits
// below the best day there ever was. Zero for an empty series.
func RegretAtToday(series []domain.DailySnapshot) float64 {
	if len(series) == 0 {
		return 0
	}
	last := series[len(series)-1]
	return math.Max(0, last.PeakHypoPLToDateBase-last.HypoLiquidationPLBase)
}
