package simulation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Simulator values lot sets against price series
type Simulator struct {
	log zerolog.Logger
}

// NewSimulator creates a new simulator
func NewSimulator(log zerolog.Logger) *Simulator {
	return &Simulator{log: log.With().Str("service", "simulator").Logger()}
}

// SimulateUnrealizedSeries produces the what-if unrealized P&L series for
// the requested lots and window. Unlike the ledger rebuild, nothing is
// "closed" here - every active lot participates in every valuation point.
// A ticker with no active lots yields an empty series, not an error.
func (s *Simulator) SimulateUnrealizedSeries(src marketdata.PriceSource, store *LotStore, req Request) (*Series, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	lots := store.ListLots(ListOptions{Ticker: req.Ticker, LotIDs: req.LotIDs, Types: req.Types})
	totalShares := 0.0
	for _, lot := range lots {
		totalShares += lot.Shares
	}
	if len(lots) == 0 || totalShares == 0 {
		return &Series{}, nil
	}

	field := req.PriceField
	if field == "" {
		field = marketdata.FieldClose
	}
	policy := req.Policy
	if policy == "" {
		policy = SnapPrevTradingDay
	}

	// One simulation call fetches each range at most once.
	cached := marketdata.NewCachingPriceSource(src)
	priceSeries, err := cached.GetPriceSeries(req.Ticker, req.From, req.To, field)
	if err != nil {
		return nil, err
	}
	if len(priceSeries) == 0 {
		return &Series{}, nil
	}

	series := &Series{}
	for _, date := range buildDateWindow(req, priceSeries) {
		sellPrice, ok := resolvePrice(date, priceSeries, policy)
		if !ok {
			continue
		}
		series.Rows = append(series.Rows, s.valueAt(date, sellPrice, lots, totalShares, req))
	}
	series.Summary = summarize(series.Rows)

	s.log.Debug().Str("ticker", req.Ticker).Int("rows", len(series.Rows)).
		Str("cost_mode", string(req.CostMode)).Msg("Simulated unrealized series")
	return series, nil
}

// valueAt computes one valuation row at the given sell price.
func (s *Simulator) valueAt(date time.Time, sellPrice float64, lots []Lot, totalShares float64, req Request) SeriesRow {
	costValue := req.BuyFee
	for _, lot := range lots {
		costValue += lot.BuyPrice * lot.Shares
	}

	var unrealized float64
	if req.CostMode == CostAverage {
		avgCost := costValue / totalShares
		unrealized = (sellPrice - avgCost) * totalShares
	} else {
		// FIFO/LIFO: all active lots participate simultaneously, so the
		// aggregate is the same either way; ordering only matters for the
		// proportional override below.
		for _, lot := range lots {
			unrealized += (sellPrice - lot.BuyPrice) * lot.Shares
		}
		unrealized -= req.BuyFee
	}

	sharesConsidered := totalShares
	if req.OverrideShares > 0 && req.OverrideShares != totalShares {
		scale := req.OverrideShares / totalShares
		unrealized *= scale
		costValue *= scale
		sharesConsidered = req.OverrideShares
	}

	unrealized -= req.SellFee
	if req.TaxRate > 0 {
		taxable := math.Max(0, unrealized)
		unrealized = taxable*(1-req.TaxRate) + math.Min(0, unrealized)
	}

	pct := 0.0
	if costValue != 0 {
		pct = unrealized / costValue
	}

	return SeriesRow{
		Date:            date,
		Ticker:          req.Ticker,
		SellPrice:       sellPrice,
		TotalShares:     sharesConsidered,
		CostValue:       costValue,
		MarketValue:     sellPrice * sharesConsidered,
		UnrealizedValue: unrealized,
		UnrealizedPct:   pct,
	}
}

// ComputeTargetFromPoint inverts profit = (price - avg_cost) * shares to
// find the sell price that achieves the target profit over the selected
// lots. Zero open shares cannot be solved for and fail with
// ErrNoOpenShares.
func (s *Simulator) ComputeTargetFromPoint(store *LotStore, ticker string, targetProfit float64, opts ListOptions) (*TargetResult, error) {
	opts.Ticker = ticker
	lots := store.ListLots(opts)

	totalShares := 0.0
	costValue := 0.0
	for _, lot := range lots {
		totalShares += lot.Shares
		costValue += lot.BuyPrice * lot.Shares
	}
	if totalShares == 0 {
		return nil, fmt.Errorf("ticker %s: %w", ticker, domain.ErrNoOpenShares)
	}

	avgCost := costValue / totalShares
	return &TargetResult{
		Ticker:       ticker,
		TotalShares:  totalShares,
		AvgCost:      avgCost,
		TargetProfit: targetProfit,
		TargetPrice:  avgCost + targetProfit/totalShares,
	}, nil
}

func validateRequest(req Request) error {
	if req.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if req.LastNTradingDays < 0 {
		return fmt.Errorf("last_n_trading_days must be positive")
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.From.After(req.To) {
		return fmt.Errorf("from cannot be after to")
	}
	if req.From.IsZero() && req.LastNTradingDays == 0 && len(req.Dates) == 0 {
		return fmt.Errorf("provide from/to, last_n_trading_days, or dates")
	}
	switch req.CostMode {
	case "", CostFIFO, CostLIFO, CostAverage:
	default:
		return fmt.Errorf("unknown cost mode %q", req.CostMode)
	}
	return nil
}

// buildDateWindow resolves the valuation dates for the request.
func buildDateWindow(req Request, priceSeries map[time.Time]float64) []time.Time {
	if len(req.Dates) > 0 {
		seen := make(map[time.Time]bool, len(req.Dates))
		var dates []time.Time
		for _, d := range req.Dates {
			day := domain.Day(d)
			if !seen[day] {
				seen[day] = true
				dates = append(dates, day)
			}
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		return dates
	}

	if req.LastNTradingDays > 0 {
		available := make([]time.Time, 0, len(priceSeries))
		for d := range priceSeries {
			available = append(available, d)
		}
		sort.Slice(available, func(i, j int) bool { return available[i].Before(available[j]) })
		if req.LastNTradingDays < len(available) {
			return available[len(available)-req.LastNTradingDays:]
		}
		return available
	}

	to := req.To
	if to.IsZero() {
		to = req.From
	}
	var dates []time.Time
	for d := domain.Day(req.From); !d.After(domain.Day(to)); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// resolvePrice applies the non-trading-day policy to a valuation date.
func resolvePrice(date time.Time, priceSeries map[time.Time]float64, policy NonTradingDayPolicy) (float64, bool) {
	if price, ok := priceSeries[date]; ok {
		return price, true
	}
	if policy == SkipDate {
		return 0, false
	}

	sorted := make([]time.Time, 0, len(priceSeries))
	for d := range priceSeries {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	switch policy {
	case SnapPrevTradingDay:
		for i := len(sorted) - 1; i >= 0; i-- {
			if sorted[i].Before(date) {
				return priceSeries[sorted[i]], true
			}
		}
	case SnapNextTradingDay:
		for _, d := range sorted {
			if d.After(date) {
				return priceSeries[d], true
			}
		}
	}
	return 0, false
}

// summarize reduces the rows to best/worst/latest points, the maximum
// drawdown, and day-over-day change statistics. Nil for an empty series.
func summarize(rows []SeriesRow) *Summary {
	if len(rows) == 0 {
		return nil
	}

	summary := &Summary{
		BestDate:   rows[0].Date,
		BestValue:  rows[0].UnrealizedValue,
		WorstDate:  rows[0].Date,
		WorstValue: rows[0].UnrealizedValue,
	}
	for _, row := range rows {
		if row.UnrealizedValue > summary.BestValue {
			summary.BestDate, summary.BestValue = row.Date, row.UnrealizedValue
		}
		if row.UnrealizedValue < summary.WorstValue {
			summary.WorstDate, summary.WorstValue = row.Date, row.UnrealizedValue
		}
		if !row.Date.Before(summary.LatestDate) {
			summary.LatestDate, summary.LatestValue = row.Date, row.UnrealizedValue
		}
	}

	peak := math.Inf(-1)
	maxDrawdown := 0.0
	for _, row := range rows {
		if math.IsInf(peak, -1) {
			peak = row.UnrealizedValue
		}
		peak = math.Max(peak, row.UnrealizedValue)
		if peak != 0 {
			// Abs keeps the sign right when the whole series is under water.
			drawdown := (row.UnrealizedValue - peak) / math.Abs(peak) * 100
			maxDrawdown = math.Min(maxDrawdown, drawdown)
		}
	}
	summary.MaxDrawdownPct = maxDrawdown

	if len(rows) > 1 {
		changes := make([]float64, 0, len(rows)-1)
		for i := 1; i < len(rows); i++ {
			changes = append(changes, rows[i].UnrealizedValue-rows[i-1].UnrealizedValue)
		}
		summary.MeanDailyChange = stat.Mean(changes, nil)
		summary.StdDevDailyChange = stat.StdDev(changes, nil)
	}
	return summary
}
