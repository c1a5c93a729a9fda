// Package simulation implements the what-if unrealized P&L calculator: it
// values arbitrary lot sets (real or purely hypothetical) against a price
// series without touching the committed transaction ledger, and inverts
// profit targets into implied sell prices.
package simulation

import (
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
)

// LotType classifies simulation lots
type LotType string

const (
	LotReal         LotType = "REAL"
	LotHypothetical LotType = "HYPOTHETICAL"
	LotAssumed      LotType = "ASSUMED"
)

// CostMode selects how the lot set is valued
type CostMode string

const (
	CostFIFO    CostMode = "FIFO"
	CostLIFO    CostMode = "LIFO"
	CostAverage CostMode = "AVERAGE_COST"
)

// NonTradingDayPolicy resolves valuation dates without a price
type NonTradingDayPolicy string

const (
	SnapPrevTradingDay NonTradingDayPolicy = "SNAP_PREV_TRADING_DAY"
	SnapNextTradingDay NonTradingDayPolicy = "SNAP_NEXT_TRADING_DAY"
	SkipDate           NonTradingDayPolicy = "SKIP"
)

// LotInput registers a lot with the store
type LotInput struct {
	LotID    string          `json:"lot_id"`
	Ticker   string          `json:"ticker"`
	BuyDate  time.Time       `json:"buy_date"`
	Shares   float64         `json:"shares"`
	BuyPrice float64         `json:"buy_price"`
	Currency domain.Currency `json:"currency,omitempty"`
	Type     LotType         `json:"type"`
	Notes    string          `json:"notes,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

// Lot is a stored simulation lot
type Lot struct {
	LotID     string          `json:"lot_id"`
	Ticker    string          `json:"ticker"`
	BuyDate   time.Time       `json:"buy_date"`
	Shares    float64         `json:"shares"`
	BuyPrice  float64         `json:"buy_price"`
	Currency  domain.Currency `json:"currency,omitempty"`
	Type      LotType         `json:"type"`
	Notes     string          `json:"notes,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListOptions filters lots in the store
type ListOptions struct {
	Ticker string
	LotIDs []string
	Types  []LotType
}

// Request describes one series simulation. Exactly one window form is
// required: explicit From (with optional To), LastNTradingDays, or an
// explicit Dates list.
type Request struct {
	Ticker           string                 `json:"ticker"`
	From             time.Time              `json:"from,omitempty"`
	To               time.Time              `json:"to,omitempty"`
	LastNTradingDays int                    `json:"last_n_trading_days,omitempty"`
	Dates            []time.Time            `json:"dates,omitempty"`
	LotIDs           []string               `json:"lot_ids,omitempty"`
	Types            []LotType              `json:"types,omitempty"`
	CostMode         CostMode               `json:"cost_mode"`
	PriceField       marketdata.PriceField  `json:"price_field,omitempty"`
	Policy           NonTradingDayPolicy    `json:"non_trading_day_policy,omitempty"`
	BuyFee           float64                `json:"buy_fee,omitempty"`
	SellFee          float64                `json:"sell_fee,omitempty"`
	TaxRate          float64                `json:"tax_rate,omitempty"`
	OverrideShares   float64                `json:"override_shares,omitempty"`
}

// SeriesRow is one valuation point
type SeriesRow struct {
	Date            time.Time `json:"date"`
	Ticker          string    `json:"ticker"`
	SellPrice       float64   `json:"sell_price"`
	TotalShares     float64   `json:"total_shares"`
	CostValue       float64   `json:"cost_value"`
	MarketValue     float64   `json:"market_value"`
	UnrealizedValue float64   `json:"unrealized_pnl_value"`
	UnrealizedPct   float64   `json:"unrealized_pnl_pct"`
}

// Summary aggregates a series for table headers and chart annotations.
// MaxDrawdownPct follows the charting convention: a percentage at or
// below zero. Mean/StdDev describe day-over-day P&L changes.
type Summary struct {
	BestDate          time.Time `json:"best_date"`
	BestValue         float64   `json:"best_value"`
	WorstDate         time.Time `json:"worst_date"`
	WorstValue        float64   `json:"worst_value"`
	LatestDate        time.Time `json:"latest_date"`
	LatestValue       float64   `json:"latest_value"`
	MaxDrawdownPct    float64   `json:"max_drawdown_pct"`
	MeanDailyChange   float64   `json:"mean_daily_change"`
	StdDevDailyChange float64   `json:"stddev_daily_change"`
}

// Series is the simulation output. Summary is nil for an empty series.
type Series struct {
	Rows    []SeriesRow `json:"rows"`
	Summary *Summary    `json:"summary,omitempty"`
}

// TargetResult is the output of a profit-target inversion
type TargetResult struct {
	Ticker       string  `json:"ticker"`
	TotalShares  float64 `json:"total_shares"`
	AvgCost      float64 `json:"avg_cost"`
	TargetProfit float64 `json:"target_profit"`
	TargetPrice  float64 `json:"target_price"`
}
