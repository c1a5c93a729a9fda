// Package domain provides the core models shared by the lot accounting
// engine, the daily snapshot engine and the what-if simulator.
package domain

import "time"

// Currency represents an ISO currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
)

// TransactionType represents the type of a ledger transaction
type TransactionType string

const (
	TransactionBuy      TransactionType = "BUY"
	TransactionSell     TransactionType = "SELL"
	TransactionDividend TransactionType = "DIVIDEND"
	TransactionFee      TransactionType = "FEE"
	TransactionSplit    TransactionType = "SPLIT"
)

// MatchingStrategy selects which open lots a sell closes against
type MatchingStrategy string

const (
	MatchFIFO       MatchingStrategy = "FIFO"
	MatchLIFO       MatchingStrategy = "LIFO"
	MatchSpecificID MatchingStrategy = "SPECIFIC_ID"
)

// Valid reports whether the strategy is one of the supported variants.
func (m MatchingStrategy) Valid() bool {
	switch m {
	case MatchFIFO, MatchLIFO, MatchSpecificID:
		return true
	}
	return false
}

// Transaction is an immutable input record for the lot builder.
// Quantity is always positive; Type determines direction.
// Seq is the insertion-order tiebreaker for same-timestamp transactions.
type Transaction struct {
	Timestamp  time.Time       `json:"timestamp"`
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Type       TransactionType `json:"type"`
	Currency   Currency        `json:"currency"`
	BrokerID   string          `json:"broker_id,omitempty"`
	LotIDs     []string        `json:"lot_ids,omitempty"` // SPECIFIC_ID sell references
	Seq        int64           `json:"seq"`
	Quantity   float64         `json:"quantity"`
	Price      float64         `json:"price"`
	Fee        float64         `json:"fee"`
	Tax        float64         `json:"tax"`
	SplitRatio float64         `json:"split_ratio,omitempty"` // SPLIT only, e.g. 2 for a 2:1 split
}

// Lot is a batch of shares acquired at one point in time at one cost basis.
// Mutable until QtyOpen reaches zero, then closed.
// Invariant: 0 <= QtyOpen <= QtyOriginal.
type Lot struct {
	OpenedAt     time.Time `json:"opened_at"`
	LotID        string    `json:"lot_id"`
	Symbol       string    `json:"symbol"`
	Currency     Currency  `json:"currency"`
	Seq          int64     `json:"seq"` // arena insertion order
	QtyOpen      float64   `json:"qty_open"`
	QtyOriginal  float64   `json:"qty_original"`
	CostPerShare float64   `json:"cost_per_share"` // transaction currency, fees allocated in
}

// Closed reports whether the lot is fully consumed.
func (l *Lot) Closed() bool {
	return l.QtyOpen <= 0
}

// CostBasisOpen returns the remaining cost basis of the lot.
func (l *Lot) CostBasisOpen() float64 {
	return l.QtyOpen * l.CostPerShare
}

// RealizedEvent is emitted once per sell transaction, aggregated across all
// lots the sell closed against. Immutable once emitted.
type RealizedEvent struct {
	Date            time.Time `json:"date"`
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	TransactionID   string    `json:"transaction_id"`
	Currency        Currency  `json:"currency"`
	QtyClosed       float64   `json:"qty_closed"`
	Proceeds        float64   `json:"proceeds"`
	CostBasisClosed float64   `json:"cost_basis_closed"`
	Fees            float64   `json:"fees"`
	Taxes           float64   `json:"taxes"`
	RealizedPL      float64   `json:"realized_pl"`
}

// DailySnapshot is the per-(symbol, date) output row of the snapshot engine.
// All monetary fields are in the configured base currency.
type DailySnapshot struct {
	Date                  time.Time `json:"date"`
	Symbol                string    `json:"symbol"`
	SharesOpen            float64   `json:"shares_open"`
	MarketValueBase       float64   `json:"market_value_base"`
	CostBasisOpenBase     float64   `json:"cost_basis_open_base"`
	UnrealizedPLBase      float64   `json:"unrealized_pl_base"`
	RealizedPLToDateBase  float64   `json:"realized_pl_to_date_base"`
	HypoLiquidationPLBase float64   `json:"hypo_liquidation_pl_base"`
	DayOpportunityBase    float64   `json:"day_opportunity_base"`
	PeakHypoPLToDateBase  float64   `json:"peak_hypo_pl_to_date_base"`
	DrawdownFromPeakPct   float64   `json:"drawdown_from_peak_pct"`
	FxRate                float64   `json:"fx_rate"`
	PriceBase             float64   `json:"price_base"`
	LotCount              int       `json:"lot_count"`
}

// Day normalizes a timestamp to its civil date (UTC midnight).
// All daily bookkeeping keys on these normalized dates.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same UTC date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
