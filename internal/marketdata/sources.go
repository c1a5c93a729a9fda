// Package marketdata provides the price and FX lookups the accounting
// engines consume. The engines never perform I/O themselves; sources are
// synchronous lookups over already-ingested data (in-memory for tests and
// simulations, history.db-backed for the service).
package marketdata

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/regret/internal/domain"
)

// PriceField selects which OHLC field a series is built from
type PriceField string

const (
	FieldClose    PriceField = "close"
	FieldOpen     PriceField = "open"
	FieldHigh     PriceField = "high"
	FieldLow      PriceField = "low"
	FieldAdjClose PriceField = "adj_close"
)

// PriceBar is one daily bar for one symbol, currency-tagged
type PriceBar struct {
	Date     time.Time       `json:"date"`
	Symbol   string          `json:"symbol"`
	Open     float64         `json:"open"`
	High     float64         `json:"high"`
	Low      float64         `json:"low"`
	Close    float64         `json:"close"`
	AdjClose float64         `json:"adj_close"`
	Currency domain.Currency `json:"currency"`
}

// Field returns the requested OHLC field of the bar.
func (b PriceBar) Field(f PriceField) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldClose:
		return b.Close
	default:
		return b.AdjClose
	}
}

// PriceSource supplies daily price series. A zero from/to means unbounded.
// Implementations return series keyed by normalized UTC dates (domain.Day).
type PriceSource interface {
	GetPriceSeries(ticker string, from, to time.Time, field PriceField) (map[time.Time]float64, error)
	GetLatestPrice(ticker string, field PriceField) (float64, error)
}

// BarSource supplies full daily bars for the snapshot engine,
// ordered ascending by date.
type BarSource interface {
	GetDailyBars(symbol string, from, to time.Time) ([]PriceBar, error)
}

// FXSource supplies daily conversion rates for base-currency normalization
type FXSource interface {
	GetRate(date time.Time, from, to domain.Currency) (float64, error)
}

// InMemoryPriceSource is a map-backed source for tests and simulations
type InMemoryPriceSource struct {
	bars map[string]map[time.Time]PriceBar
}

// NewInMemoryPriceSource creates a source from a list of bars.
func NewInMemoryPriceSource(bars []PriceBar) *InMemoryPriceSource {
	s := &InMemoryPriceSource{bars: make(map[string]map[time.Time]PriceBar)}
	for _, bar := range bars {
		day := domain.Day(bar.Date)
		if s.bars[bar.Symbol] == nil {
			s.bars[bar.Symbol] = make(map[time.Time]PriceBar)
		}
		bar.Date = day
		s.bars[bar.Symbol][day] = bar
	}
	return s
}

// GetPriceSeries returns the requested field per date within [from, to].
func (s *InMemoryPriceSource) GetPriceSeries(ticker string, from, to time.Time, field PriceField) (map[time.Time]float64, error) {
	series := make(map[time.Time]float64)
	for day, bar := range s.bars[ticker] {
		if !from.IsZero() && day.Before(domain.Day(from)) {
			continue
		}
		if !to.IsZero() && day.After(domain.Day(to)) {
			continue
		}
		series[day] = bar.Field(field)
	}
	return series, nil
}

// GetLatestPrice returns the most recent available price for the ticker.
func (s *InMemoryPriceSource) GetLatestPrice(ticker string, field PriceField) (float64, error) {
	var latest time.Time
	found := false
	for day := range s.bars[ticker] {
		if !found || day.After(latest) {
			latest = day
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("no prices for ticker %s: %w", ticker, domain.ErrMissingPrice)
	}
	return s.bars[ticker][latest].Field(field), nil
}

// GetDailyBars returns bars for the symbol within [from, to], ascending.
func (s *InMemoryPriceSource) GetDailyBars(symbol string, from, to time.Time) ([]PriceBar, error) {
	var bars []PriceBar
	for day, bar := range s.bars[symbol] {
		if !from.IsZero() && day.Before(domain.Day(from)) {
			continue
		}
		if !to.IsZero() && day.After(domain.Day(to)) {
			continue
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// InMemoryFXSource is a map-backed FX source keyed by (date, from, to)
type InMemoryFXSource struct {
	rates map[fxKey]float64
}

type fxKey struct {
	date time.Time
	from domain.Currency
	to   domain.Currency
}

// NewInMemoryFXSource creates an empty FX source.
func NewInMemoryFXSource() *InMemoryFXSource {
	return &InMemoryFXSource{rates: make(map[fxKey]float64)}
}

// SetRate registers a rate for a date and currency pair.
func (s *InMemoryFXSource) SetRate(date time.Time, from, to domain.Currency, rate float64) {
	s.rates[fxKey{domain.Day(date), from, to}] = rate
}

// GetRate returns the rate for the date and pair, 1.0 for identical
// currencies, ErrMissingFxRate otherwise.
func (s *InMemoryFXSource) GetRate(date time.Time, from, to domain.Currency) (float64, error) {
	if from == to {
		return 1.0, nil
	}
	if rate, ok := s.rates[fxKey{domain.Day(date), from, to}]; ok {
		return rate, nil
	}
	return 0, fmt.Errorf("%s->%s on %s: %w", from, to, domain.Day(date).Format("2006-01-02"), domain.ErrMissingFxRate)
}

// CachingPriceSource wraps a PriceSource to avoid redundant fetches within
// one simulation call. Safe for concurrent readers.
type CachingPriceSource struct {
	delegate PriceSource

	mu          sync.Mutex
	rangeCache  map[rangeKey]map[time.Time]float64
	latestCache map[latestKey]float64
}

type rangeKey struct {
	ticker string
	field  PriceField
	from   time.Time
	to     time.Time
}

type latestKey struct {
	ticker string
	field  PriceField
}

// NewCachingPriceSource wraps delegate with range and latest-price caches.
func NewCachingPriceSource(delegate PriceSource) *CachingPriceSource {
	return &CachingPriceSource{
		delegate:    delegate,
		rangeCache:  make(map[rangeKey]map[time.Time]float64),
		latestCache: make(map[latestKey]float64),
	}
}

// GetPriceSeries returns the cached series or fetches it from the delegate.
func (c *CachingPriceSource) GetPriceSeries(ticker string, from, to time.Time, field PriceField) (map[time.Time]float64, error) {
	key := rangeKey{ticker, field, domain.Day(from), domain.Day(to)}
	c.mu.Lock()
	cached, ok := c.rangeCache[key]
	c.mu.Unlock()
	if !ok {
		series, err := c.delegate.GetPriceSeries(ticker, from, to, field)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.rangeCache[key] = series
		c.mu.Unlock()
		cached = series
	}
	// Copy so callers cannot mutate the cache
	out := make(map[time.Time]float64, len(cached))
	for d, p := range cached {
		out[d] = p
	}
	return out, nil
}

// GetLatestPrice returns the cached latest price or fetches it.
func (c *CachingPriceSource) GetLatestPrice(ticker string, field PriceField) (float64, error) {
	key := latestKey{ticker, field}
	c.mu.Lock()
	price, ok := c.latestCache[key]
	c.mu.Unlock()
	if ok {
		return price, nil
	}
	price, err := c.delegate.GetLatestPrice(ticker, field)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.latestCache[key] = price
	c.mu.Unlock()
	return price, nil
}
