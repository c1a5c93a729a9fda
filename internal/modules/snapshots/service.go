package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
	"github.com/aristath/regret/internal/modules/ledger"
	"github.com/aristath/regret/internal/work"
	"github.com/rs/zerolog"
)

// TransactionSource is the slice of the ledger the service needs.
type TransactionSource interface {
	GetBySymbol(symbol string) ([]domain.Transaction, error)
	ListSymbols() ([]string, error)
}

// Defaults are the service-level computation parameters applied when a
// request does not override them.
type Defaults struct {
	BaseCurrency domain.Currency
	Strategy     domain.MatchingStrategy
	SellCosts    SellCostModel
}

// cacheParams folds the computation parameters into the series cache
// key, so a config change never serves series computed under the old
// sell-cost model or strategy.
func (d Defaults) cacheParams() string {
	return fmt.Sprintf("series|%s|%s|%g|%g|%g", d.BaseCurrency, d.Strategy,
		d.SellCosts.FeeBps, d.SellCosts.FeeFlat, d.SellCosts.TaxRate)
}

// Service orchestrates snapshot recomputes: it loads the journal and
// price series, runs the engine, persists the resulting range and drops
// stale cache entries. Reads go through the series cache first.
type Service struct {
	transactions TransactionSource
	bars         marketdata.BarSource
	fx           marketdata.FXSource
	snapshots    *SnapshotRepository
	cache        *CacheRepository
	engine       *Engine
	runner       *work.Runner
	defaults     Defaults
	log          zerolog.Logger
}

// NewService creates the snapshot service.
func NewService(
	transactions TransactionSource,
	bars marketdata.BarSource,
	fx marketdata.FXSource,
	snapshots *SnapshotRepository,
	cache *CacheRepository,
	engine *Engine,
	runner *work.Runner,
	defaults Defaults,
	log zerolog.Logger,
) *Service {
	return &Service{
		transactions: transactions,
		bars:         bars,
		fx:           fx,
		snapshots:    snapshots,
		cache:        cache,
		engine:       engine,
		runner:       runner,
		defaults:     defaults,
		log:          log.With().Str("service", "snapshots").Logger(),
	}
}

// RecomputeSymbol rebuilds the symbol's snapshot series from the journal
// and replaces the stored range. Returns the number of rows written.
func (s *Service) RecomputeSymbol(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	txs, err := s.transactions.GetBySymbol(symbol)
	if err != nil {
		return 0, err
	}
	if len(txs) == 0 {
		return 0, nil
	}

	// Bars must reach back to the first transaction so the pre-window
	// position build-up and the full window are both covered.
	barsFrom := domain.Day(txs[0].Timestamp)
	bars, err := s.bars.GetDailyBars(symbol, barsFrom, to)
	if err != nil {
		return 0, err
	}

	rows, err := s.engine.ComputeSnapshots(ctx, Request{
		Symbol:       symbol,
		From:         from,
		To:           to,
		Transactions: txs,
		Bars:         bars,
		FX:           s.fx,
		BaseCurrency: s.defaults.BaseCurrency,
		SellCosts:    s.defaults.SellCosts,
		Strategy:     s.defaults.Strategy,
	})
	if err != nil {
		return 0, fmt.Errorf("recompute %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	rangeFrom, rangeTo := rows[0].Date, rows[len(rows)-1].Date
	if err := s.snapshots.ReplaceRange(symbol, rangeFrom, rangeTo, rows); err != nil {
		return 0, err
	}
	if err := s.cache.InvalidateSymbol(symbol); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to invalidate series cache")
	}
	return len(rows), nil
}

// RecomputeAll recomputes every symbol in the journal over the worker
// pool. Per-symbol failures are reported in the results, not returned.
func (s *Service) RecomputeAll(ctx context.Context) ([]work.Result, error) {
	symbols, err := s.transactions.ListSymbols()
	if err != nil {
		return nil, err
	}
	results := s.runner.Run(ctx, symbols, func(ctx context.Context, symbol string) (int, error) {
		return s.RecomputeSymbol(ctx, symbol, time.Time{}, time.Time{})
	})
	return results, nil
}

// GetSeries returns the stored snapshot series for the window, serving
// from the cache when possible.
func (s *Service) GetSeries(symbol string, from, to time.Time) ([]domain.DailySnapshot, error) {
	key := CacheKey(symbol, from, to, s.defaults.cacheParams())
	if cached, ok, err := s.cache.Get(key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache read failed")
	}

	series, err := s.snapshots.GetRange(symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(series) > 0 {
		if err := s.cache.Put(key, symbol, series); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache write failed")
		}
	}
	return series, nil
}

// GetLatest returns the most recent stored snapshot, or nil when the
// symbol has none.
func (s *Service) GetLatest(symbol string) (*domain.DailySnapshot, error) {
	return s.snapshots.GetLatest(symbol)
}

// Regret returns today's regret for the symbol over the stored series.
func (s *Service) Regret(symbol string) (float64, error) {
	series, err := s.snapshots.GetRange(symbol, time.Time{}, time.Time{})
	if err != nil {
		return 0, err
	}
	return RegretAtToday(series), nil
}

// RebuildLots replays the symbol's journal into its current open-lot
// state without touching stored snapshots.
func (s *Service) RebuildLots(symbol string, opts ledger.RebuildOptions) (*ledger.RebuildResult, error) {
	txs, err := s.transactions.GetBySymbol(symbol)
	if err != nil {
		return nil, err
	}
	if opts.Strategy == "" {
		opts.Strategy = s.defaults.Strategy
	}
	return ledger.Rebuild(txs, opts)
}
