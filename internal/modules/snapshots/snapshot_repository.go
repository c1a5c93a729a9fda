package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/regret/internal/database"
	"github.com/aristath/regret/internal/domain"
	"github.com/rs/zerolog"
)

// SnapshotRepository persists daily snapshot series in portfolio.db.
// Series are replaced per contiguous range, never patched row by row -
// the peak/drawdown columns are running values and a partial patch would
// leave them inconsistent.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates the repository and ensures its schema.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) (*SnapshotRepository, error) {
	r := &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SnapshotRepository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_snapshots (
			symbol                    TEXT NOT NULL,
			date                      TEXT NOT NULL, -- YYYY-MM-DD
			shares_open               REAL NOT NULL,
			market_value_base         REAL NOT NULL,
			cost_basis_open_base      REAL NOT NULL,
			unrealized_pl_base        REAL NOT NULL,
			realized_pl_to_date_base  REAL NOT NULL,
			hypo_liquidation_pl_base  REAL NOT NULL,
			day_opportunity_base      REAL NOT NULL,
			peak_hypo_pl_to_date_base REAL NOT NULL,
			drawdown_from_peak_pct    REAL NOT NULL,
			fx_rate                   REAL NOT NULL,
			price_base                REAL NOT NULL,
			lot_count                 INTEGER NOT NULL,
			PRIMARY KEY (symbol, date)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create daily_snapshots table: %w", err)
	}
	return nil
}

// ReplaceRange atomically swaps the symbol's rows within [from, to] for
// the given series. Rows outside the range are untouched.
func (r *SnapshotRepository) ReplaceRange(symbol string, from, to time.Time, rows []domain.DailySnapshot) error {
	fromStr := domain.Day(from).Format("2006-01-02")
	toStr := domain.Day(to).Format("2006-01-02")

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM daily_snapshots WHERE symbol = ? AND date >= ? AND date <= ?`,
			symbol, fromStr, toStr); err != nil {
			return fmt.Errorf("failed to delete snapshot range: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO daily_snapshots (symbol, date, shares_open, market_value_base,
				cost_basis_open_base, unrealized_pl_base, realized_pl_to_date_base,
				hypo_liquidation_pl_base, day_opportunity_base, peak_hypo_pl_to_date_base,
				drawdown_from_peak_pct, fx_rate, price_base, lot_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.Exec(row.Symbol, domain.Day(row.Date).Format("2006-01-02"),
				row.SharesOpen, row.MarketValueBase, row.CostBasisOpenBase, row.UnrealizedPLBase,
				row.RealizedPLToDateBase, row.HypoLiquidationPLBase, row.DayOpportunityBase,
				row.PeakHypoPLToDateBase, row.DrawdownFromPeakPct, row.FxRate, row.PriceBase,
				row.LotCount); err != nil {
				return fmt.Errorf("failed to insert snapshot %s/%s: %w", row.Symbol, row.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("symbol", symbol).Int("rows", len(rows)).
		Str("from", fromStr).Str("to", toStr).Msg("Replaced snapshot range")
	return nil
}

// GetRange returns the symbol's rows within [from, to], ascending by date.
// Zero from/to means unbounded.
func (r *SnapshotRepository) GetRange(symbol string, from, to time.Time) ([]domain.DailySnapshot, error) {
	query := `SELECT symbol, date, shares_open, market_value_base, cost_basis_open_base,
		unrealized_pl_base, realized_pl_to_date_base, hypo_liquidation_pl_base,
		day_opportunity_base, peak_hypo_pl_to_date_base, drawdown_from_peak_pct,
		fx_rate, price_base, lot_count
		FROM daily_snapshots WHERE symbol = ?`
	args := []interface{}{symbol}
	if !from.IsZero() {
		query += ` AND date >= ?`
		args = append(args, domain.Day(from).Format("2006-01-02"))
	}
	if !to.IsZero() {
		query += ` AND date <= ?`
		args = append(args, domain.Day(to).Format("2006-01-02"))
	}
	query += ` ORDER BY date ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var series []domain.DailySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		series = append(series, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return series, nil
}

// GetLatest returns the most recent row for the symbol, or nil when the
// symbol has no snapshots.
func (r *SnapshotRepository) GetLatest(symbol string) (*domain.DailySnapshot, error) {
	row := r.db.QueryRow(`SELECT symbol, date, shares_open, market_value_base,
		cost_basis_open_base, unrealized_pl_base, realized_pl_to_date_base,
		hypo_liquidation_pl_base, day_opportunity_base, peak_hypo_pl_to_date_base,
		drawdown_from_peak_pct, fx_rate, price_base, lot_count
		FROM daily_snapshots WHERE symbol = ? ORDER BY date DESC LIMIT 1`, symbol)

	snap, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (domain.DailySnapshot, error) {
	var snap domain.DailySnapshot
	var dateStr string
	err := row.Scan(&snap.Symbol, &dateStr, &snap.SharesOpen, &snap.MarketValueBase,
		&snap.CostBasisOpenBase, &snap.UnrealizedPLBase, &snap.RealizedPLToDateBase,
		&snap.HypoLiquidationPLBase, &snap.DayOpportunityBase, &snap.PeakHypoPLToDateBase,
		&snap.DrawdownFromPeakPct, &snap.FxRate, &snap.PriceBase, &snap.LotCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return snap, err
		}
		return snap, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snap.Date, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return snap, fmt.Errorf("invalid date %q in daily_snapshots: %w", dateStr, err)
	}
	return snap, nil
}
