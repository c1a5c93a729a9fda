package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/rs/zerolog"
)

// PriceRepository provides access to ingested daily bars in history.db.
// It implements both PriceSource and BarSource. Writes happen via the
// ingestion endpoints; the engines only read.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository and ensures its schema.
func NewPriceRepository(db *sql.DB, log zerolog.Logger) (*PriceRepository, error) {
	r := &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PriceRepository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol    TEXT NOT NULL,
			date      TEXT NOT NULL, -- YYYY-MM-DD
			open      REAL NOT NULL,
			high      REAL NOT NULL,
			low       REAL NOT NULL,
			close     REAL NOT NULL,
			adj_close REAL NOT NULL,
			currency  TEXT NOT NULL,
			PRIMARY KEY (symbol, date)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create daily_prices table: %w", err)
	}
	return nil
}

// UpsertBars writes a batch of daily bars in one transaction.
func (r *PriceRepository) UpsertBars(bars []PriceBar) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin bar upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (symbol, date, open, high, low, close, adj_close, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, adj_close = excluded.adj_close,
			currency = excluded.currency`)
	if err != nil {
		return fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		day := domain.Day(bar.Date).Format("2006-01-02")
		if _, err := stmt.Exec(bar.Symbol, day, bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, string(bar.Currency)); err != nil {
			return fmt.Errorf("failed to upsert bar %s/%s: %w", bar.Symbol, day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar upsert: %w", err)
	}
	r.log.Debug().Int("bars", len(bars)).Msg("Upserted daily bars")
	return nil
}

// GetDailyBars returns bars for a symbol within [from, to], ascending by
// date. Zero from/to means unbounded. One bulk query per range.
func (r *PriceRepository) GetDailyBars(symbol string, from, to time.Time) ([]PriceBar, error) {
	query := `SELECT date, open, high, low, close, adj_close, currency
		FROM daily_prices WHERE symbol = ?`
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
		return nil, fmt.Errorf("failed to query daily bars: %w", err)
	}
	defer rows.Close()

	var bars []PriceBar
	for rows.Next() {
		var bar PriceBar
		var dateStr, currency string
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan daily bar: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q in daily_prices: %w", dateStr, err)
		}
		bar.Date = date
		bar.Symbol = symbol
		bar.Currency = domain.Currency(currency)
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily bars: %w", err)
	}
	return bars, nil
}

// GetPriceSeries implements PriceSource over the stored bars.
func (r *PriceRepository) GetPriceSeries(ticker string, from, to time.Time, field PriceField) (map[time.Time]float64, error) {
	bars, err := r.GetDailyBars(ticker, from, to)
	if err != nil {
		return nil, err
	}
	series := make(map[time.Time]float64, len(bars))
	for _, bar := range bars {
		series[domain.Day(bar.Date)] = bar.Field(field)
	}
	return series, nil
}

// GetLatestPrice implements PriceSource over the stored bars.
func (r *PriceRepository) GetLatestPrice(ticker string, field PriceField) (float64, error) {
	row := r.db.QueryRow(`SELECT open, high, low, close, adj_close
		FROM daily_prices WHERE symbol = ? ORDER BY date DESC LIMIT 1`, ticker)

	var bar PriceBar
	if err := row.Scan(&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("no prices for ticker %s: %w", ticker, domain.ErrMissingPrice)
		}
		return 0, fmt.Errorf("failed to query latest price: %w", err)
	}
	return bar.Field(field), nil
}
