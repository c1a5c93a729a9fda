package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/rs/zerolog"
)

// FXRepository provides access to ingested daily exchange rates in
// history.db. Implements FXSource.
type FXRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewFXRepository creates a new FX repository and ensures its schema.
func NewFXRepository(db *sql.DB, log zerolog.Logger) (*FXRepository, error) {
	r := &FXRepository{
		db:  db,
		log: log.With().Str("repo", "fx_rates").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FXRepository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS exchange_rates (
			date     TEXT NOT NULL, -- YYYY-MM-DD
			from_ccy TEXT NOT NULL,
			to_ccy   TEXT NOT NULL,
			rate     REAL NOT NULL,
			PRIMARY KEY (date, from_ccy, to_ccy)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create exchange_rates table: %w", err)
	}
	return nil
}

// UpsertRates writes a batch of daily rates in one transaction.
func (r *FXRepository) UpsertRates(rates []Rate) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rate upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO exchange_rates (date, from_ccy, to_ccy, rate)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, from_ccy, to_ccy) DO UPDATE SET rate = excluded.rate`)
	if err != nil {
		return fmt.Errorf("failed to prepare rate upsert: %w", err)
	}
	defer stmt.Close()

	for _, rate := range rates {
		day := domain.Day(rate.Date).Format("2006-01-02")
		if _, err := stmt.Exec(day, string(rate.From), string(rate.To), rate.Rate); err != nil {
			return fmt.Errorf("failed to upsert rate %s/%s/%s: %w", day, rate.From, rate.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rate upsert: %w", err)
	}
	r.log.Debug().Int("rates", len(rates)).Msg("Upserted exchange rates")
	return nil
}

// Rate is one daily conversion rate
type Rate struct {
	Date time.Time       `json:"date"`
	From domain.Currency `json:"from"`
	To   domain.Currency `json:"to"`
	Rate float64         `json:"rate"`
}

// GetRate returns the rate for the date and pair. Identical currencies
// always convert at 1.0. A stored inverse pair is used as a fallback.
func (r *FXRepository) GetRate(date time.Time, from, to domain.Currency) (float64, error) {
	if from == to {
		return 1.0, nil
	}
	day := domain.Day(date).Format("2006-01-02")

	var rate float64
	err := r.db.QueryRow(`SELECT rate FROM exchange_rates WHERE date = ? AND from_ccy = ? AND to_ccy = ?`,
		day, string(from), string(to)).Scan(&rate)
	if err == nil {
		return rate, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query exchange rate: %w", err)
	}

	// Inverse pair fallback
	err = r.db.QueryRow(`SELECT rate FROM exchange_rates WHERE date = ? AND from_ccy = ? AND to_ccy = ?`,
		day, string(to), string(from)).Scan(&rate)
	if err == nil && rate != 0 {
		return 1.0 / rate, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query inverse exchange rate: %w", err)
	}

	return 0, fmt.Errorf("%s->%s on %s: %w", from, to, day, domain.ErrMissingFxRate)
}
