package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// timestampLayout is fixed-width (nanoseconds always printed, always
// UTC) so the lexicographic ORDER BY on the text column is also
// chronological order. RFC3339Nano trims trailing zeros, which would
// sort "10:00:00.5Z" before "10:00:00Z".
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// TransactionRepository persists the transaction journal in ledger.db.
// Rows are append-only; seq is assigned on insert and is the stable
// tiebreaker for same-timestamp transactions.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates the repository and ensures its schema.
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) (*TransactionRepository, error) {
	r := &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *TransactionRepository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			symbol      TEXT NOT NULL,
			type        TEXT NOT NULL,
			quantity    REAL NOT NULL,
			price       REAL NOT NULL,
			fee         REAL NOT NULL DEFAULT 0,
			tax         REAL NOT NULL DEFAULT 0,
			currency    TEXT NOT NULL,
			timestamp   TEXT NOT NULL, -- fixed-width UTC, sortable as text
			broker_id   TEXT,
			lot_ids     TEXT,          -- JSON array, SPECIFIC_ID sells only
			split_ratio REAL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_symbol_ts
			ON transactions(symbol, timestamp, seq)`)
	if err != nil {
		return fmt.Errorf("failed to create transactions table: %w", err)
	}
	return nil
}

// Insert appends one transaction to the journal and returns it with its
// assigned seq (and generated ID if none was provided).
func (r *TransactionRepository) Insert(tx domain.Transaction) (domain.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	var lotIDs interface{}
	if len(tx.LotIDs) > 0 {
		encoded, err := json.Marshal(tx.LotIDs)
		if err != nil {
			return tx, fmt.Errorf("failed to encode lot ids: %w", err)
		}
		lotIDs = string(encoded)
	}
	var splitRatio interface{}
	if tx.SplitRatio != 0 {
		splitRatio = tx.SplitRatio
	}

	result, err := r.db.Exec(`
		INSERT INTO transactions (id, symbol, type, quantity, price, fee, tax, currency, timestamp, broker_id, lot_ids, split_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Symbol, string(tx.Type), tx.Quantity, tx.Price, tx.Fee, tx.Tax,
		string(tx.Currency), tx.Timestamp.UTC().Format(timestampLayout), tx.BrokerID, lotIDs, splitRatio)
	if err != nil {
		return tx, fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return tx, fmt.Errorf("failed to read inserted seq: %w", err)
	}
	tx.Seq = seq

	r.log.Debug().Str("id", tx.ID).Str("symbol", tx.Symbol).Str("type", string(tx.Type)).Msg("Inserted transaction")
	return tx, nil
}

// GetBySymbol returns the symbol's transactions ordered by (timestamp, seq),
// which is exactly the order the lot builder requires.
func (r *TransactionRepository) GetBySymbol(symbol string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT seq, id, symbol, type, quantity, price, fee, tax, currency, timestamp, broker_id, lot_ids, split_ratio
		FROM transactions WHERE symbol = ?
		ORDER BY timestamp ASC, seq ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// ListSymbols returns the distinct symbols present in the journal.
func (r *TransactionRepository) ListSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM transactions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var tx domain.Transaction
	var txType, currency, timestamp string
	var brokerID, lotIDs sql.NullString
	var splitRatio sql.NullFloat64

	err := rows.Scan(&tx.Seq, &tx.ID, &tx.Symbol, &txType, &tx.Quantity, &tx.Price,
		&tx.Fee, &tx.Tax, &currency, &timestamp, &brokerID, &lotIDs, &splitRatio)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Type = domain.TransactionType(txType)
	tx.Currency = domain.Currency(currency)
	tx.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return tx, fmt.Errorf("invalid timestamp %q on transaction %s: %w", timestamp, tx.ID, err)
	}
	if brokerID.Valid {
		tx.BrokerID = brokerID.String
	}
	if lotIDs.Valid && lotIDs.String != "" {
		if err := json.Unmarshal([]byte(lotIDs.String), &tx.LotIDs); err != nil {
			return tx, fmt.Errorf("invalid lot_ids on transaction %s: %w", tx.ID, err)
		}
	}
	if splitRatio.Valid {
		tx.SplitRatio = splitRatio.Float64
	}
	return tx, nil
}
