package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CacheRepository stores computed snapshot series as msgpack blobs in
// cache.db so chart reads do not hit the engine for every request.
// Entries expire by TTL and are invalidated wholesale per symbol whenever
// the symbol's range is recomputed.
type CacheRepository struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewCacheRepository creates the repository and ensures its schema.
func NewCacheRepository(db *sql.DB, ttl time.Duration, log zerolog.Logger) (*CacheRepository, error) {
	r := &CacheRepository{
		db:  db,
		ttl: ttl,
		log: log.With().Str("repo", "series_cache").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CacheRepository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS series_cache (
			cache_key  TEXT PRIMARY KEY,
			symbol     TEXT NOT NULL,
			payload    BLOB NOT NULL,
			created_at TEXT NOT NULL -- RFC3339
		);
		CREATE INDEX IF NOT EXISTS idx_series_cache_symbol ON series_cache(symbol)`)
	if err != nil {
		return fmt.Errorf("failed to create series_cache table: %w", err)
	}
	return nil
}

// CacheKey builds the cache key for a series request.
func CacheKey(symbol string, from, to time.Time, params string) string {
	return fmt.Sprintf("%s|%s|%s|%s", symbol,
		domain.Day(from).Format("2006-01-02"), domain.Day(to).Format("2006-01-02"), params)
}

// Get returns the cached series for the key, or ok=false on a miss or an
// expired entry.
func (r *CacheRepository) Get(key string) ([]domain.DailySnapshot, bool, error) {
	var payload []byte
	var createdAt string
	err := r.db.QueryRow(`SELECT payload, created_at FROM series_cache WHERE cache_key = ?`, key).
		Scan(&payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query series cache: %w", err)
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, false, fmt.Errorf("invalid created_at in series cache: %w", err)
	}
	if r.ttl > 0 && time.Since(created) > r.ttl {
		_, _ = r.db.Exec(`DELETE FROM series_cache WHERE cache_key = ?`, key)
		return nil, false, nil
	}

	var series []domain.DailySnapshot
	if err := msgpack.Unmarshal(payload, &series); err != nil {
		// A corrupt blob is a cache problem, not a caller problem.
		r.log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		_, _ = r.db.Exec(`DELETE FROM series_cache WHERE cache_key = ?`, key)
		return nil, false, nil
	}
	return series, true, nil
}

// Put stores the series under the key.
func (r *CacheRepository) Put(key, symbol string, series []domain.DailySnapshot) error {
	payload, err := msgpack.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to encode series cache payload: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO series_cache (cache_key, symbol, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload, created_at = excluded.created_at`,
		key, symbol, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store series cache entry: %w", err)
	}
	return nil
}

// InvalidateSymbol removes every cached series for the symbol.
func (r *CacheRepository) InvalidateSymbol(symbol string) error {
	if _, err := r.db.Exec(`DELETE FROM series_cache WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("failed to invalidate series cache for %s: %w", symbol, err)
	}
	return nil
}
