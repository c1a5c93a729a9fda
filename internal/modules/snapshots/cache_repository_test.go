package snapshots

import (
	"testing"
	"time"

	"github.com/aristath/regret/internal/domain"
	testhelpers "github.com/aristath/regret/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheRepo(t *testing.T, ttl time.Duration) *CacheRepository {
	t.Helper()
	db := testhelpers.NewTestDB(t, "cache")
	repo, err := NewCacheRepository(db.Conn(), ttl, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestCacheRepository_RoundTrip(t *testing.T) {
	repo := newCacheRepo(t, time.Hour)

	series := []domain.DailySnapshot{
		{Symbol: "AAPL", Date: testhelpers.MustDate("2024-09-02"), HypoLiquidationPLBase: 42, LotCount: 2},
	}
	key := CacheKey("AAPL", testhelpers.MustDate("2024-09-02"), testhelpers.MustDate("2024-09-02"), "series")

	_, ok, err := repo.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(key, "AAPL", series))

	cached, ok, err := repo.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 1)
	assert.Equal(t, "AAPL", cached[0].Symbol)
	assert.InDelta(t, 42, cached[0].HypoLiquidationPLBase, 1e-9)
	assert.Equal(t, 2, cached[0].LotCount)
}

func TestCacheRepository_TTLExpiry(t *testing.T) {
	repo := newCacheRepo(t, time.Nanosecond)

	key := CacheKey("AAPL", time.Time{}, time.Time{}, "series")
	require.NoError(t, repo.Put(key, "AAPL", []domain.DailySnapshot{{Symbol: "AAPL"}}))

	time.Sleep(time.Millisecond)

	_, ok, err := repo.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheKey_VariesWithComputationParams(t *testing.T) {
	from := testhelpers.MustDate("2024-09-02")
	to := testhelpers.MustDate("2024-09-10")

	base := Defaults{BaseCurrency: domain.CurrencyEUR, Strategy: domain.MatchFIFO}
	strategy := base
	strategy.Strategy = domain.MatchLIFO
	tax := base
	tax.SellCosts.TaxRate = 0.26

	baseKey := CacheKey("AAPL", from, to, base.cacheParams())
	assert.NotEqual(t, baseKey, CacheKey("AAPL", from, to, strategy.cacheParams()))
	assert.NotEqual(t, baseKey, CacheKey("AAPL", from, to, tax.cacheParams()))

	// Same parameters always rebuild the same key.
	assert.Equal(t, baseKey, CacheKey("AAPL", from, to, base.cacheParams()))
}

func TestCacheRepository_InvalidateSymbol(t *testing.T) {
	repo := newCacheRepo(t, time.Hour)

	aaplKey := CacheKey("AAPL", time.Time{}, time.Time{}, "series")
	msftKey := CacheKey("MSFT", time.Time{}, time.Time{}, "series")
	require.NoError(t, repo.Put(aaplKey, "AAPL", []domain.DailySnapshot{{Symbol: "AAPL"}}))
	require.NoError(t, repo.Put(msftKey, "MSFT", []domain.DailySnapshot{{Symbol: "MSFT"}}))

	require.NoError(t, repo.InvalidateSymbol("AAPL"))

	_, ok, err := repo.Get(aaplKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = repo.Get(msftKey)
	require.NoError(t, err)
	assert.True(t, ok)
}
