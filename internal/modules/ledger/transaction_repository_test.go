package ledger

import (
	"testing"
	"time"

	"github.com/aristath/regret/internal/domain"
	testhelpers "github.com/aristath/regret/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *TransactionRepository {
	t.Helper()
	db := testhelpers.NewTestDB(t, "ledger")
	repo, err := NewTransactionRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestTransactionRepository_InsertAssignsSeqAndID(t *testing.T) {
	repo := newTestRepo(t)

	tx := testhelpers.Buy("AAPL", "2024-01-02", 10, 100, 1)
	tx.ID = ""

	inserted, err := repo.Insert(tx)
	require.NoError(t, err)
	assert.NotEmpty(t, inserted.ID)
	assert.Greater(t, inserted.Seq, int64(0))
}

func TestTransactionRepository_GetBySymbolOrdering(t *testing.T) {
	repo := newTestRepo(t)

	// Same timestamp: seq must break the tie in insertion order.
	ts := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		tx := testhelpers.Buy("AAPL", "2024-01-02", 1, 10, 0)
		tx.ID = id
		tx.Timestamp = ts
		_, err := repo.Insert(tx)
		require.NoError(t, err)
	}

	earlier := testhelpers.Buy("AAPL", "2024-01-01", 1, 10, 0)
	earlier.ID = "earlier"
	_, err := repo.Insert(earlier)
	require.NoError(t, err)

	txs, err := repo.GetBySymbol("AAPL")
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.Equal(t, "earlier", txs[0].ID)
	assert.Equal(t, "a", txs[1].ID)
	assert.Equal(t, "b", txs[2].ID)
	assert.Equal(t, "c", txs[3].ID)
}

func TestTransactionRepository_SubSecondTimestampOrdering(t *testing.T) {
	repo := newTestRepo(t)

	// A whole-second timestamp and a sub-second one on the same second:
	// text ordering must still be chronological, so the stored form has to
	// be fixed-width (RFC3339Nano would sort "10:00:00.5Z" first).
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	buy := testhelpers.Buy("AAPL", "2024-01-02", 10, 100, 0)
	buy.ID = "buy"
	buy.Timestamp = base
	_, err := repo.Insert(buy)
	require.NoError(t, err)

	sell := testhelpers.Sell("AAPL", "2024-01-02", 5, 110, 0)
	sell.ID = "sell"
	sell.Timestamp = base.Add(500 * time.Millisecond)
	_, err = repo.Insert(sell)
	require.NoError(t, err)

	txs, err := repo.GetBySymbol("AAPL")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "buy", txs[0].ID)
	assert.Equal(t, "sell", txs[1].ID)
	assert.Equal(t, base.Add(500*time.Millisecond), txs[1].Timestamp)

	// The journal order must satisfy the rebuild's input constraint.
	_, err = Rebuild(txs, RebuildOptions{Strategy: domain.MatchFIFO})
	require.NoError(t, err)
}

func TestTransactionRepository_RoundTripFields(t *testing.T) {
	repo := newTestRepo(t)

	sell := testhelpers.Sell("AAPL", "2024-03-01", 5, 120, 2)
	sell.Tax = 3
	sell.BrokerID = "broker-7"
	sell.LotIDs = []string{"lot-1", "lot-2"}
	_, err := repo.Insert(sell)
	require.NoError(t, err)

	split := domain.Transaction{
		ID:         "split-1",
		Symbol:     "AAPL",
		Type:       domain.TransactionSplit,
		Currency:   domain.CurrencyEUR,
		Timestamp:  testhelpers.MustDate("2024-04-01"),
		SplitRatio: 3,
	}
	_, err = repo.Insert(split)
	require.NoError(t, err)

	txs, err := repo.GetBySymbol("AAPL")
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, []string{"lot-1", "lot-2"}, txs[0].LotIDs)
	assert.Equal(t, "broker-7", txs[0].BrokerID)
	assert.InDelta(t, 3, txs[0].Tax, 1e-9)
	assert.InDelta(t, 3, txs[1].SplitRatio, 1e-9)
}

func TestTransactionRepository_ListSymbols(t *testing.T) {
	repo := newTestRepo(t)

	for _, symbol := range []string{"MSFT", "AAPL", "AAPL"} {
		tx := testhelpers.Buy(symbol, "2024-01-02", 1, 10, 0)
		tx.ID = ""
		_, err := repo.Insert(tx)
		require.NoError(t, err)
	}

	symbols, err := repo.ListSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}
