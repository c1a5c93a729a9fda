package simulation

import (
	"testing"
	"time"

	"github.com/aristath/regret/internal/domain"
	testhelpers "github.com/aristath/regret/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotStore_AddAndList(t *testing.T) {
	store := NewLotStore()

	lot, err := store.AddLot(LotInput{
		LotID:    "lot-1",
		Ticker:   "AAPL",
		BuyDate:  testhelpers.MustDate("2024-01-02"),
		Shares:   10,
		BuyPrice: 100,
		Tags:     []string{"core"},
	})
	require.NoError(t, err)
	assert.Equal(t, LotReal, lot.Type)
	assert.False(t, lot.CreatedAt.IsZero())

	lots := store.ListLots(ListOptions{Ticker: "AAPL"})
	require.Len(t, lots, 1)
	assert.Equal(t, "lot-1", lots[0].LotID)
	assert.Equal(t, []string{"core"}, lots[0].Tags)
}

func TestLotStore_DuplicateID(t *testing.T) {
	store := NewLotStore()

	input := LotInput{
		LotID: "lot-1", Ticker: "AAPL",
		BuyDate: testhelpers.MustDate("2024-01-02"), Shares: 10, BuyPrice: 100,
	}
	_, err := store.AddLot(input)
	require.NoError(t, err)

	_, err = store.AddLot(input)
	require.ErrorIs(t, err, domain.ErrDuplicateLotID)
}

func TestLotStore_Validation(t *testing.T) {
	past := testhelpers.MustDate("2024-01-02")
	future := time.Now().UTC().AddDate(1, 0, 0)

	tests := []struct {
		name  string
		input LotInput
	}{
		{"missing id", LotInput{Ticker: "AAPL", BuyDate: past, Shares: 10, BuyPrice: 100}},
		{"missing ticker", LotInput{LotID: "lot-1", BuyDate: past, Shares: 10, BuyPrice: 100}},
		{"zero shares", LotInput{LotID: "lot-1", Ticker: "AAPL", BuyDate: past, BuyPrice: 100}},
		{"negative price", LotInput{LotID: "lot-1", Ticker: "AAPL", BuyDate: past, Shares: 10, BuyPrice: -1}},
		{"unknown type", LotInput{LotID: "lot-1", Ticker: "AAPL", BuyDate: past, Shares: 10, BuyPrice: 100, Type: "IMAGINARY"}},
		{"real lot in the future", LotInput{LotID: "lot-1", Ticker: "AAPL", BuyDate: future, Shares: 10, BuyPrice: 100, Type: LotReal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewLotStore()
			_, err := store.AddLot(tt.input)
			require.Error(t, err)
		})
	}
}

func TestLotStore_HypotheticalFutureBuyDate(t *testing.T) {
	store := NewLotStore()

	_, err := store.AddLot(LotInput{
		LotID:    "what-if",
		Ticker:   "AAPL",
		BuyDate:  time.Now().UTC().AddDate(0, 1, 0),
		Shares:   10,
		BuyPrice: 100,
		Type:     LotHypothetical,
	})
	require.NoError(t, err)
}

func TestLotStore_RemoveLot(t *testing.T) {
	store := NewLotStore()

	_, err := store.AddLot(LotInput{
		LotID: "lot-1", Ticker: "AAPL",
		BuyDate: testhelpers.MustDate("2024-01-02"), Shares: 10, BuyPrice: 100,
	})
	require.NoError(t, err)

	assert.True(t, store.RemoveLot("lot-1"))
	assert.False(t, store.RemoveLot("lot-1"))
	assert.Empty(t, store.ListLots(ListOptions{}))
}

func TestLotStore_FiltersAndOrdering(t *testing.T) {
	store := NewLotStore()

	inputs := []LotInput{
		{LotID: "b", Ticker: "AAPL", BuyDate: testhelpers.MustDate("2024-02-01"), Shares: 1, BuyPrice: 1},
		{LotID: "a", Ticker: "AAPL", BuyDate: testhelpers.MustDate("2024-02-01"), Shares: 1, BuyPrice: 1},
		{LotID: "c", Ticker: "AAPL", BuyDate: testhelpers.MustDate("2024-01-02"), Shares: 1, BuyPrice: 1, Type: LotHypothetical},
		{LotID: "d", Ticker: "MSFT", BuyDate: testhelpers.MustDate("2024-01-02"), Shares: 1, BuyPrice: 1},
	}
	for _, input := range inputs {
		_, err := store.AddLot(input)
		require.NoError(t, err)
	}

	// Buy date first, lot id breaks ties.
	lots := store.ListLots(ListOptions{Ticker: "AAPL"})
	require.Len(t, lots, 3)
	assert.Equal(t, "c", lots[0].LotID)
	assert.Equal(t, "a", lots[1].LotID)
	assert.Equal(t, "b", lots[2].LotID)

	byID := store.ListLots(ListOptions{Ticker: "AAPL", LotIDs: []string{"a"}})
	require.Len(t, byID, 1)
	assert.Equal(t, "a", byID[0].LotID)

	byType := store.ListLots(ListOptions{Ticker: "AAPL", Types: []LotType{LotHypothetical}})
	require.Len(t, byType, 1)
	assert.Equal(t, "c", byType[0].LotID)
}
