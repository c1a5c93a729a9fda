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

func newSnapshotRepo(t *testing.T) *SnapshotRepository {
	t.Helper()
	db := testhelpers.NewTestDB(t, "portfolio")
	repo, err := NewSnapshotRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func snapshotRow(symbol, date string, hypo float64) domain.DailySnapshot {
	return domain.DailySnapshot{
		Symbol:                symbol,
		Date:                  testhelpers.MustDate(date),
		HypoLiquidationPLBase: hypo,
		FxRate:                1,
	}
}

func TestSnapshotRepository_ReplaceRange(t *testing.T) {
	repo := newSnapshotRepo(t)

	initial := []domain.DailySnapshot{
		snapshotRow("AAPL", "2024-09-02", 10),
		snapshotRow("AAPL", "2024-09-03", 20),
		snapshotRow("AAPL", "2024-09-04", 30),
	}
	require.NoError(t, repo.ReplaceRange("AAPL",
		testhelpers.MustDate("2024-09-02"), testhelpers.MustDate("2024-09-04"), initial))

	// Replacing the middle of the range swaps those rows and leaves the
	// rest untouched.
	replacement := []domain.DailySnapshot{
		snapshotRow("AAPL", "2024-09-03", 99),
	}
	require.NoError(t, repo.ReplaceRange("AAPL",
		testhelpers.MustDate("2024-09-03"), testhelpers.MustDate("2024-09-03"), replacement))

	rows, err := repo.GetRange("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.InDelta(t, 10, rows[0].HypoLiquidationPLBase, 1e-9)
	assert.InDelta(t, 99, rows[1].HypoLiquidationPLBase, 1e-9)
	assert.InDelta(t, 30, rows[2].HypoLiquidationPLBase, 1e-9)
}

func TestSnapshotRepository_ReplaceRangeIsPerSymbol(t *testing.T) {
	repo := newSnapshotRepo(t)

	require.NoError(t, repo.ReplaceRange("AAPL",
		testhelpers.MustDate("2024-09-02"), testhelpers.MustDate("2024-09-02"),
		[]domain.DailySnapshot{snapshotRow("AAPL", "2024-09-02", 10)}))
	require.NoError(t, repo.ReplaceRange("MSFT",
		testhelpers.MustDate("2024-09-02"), testhelpers.MustDate("2024-09-02"),
		[]domain.DailySnapshot{snapshotRow("MSFT", "2024-09-02", 20)}))

	rows, err := repo.GetRange("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0].Symbol)
}

func TestSnapshotRepository_GetRangeWindow(t *testing.T) {
	repo := newSnapshotRepo(t)

	series := []domain.DailySnapshot{
		snapshotRow("AAPL", "2024-09-02", 10),
		snapshotRow("AAPL", "2024-09-03", 20),
		snapshotRow("AAPL", "2024-09-04", 30),
	}
	require.NoError(t, repo.ReplaceRange("AAPL",
		testhelpers.MustDate("2024-09-02"), testhelpers.MustDate("2024-09-04"), series))

	rows, err := repo.GetRange("AAPL",
		testhelpers.MustDate("2024-09-03"), testhelpers.MustDate("2024-09-04"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, testhelpers.MustDate("2024-09-03"), rows[0].Date)
}

func TestSnapshotRepository_GetLatest(t *testing.T) {
	repo := newSnapshotRepo(t)

	latest, err := repo.GetLatest("AAPL")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.ReplaceRange("AAPL",
		testhelpers.MustDate("2024-09-02"), testhelpers.MustDate("2024-09-03"),
		[]domain.DailySnapshot{
			snapshotRow("AAPL", "2024-09-02", 10),
			snapshotRow("AAPL", "2024-09-03", 20),
		}))

	latest, err = repo.GetLatest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, testhelpers.MustDate("2024-09-03"), latest.Date)
	assert.InDelta(t, 20, latest.HypoLiquidationPLBase, 1e-9)
}
