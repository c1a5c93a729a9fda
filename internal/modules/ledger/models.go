// Package ledger implements the lot accounting engine: it folds an ordered
// transaction stream into open lots and realized P&L events under a
// configurable matching strategy (FIFO, LIFO, SPECIFIC_ID).
package ledger

import (
	"github.com/aristath/regret/internal/domain"
)

// RebuildOptions configures a rebuild pass.
type RebuildOptions struct {
	Strategy domain.MatchingStrategy

	// AllowNegativePositions tolerates sells that exceed open shares
	// (manual/out-of-band adjustment mode). The unmatched remainder is
	// tracked as a negative quantity with zero cost basis; realized P&L is
	// computed on the matched portion only. Default (false) rejects the
	// sell with ErrOverselling.
	AllowNegativePositions bool
}

// RebuildResult is the complete output of one rebuild pass over a single
// symbol's transactions.
type RebuildResult struct {
	Symbol         string                 `json:"symbol"`
	OpenLots       []domain.Lot           `json:"open_lots"`
	RealizedEvents []domain.RealizedEvent `json:"realized_events"`
	SharesOpen     float64                `json:"shares_open"`
	CostBasisOpen  float64                `json:"cost_basis_open"`
	ShortQty       float64                `json:"short_qty,omitempty"` // only with AllowNegativePositions
	CashBalance    float64                `json:"cash_balance"`        // dividends less fee charges
}

// Rebuild folds the ordered transaction list of a single symbol into open
// lots and realized events. It is a pure function of its inputs: calling it
// twice on the same list yields identical output, so replays and backfills
// are idempotent.
//
// Transactions must be sorted ascending by timestamp (Seq breaks ties);
// a timestamp decrease fails with ErrUnsortedInput. All failure modes are
// fatal for the whole pass - no partial lot state is ever returned.
func Rebuild(transactions []domain.Transaction, opts RebuildOptions) (*RebuildResult, error) {
	if len(transactions) == 0 {
		return &RebuildResult{}, nil
	}

	book, err := NewBook(transactions[0].Symbol, opts)
	if err != nil {
		return nil, err
	}
	for i := range transactions {
		if err := book.Apply(transactions[i]); err != nil {
			return nil, err
		}
	}
	return book.Result(), nil
}
