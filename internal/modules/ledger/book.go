package ledger

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/google/uuid"
)

// Book is the stateful per-symbol lot fold. Lots live in an arena indexed
// by insertion order; the open set is tracked by a heap keyed on open date
// (min-heap for FIFO, max-heap for LIFO) so long histories avoid repeated
// scans. A Book is exclusively owned by its builder and is not safe for
// concurrent use.
type Book struct {
	symbol string
	opts   RebuildOptions

	arena []domain.Lot   // all lots ever opened, insertion order
	open  *lotHeap       // arena indices of (possibly) open lots
	byID  map[string]int // lot_id -> arena index

	realized []domain.RealizedEvent
	cash     float64 // dividends less fee charges; never touches lot quantities
	shortQty float64 // unmatched sell remainder when AllowNegativePositions

	lastTS time.Time
	seq    int64
}

// NewBook creates an empty book for one symbol.
func NewBook(symbol string, opts RebuildOptions) (*Book, error) {
	if opts.Strategy == "" {
		opts.Strategy = domain.MatchFIFO
	}
	if !opts.Strategy.Valid() {
		return nil, fmt.Errorf("unknown matching strategy %q", opts.Strategy)
	}
	return &Book{
		symbol: symbol,
		opts:   opts,
		open:   newLotHeap(opts.Strategy == domain.MatchLIFO),
		byID:   make(map[string]int),
	}, nil
}

// Apply processes one transaction. Transactions must arrive in ascending
// timestamp order; any failure leaves the book unusable for this pass.
func (b *Book) Apply(tx domain.Transaction) error {
	if tx.Symbol != b.symbol {
		return fmt.Errorf("transaction %s belongs to %q, book holds %q", tx.ID, tx.Symbol, b.symbol)
	}
	if !b.lastTS.IsZero() && tx.Timestamp.Before(b.lastTS) {
		return fmt.Errorf("transaction %s at %s after %s: %w",
			tx.ID, tx.Timestamp.Format(time.RFC3339), b.lastTS.Format(time.RFC3339), domain.ErrUnsortedInput)
	}
	b.lastTS = tx.Timestamp

	switch tx.Type {
	case domain.TransactionBuy:
		return b.applyBuy(tx)
	case domain.TransactionSell:
		return b.applySell(tx)
	case domain.TransactionDividend:
		// Cash only; open quantities must not move.
		b.cash += tx.Quantity*tx.Price - tx.Fee - tx.Tax
		return nil
	case domain.TransactionFee:
		b.cash -= tx.Fee
		return nil
	case domain.TransactionSplit:
		return b.applySplit(tx)
	default:
		return fmt.Errorf("transaction %s has unknown type %q", tx.ID, tx.Type)
	}
}

func (b *Book) applyBuy(tx domain.Transaction) error {
	if tx.Quantity <= 0 {
		return fmt.Errorf("buy %s has non-positive quantity %v", tx.ID, tx.Quantity)
	}

	lotID := tx.ID
	if lotID == "" {
		lotID = uuid.New().String()
	}
	if _, exists := b.byID[lotID]; exists {
		return fmt.Errorf("buy %s: %w", lotID, domain.ErrDuplicateLotID)
	}

	// Fees and taxes are allocated into the cost basis at open.
	costPerShare := (tx.Price*tx.Quantity + tx.Fee + tx.Tax) / tx.Quantity

	idx := len(b.arena)
	b.arena = append(b.arena, domain.Lot{
		LotID:        lotID,
		Symbol:       b.symbol,
		OpenedAt:     tx.Timestamp,
		Currency:     tx.Currency,
		Seq:          b.nextSeq(),
		QtyOpen:      tx.Quantity,
		QtyOriginal:  tx.Quantity,
		CostPerShare: costPerShare,
	})
	b.byID[lotID] = idx
	b.open.push(idx, &b.arena[idx])
	return nil
}

func (b *Book) applySell(tx domain.Transaction) error {
	if tx.Quantity <= 0 {
		return fmt.Errorf("sell %s has non-positive quantity %v", tx.ID, tx.Quantity)
	}

	var matched, costClosed float64
	var err error
	if b.opts.Strategy == domain.MatchSpecificID {
		matched, costClosed, err = b.consumeSpecific(tx)
	} else {
		matched, costClosed = b.consumeOrdered(tx.Quantity)
	}
	if err != nil {
		return err
	}

	remaining := tx.Quantity - matched
	if remaining > 0 {
		if !b.opts.AllowNegativePositions {
			return fmt.Errorf("sell %s of %v shares, %v unmatched: %w",
				tx.ID, tx.Quantity, remaining, domain.ErrOverselling)
		}
		b.shortQty += remaining
	}

	// One aggregated event per sell transaction, regardless of how many
	// lots it closed. Sell fees and taxes reduce the proceeds in full.
	proceeds := matched*tx.Price - tx.Fee - tx.Tax
	b.realized = append(b.realized, domain.RealizedEvent{
		ID:              uuid.New().String(),
		Date:            tx.Timestamp,
		Symbol:          b.symbol,
		TransactionID:   tx.ID,
		Currency:        tx.Currency,
		QtyClosed:       matched,
		Proceeds:        proceeds,
		CostBasisClosed: costClosed,
		Fees:            tx.Fee,
		Taxes:           tx.Tax,
		RealizedPL:      proceeds - costClosed,
	})
	return nil
}

// consumeOrdered closes lots in heap order (FIFO or LIFO) until the sell
// quantity is allocated or lots are exhausted. Partially consumed lots are
// pushed back so they stay first in line.
func (b *Book) consumeOrdered(qty float64) (matched, costClosed float64) {
	remaining := qty
	for remaining > 0 {
		idx, ok := b.open.pop(b.arena)
		if !ok {
			break
		}
		lot := &b.arena[idx]
		take := min(remaining, lot.QtyOpen)
		lot.QtyOpen -= take
		remaining -= take
		matched += take
		costClosed += take * lot.CostPerShare
		if !lot.Closed() {
			b.open.push(idx, lot)
		}
	}
	return matched, costClosed
}

// consumeSpecific closes exactly the lots the transaction references, in
// the order given. Referencing a missing or fully closed lot is fatal.
func (b *Book) consumeSpecific(tx domain.Transaction) (matched, costClosed float64, err error) {
	if len(tx.LotIDs) == 0 {
		return 0, 0, fmt.Errorf("sell %s uses SPECIFIC_ID but references no lots: %w", tx.ID, domain.ErrLotNotFound)
	}
	remaining := tx.Quantity
	for _, lotID := range tx.LotIDs {
		idx, ok := b.byID[lotID]
		if !ok || b.arena[idx].Closed() {
			return 0, 0, fmt.Errorf("sell %s references lot %q: %w", tx.ID, lotID, domain.ErrLotNotFound)
		}
		if remaining <= 0 {
			break
		}
		lot := &b.arena[idx]
		take := min(remaining, lot.QtyOpen)
		lot.QtyOpen -= take
		remaining -= take
		matched += take
		costClosed += take * lot.CostPerShare
	}
	return matched, costClosed, nil
}

// applySplit adjusts every open lot atomically as of the split's effective
// date, before any later transaction is processed. Quantities multiply by
// the ratio, cost per share divides by it; total cost basis is unchanged.
func (b *Book) applySplit(tx domain.Transaction) error {
	ratio := tx.SplitRatio
	if ratio <= 0 {
		return fmt.Errorf("split %s has invalid ratio %v", tx.ID, ratio)
	}
	for i := range b.arena {
		lot := &b.arena[i]
		if lot.Closed() {
			continue
		}
		lot.QtyOpen *= ratio
		lot.QtyOriginal *= ratio
		lot.CostPerShare /= ratio
	}
	return nil
}

// SharesOpen returns the total open quantity across all lots, net of any
// tolerated short remainder.
func (b *Book) SharesOpen() float64 {
	total := 0.0
	for i := range b.arena {
		total += b.arena[i].QtyOpen
	}
	return total - b.shortQty
}

// CostBasisOpen returns the total remaining cost basis of open lots.
func (b *Book) CostBasisOpen() float64 {
	total := 0.0
	for i := range b.arena {
		total += b.arena[i].CostBasisOpen()
	}
	return total
}

// OpenLots returns copies of the lots still open, in insertion order.
func (b *Book) OpenLots() []domain.Lot {
	var lots []domain.Lot
	for i := range b.arena {
		if !b.arena[i].Closed() {
			lots = append(lots, b.arena[i])
		}
	}
	return lots
}

// RealizedTotal returns the cumulative realized P&L so far.
func (b *Book) RealizedTotal() float64 {
	total := 0.0
	for i := range b.realized {
		total += b.realized[i].RealizedPL
	}
	return total
}

// LotCount returns the number of currently open lots.
func (b *Book) LotCount() int {
	count := 0
	for i := range b.arena {
		if !b.arena[i].Closed() {
			count++
		}
	}
	return count
}

// Result snapshots the book into a RebuildResult.
func (b *Book) Result() *RebuildResult {
	events := make([]domain.RealizedEvent, len(b.realized))
	copy(events, b.realized)
	return &RebuildResult{
		Symbol:         b.symbol,
		OpenLots:       b.OpenLots(),
		RealizedEvents: events,
		SharesOpen:     b.SharesOpen(),
		CostBasisOpen:  b.CostBasisOpen(),
		ShortQty:       b.shortQty,
		CashBalance:    b.cash,
	}
}

func (b *Book) nextSeq() int64 {
	b.seq++
	return b.seq
}

// lotHeap orders open-lot arena indices by (OpenedAt, Seq), ascending for
// FIFO and descending for LIFO. Entries for lots that closed out of band
// (SPECIFIC_ID sells) are skipped lazily on pop.
type lotHeap struct {
	entries []heapEntry
	lifo    bool
}

type heapEntry struct {
	openedAt time.Time
	seq      int64
	idx      int
}

func newLotHeap(lifo bool) *lotHeap {
	return &lotHeap{lifo: lifo}
}

func (h *lotHeap) Len() int { return len(h.entries) }

func (h *lotHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if !a.openedAt.Equal(b.openedAt) {
		if h.lifo {
			return a.openedAt.After(b.openedAt)
		}
		return a.openedAt.Before(b.openedAt)
	}
	if h.lifo {
		return a.seq > b.seq
	}
	return a.seq < b.seq
}

func (h *lotHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *lotHeap) Push(x interface{}) { h.entries = append(h.entries, x.(heapEntry)) }

func (h *lotHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	entry := old[n-1]
	h.entries = old[:n-1]
	return entry
}

func (h *lotHeap) push(idx int, lot *domain.Lot) {
	heap.Push(h, heapEntry{openedAt: lot.OpenedAt, seq: lot.Seq, idx: idx})
}

// pop returns the next open lot's arena index, skipping stale entries.
func (h *lotHeap) pop(arena []domain.Lot) (int, bool) {
	for h.Len() > 0 {
		entry := heap.Pop(h).(heapEntry)
		if !arena[entry.idx].Closed() {
			return entry.idx, true
		}
	}
	return 0, false
}
