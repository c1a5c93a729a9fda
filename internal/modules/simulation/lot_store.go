package simulation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/regret/internal/domain"
)

// LotStore is the in-memory lot repository for simulations. A single
// writer lock guards the uniqueness check on insert; readers get copies.
type LotStore struct {
	mu   sync.Mutex
	lots map[string]Lot
}

// NewLotStore creates an empty store.
func NewLotStore() *LotStore {
	return &LotStore{lots: make(map[string]Lot)}
}

// AddLot validates and registers a lot. Lot IDs are unique within the
// store; a collision fails with ErrDuplicateLotID.
func (s *LotStore) AddLot(input LotInput) (Lot, error) {
	if err := validateLotInput(input); err != nil {
		return Lot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lots[input.LotID]; exists {
		return Lot{}, fmt.Errorf("lot %q: %w", input.LotID, domain.ErrDuplicateLotID)
	}

	now := time.Now().UTC()
	lot := Lot{
		LotID:     input.LotID,
		Ticker:    input.Ticker,
		BuyDate:   domain.Day(input.BuyDate),
		Shares:    input.Shares,
		BuyPrice:  input.BuyPrice,
		Currency:  input.Currency,
		Type:      input.Type,
		Notes:     input.Notes,
		Tags:      append([]string(nil), input.Tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if lot.Type == "" {
		lot.Type = LotReal
	}
	s.lots[lot.LotID] = lot
	return lot, nil
}

// RemoveLot deletes a lot; it reports whether the lot existed.
func (s *LotStore) RemoveLot(lotID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.lots[lotID]
	delete(s.lots, lotID)
	return existed
}

// ListLots returns matching lots sorted by (buy date, lot id).
func (s *LotStore) ListLots(opts ListOptions) []Lot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var allowedIDs map[string]bool
	if len(opts.LotIDs) > 0 {
		allowedIDs = make(map[string]bool, len(opts.LotIDs))
		for _, id := range opts.LotIDs {
			allowedIDs[id] = true
		}
	}
	var allowedTypes map[LotType]bool
	if len(opts.Types) > 0 {
		allowedTypes = make(map[LotType]bool, len(opts.Types))
		for _, t := range opts.Types {
			allowedTypes[t] = true
		}
	}

	var selected []Lot
	for _, lot := range s.lots {
		if opts.Ticker != "" && lot.Ticker != opts.Ticker {
			continue
		}
		if allowedIDs != nil && !allowedIDs[lot.LotID] {
			continue
		}
		if allowedTypes != nil && !allowedTypes[lot.Type] {
			continue
		}
		selected = append(selected, lot)
	}

	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].BuyDate.Equal(selected[j].BuyDate) {
			return selected[i].BuyDate.Before(selected[j].BuyDate)
		}
		return selected[i].LotID < selected[j].LotID
	})
	return selected
}

func validateLotInput(input LotInput) error {
	if input.LotID == "" {
		return fmt.Errorf("lot id is required")
	}
	if input.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if input.Shares <= 0 {
		return fmt.Errorf("shares must be > 0, got %v", input.Shares)
	}
	if input.BuyPrice <= 0 {
		return fmt.Errorf("buy price must be > 0, got %v", input.BuyPrice)
	}
	switch input.Type {
	case "", LotReal:
		// Future buy dates only make sense for lots that never happened.
		if domain.Day(input.BuyDate).After(domain.Day(time.Now())) {
			return fmt.Errorf("future buy date only allowed for hypothetical or assumed lots")
		}
	case LotHypothetical, LotAssumed:
	default:
		return fmt.Errorf("unknown lot type %q", input.Type)
	}
	return nil
}
