// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/modules/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles ledger HTTP requests
type Handler struct {
	transactions    *ledger.TransactionRepository
	defaultStrategy domain.MatchingStrategy
	log             zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(transactions *ledger.TransactionRepository, defaultStrategy domain.MatchingStrategy, log zerolog.Logger) *Handler {
	return &Handler{
		transactions:    transactions,
		defaultStrategy: defaultStrategy,
		log:             log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleListTransactions handles GET /api/ledger/transactions?symbol=
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol query parameter is required", http.StatusBadRequest)
		return
	}

	txs, err := h.transactions.GetBySymbol(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to list transactions")
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol":       symbol,
			"transactions": txs,
			"count":        len(txs),
		},
	})
}

// HandleCreateTransaction handles POST /api/ledger/transactions
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateTransaction(tx); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inserted, err := h.transactions.Insert(tx)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", tx.Symbol).Msg("Failed to insert transaction")
		http.Error(w, "Failed to insert transaction", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"data": inserted})
}

// HandleGetLots handles GET /api/ledger/lots/{symbol}. The lot state is
// always a fresh rebuild of the journal, never a stored materialization.
func (h *Handler) HandleGetLots(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	strategy := h.defaultStrategy
	if s := r.URL.Query().Get("strategy"); s != "" {
		strategy = domain.MatchingStrategy(s)
		if !strategy.Valid() {
			http.Error(w, "Invalid matching strategy", http.StatusBadRequest)
			return
		}
	}

	txs, err := h.transactions.GetBySymbol(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load transactions")
		http.Error(w, "Failed to load transactions", http.StatusInternalServerError)
		return
	}

	result, err := ledger.Rebuild(txs, ledger.RebuildOptions{Strategy: strategy})
	if err != nil {
		if errors.Is(err, domain.ErrOverselling) || errors.Is(err, domain.ErrLotNotFound) ||
			errors.Is(err, domain.ErrUnsortedInput) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Rebuild failed")
		http.Error(w, "Rebuild failed", http.StatusInternalServerError)
		return
	}
	result.Symbol = symbol

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

func validateTransaction(tx domain.Transaction) error {
	if tx.Symbol == "" {
		return errors.New("symbol is required")
	}
	if tx.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	switch tx.Type {
	case domain.TransactionBuy, domain.TransactionSell:
		if tx.Quantity <= 0 {
			return errors.New("quantity must be > 0")
		}
		if tx.Price < 0 {
			return errors.New("price must be >= 0")
		}
	case domain.TransactionDividend, domain.TransactionFee:
		if tx.Price < 0 {
			return errors.New("amount must be >= 0")
		}
	case domain.TransactionSplit:
		if tx.SplitRatio <= 0 {
			return errors.New("split_ratio must be > 0")
		}
	default:
		return errors.New("unknown transaction type")
	}
	return nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
