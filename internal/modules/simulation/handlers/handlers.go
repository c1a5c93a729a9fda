// Package handlers provides HTTP handlers for what-if simulations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
	"github.com/aristath/regret/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles simulation HTTP requests
type Handler struct {
	store     *simulation.LotStore
	simulator *simulation.Simulator
	prices    marketdata.PriceSource
	log       zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(store *simulation.LotStore, simulator *simulation.Simulator, prices marketdata.PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		simulator: simulator,
		prices:    prices,
		log:       log.With().Str("handler", "simulation").Logger(),
	}
}

// HandleAddLot handles POST /api/simulation/lots
func (h *Handler) HandleAddLot(w http.ResponseWriter, r *http.Request) {
	var input simulation.LotInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lot, err := h.store.AddLot(input)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateLotID) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"data": lot})
}

// HandleListLots handles GET /api/simulation/lots?ticker=
func (h *Handler) HandleListLots(w http.ResponseWriter, r *http.Request) {
	lots := h.store.ListLots(simulation.ListOptions{
		Ticker: r.URL.Query().Get("ticker"),
	})

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"lots":  lots,
			"count": len(lots),
		},
	})
}

// HandleRemoveLot handles DELETE /api/simulation/lots/{lot_id}
func (h *Handler) HandleRemoveLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lot_id")
	if !h.store.RemoveLot(lotID) {
		http.Error(w, "Lot not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSimulateSeries handles POST /api/simulation/series
func (h *Handler) HandleSimulateSeries(w http.ResponseWriter, r *http.Request) {
	var req simulation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	series, err := h.simulator.SimulateUnrealizedSeries(h.prices, h.store, req)
	if err != nil {
		if errors.Is(err, domain.ErrMissingPrice) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": series})
}

// TargetRequest is the body of a target inversion call.
type TargetRequest struct {
	Ticker       string               `json:"ticker"`
	TargetProfit float64              `json:"target_profit"`
	LotIDs       []string             `json:"lot_ids,omitempty"`
	Types        []simulation.LotType `json:"types,omitempty"`
}

// HandleComputeTarget handles POST /api/simulation/target
func (h *Handler) HandleComputeTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}

	result, err := h.simulator.ComputeTargetFromPoint(h.store, req.Ticker, req.TargetProfit,
		simulation.ListOptions{LotIDs: req.LotIDs, Types: req.Types})
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenShares) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
