// Package handlers provides HTTP handlers for snapshot operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetSeries handles GET /api/snapshots/{symbol}?from=&to=
func (h *Handler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	series, err := h.service.GetSeries(symbol, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to read snapshot series")
		http.Error(w, "Failed to read snapshot series", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"rows":   series,
			"count":  len(series),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRecompute handles POST /api/snapshots/{symbol}/recompute
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.service.RecomputeSymbol(r.Context(), symbol, from, to)
	if err != nil {
		if errors.Is(err, domain.ErrMissingPrice) || errors.Is(err, domain.ErrMissingFxRate) ||
			errors.Is(err, domain.ErrOverselling) || errors.Is(err, domain.ErrUnsortedInput) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Recompute failed")
		http.Error(w, "Recompute failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"rows":   rows,
		},
	})
}

// HandleGetRegret handles GET /api/snapshots/{symbol}/regret
func (h *Handler) HandleGetRegret(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	regret, err := h.service.Regret(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to compute regret")
		http.Error(w, "Failed to compute regret", http.StatusInternalServerError)
		return
	}

	latest, err := h.service.GetLatest(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to read latest snapshot")
		http.Error(w, "Failed to read latest snapshot", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"regret": regret,
			"latest": latest,
		},
	})
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if s := r.URL.Query().Get("from"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return from, to, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		from = parsed
	}
	if s := r.URL.Query().Get("to"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return from, to, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		to = parsed
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return from, to, errors.New("from cannot be after to")
	}
	return from, to, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
