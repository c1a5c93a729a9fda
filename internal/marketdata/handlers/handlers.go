// Package handlers provides the market data ingestion endpoints: bulk
// upserts of daily price bars and FX rates into history.db.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/regret/internal/marketdata"
	"github.com/rs/zerolog"
)

// Handler handles market data HTTP requests
type Handler struct {
	prices *marketdata.PriceRepository
	fx     *marketdata.FXRepository
	log    zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(prices *marketdata.PriceRepository, fx *marketdata.FXRepository, log zerolog.Logger) *Handler {
	return &Handler{
		prices: prices,
		fx:     fx,
		log:    log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleUpsertBars handles POST /api/marketdata/prices
func (h *Handler) HandleUpsertBars(w http.ResponseWriter, r *http.Request) {
	var bars []marketdata.PriceBar
	if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(bars) == 0 {
		http.Error(w, "At least one bar is required", http.StatusBadRequest)
		return
	}
	for _, bar := range bars {
		if bar.Symbol == "" || bar.Date.IsZero() {
			http.Error(w, "Every bar needs a symbol and a date", http.StatusBadRequest)
			return
		}
	}

	if err := h.prices.UpsertBars(bars); err != nil {
		h.log.Error().Err(err).Int("bars", len(bars)).Msg("Failed to upsert bars")
		http.Error(w, "Failed to upsert bars", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"upserted": len(bars)},
	})
}

// HandleUpsertRates handles POST /api/marketdata/rates
func (h *Handler) HandleUpsertRates(w http.ResponseWriter, r *http.Request) {
	var rates []marketdata.Rate
	if err := json.NewDecoder(r.Body).Decode(&rates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(rates) == 0 {
		http.Error(w, "At least one rate is required", http.StatusBadRequest)
		return
	}
	for _, rate := range rates {
		if rate.From == "" || rate.To == "" || rate.Date.IsZero() || rate.Rate <= 0 {
			http.Error(w, "Every rate needs a currency pair, a date and a positive rate", http.StatusBadRequest)
			return
		}
	}

	if err := h.fx.UpsertRates(rates); err != nil {
		h.log.Error().Err(err).Int("rates", len(rates)).Msg("Failed to upsert rates")
		http.Error(w, "Failed to upsert rates", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"upserted": len(rates)},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
