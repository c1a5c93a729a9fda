package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/marketdata", func(r chi.Router) {
		r.Post("/prices", h.HandleUpsertBars)
		r.Post("/rates", h.HandleUpsertRates)
	})
}
