package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all simulation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/simulation", func(r chi.Router) {
		r.Post("/lots", h.HandleAddLot)
		r.Get("/lots", h.HandleListLots)
		r.Delete("/lots/{lot_id}", h.HandleRemoveLot)
		r.Post("/series", h.HandleSimulateSeries)
		r.Post("/target", h.HandleComputeTarget)
	})
}
