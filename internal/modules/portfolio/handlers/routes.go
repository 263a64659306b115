package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the portfolio and crisis routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios/{portfolioId}", func(r chi.Router) {
		r.Get("/valuation", h.HandleGetValuation)
		r.Get("/valuation/stream", h.HandleValuationStream) // websocket
		r.Post("/snapshots", h.HandleCreateSnapshot)
		r.Get("/history", h.HandleGetHistory)
		r.Get("/risk", h.HandleGetRisk)
		r.Get("/stress", h.HandleGetStress)
		r.Post("/optimize", h.HandleOptimize)
	})

	r.Get("/crisis/events", h.HandleGetCrisisEvents)
}
