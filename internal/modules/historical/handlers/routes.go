package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all historical price routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/historical", func(r chi.Router) {
		r.Get("/symbols", h.HandleGetSymbols)

		r.Route("/prices", func(r chi.Router) {
			r.Get("/daily/{symbol}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetDailyPrices(w, r, chi.URLParam(r, "symbol"))
			})
			r.Post("/{symbol}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleIngestPrices(w, r, chi.URLParam(r, "symbol"))
			})
		})
	})
}
