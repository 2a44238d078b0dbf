package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backtest", func(r chi.Router) {
		r.Post("/run", h.HandleRun)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.HandleListRuns)
			r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetRun(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/{id}/trades", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetTrades(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/{id}/valuations", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetValuations(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/{id}/report", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetReport(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}
