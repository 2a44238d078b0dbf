// Package handlers provides HTTP handlers for recommendation operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles recommendation HTTP requests
type Handler struct {
	service *services.RecommendationService
	log     zerolog.Logger
}

// NewHandler creates a new recommendation handler
func NewHandler(service *services.RecommendationService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "recommendations").Logger(),
	}
}

// RegisterRoutes registers all recommendation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/recommendations", func(r chi.Router) {
		r.Get("/{date}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetByDate(w, r, chi.URLParam(r, "date"))
		})
		r.Post("/refresh", h.HandleRefresh)
	})
}

// HandleGetByDate handles GET /api/recommendations/{date}
func (h *Handler) HandleGetByDate(w http.ResponseWriter, r *http.Request, date string) {
	recs, err := h.service.GetByDate(date)
	if err != nil {
		h.log.Error().Err(err).Str("date", date).Msg("Failed to get recommendations")
		http.Error(w, "Failed to get recommendations", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"date":            date,
			"recommendations": recs,
			"count":           len(recs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleRefresh handles POST /api/recommendations/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	written, err := h.service.RefreshRange(req.StartDate, req.EndDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to refresh recommendations")
		http.Error(w, "Failed to refresh recommendations", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"dates_written": written,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
