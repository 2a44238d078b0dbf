// Package handlers provides HTTP handlers for historical price operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/historical"
	"github.com/rs/zerolog"
)

// Handler handles historical price HTTP requests
type Handler struct {
	prices *historical.PriceStore
	log    zerolog.Logger
}

// NewHandler creates a new historical price handler
func NewHandler(prices *historical.PriceStore, log zerolog.Logger) *Handler {
	return &Handler{
		prices: prices,
		log:    log.With().Str("handler", "historical").Logger(),
	}
}

// HandleGetDailyPrices handles GET /api/historical/prices/daily/{symbol}
func (h *Handler) HandleGetDailyPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	var bars []domain.PriceBar
	var err error
	if start != "" && end != "" {
		bars, err = h.prices.GetRange(symbol, start, end)
	} else {
		limit := 100 // default
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if parsedLimit, parseErr := strconv.Atoi(limitStr); parseErr == nil && parsedLimit > 0 {
				limit = parsedLimit
			}
		}
		bars, err = h.prices.GetRecent(symbol, limit)
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get daily prices")
		http.Error(w, "Failed to get daily prices", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"prices": bars,
			"count":  len(bars),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetSymbols handles GET /api/historical/symbols
func (h *Handler) HandleGetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.prices.Symbols()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get symbols")
		http.Error(w, "Failed to get symbols", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbols": symbols,
			"count":   len(symbols),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleIngestPrices handles POST /api/historical/prices/{symbol}
func (h *Handler) HandleIngestPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	var bars []domain.PriceBar
	if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.prices.UpsertBars(symbol, bars); err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to ingest prices")
		http.Error(w, "Failed to ingest prices", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol":   symbol,
			"ingested": len(bars),
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
