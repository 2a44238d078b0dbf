// Package handlers provides HTTP handlers for backtest operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/backtest"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/services"
	"github.com/rs/zerolog"
)

// Handler handles backtest HTTP requests
type Handler struct {
	service *services.BacktestService
	log     zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(service *services.BacktestService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "backtest").Logger(),
	}
}

// HandleRun handles POST /api/backtest/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req services.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	runID, bundle, err := h.service.Run(req)
	if err != nil {
		if errors.Is(err, backtest.ErrNoTradingDays) {
			h.log.Warn().Err(err).Msg("Backtest rejected: no trading days")
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Msg("Backtest run failed")
		http.Error(w, "Backtest run failed", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":  runID,
			"stats":   bundle.Result.Stats,
			"metrics": bundle.Metrics,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListRuns handles GET /api/backtest/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	runs, err := h.service.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetRun handles GET /api/backtest/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	bundle, err := h.service.GetBundle(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}
	if bundle == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":  runID,
			"config":  bundle.Result.Config,
			"stats":   bundle.Result.Stats,
			"metrics": bundle.Metrics,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetTrades handles GET /api/backtest/runs/{id}/trades
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request, runID string) {
	bundle, err := h.service.GetBundle(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load run trades")
		http.Error(w, "Failed to load run trades", http.StatusInternalServerError)
		return
	}
	if bundle == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"run_id": runID,
			"trades": bundle.Result.Trades,
			"count":  len(bundle.Result.Trades),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetValuations handles GET /api/backtest/runs/{id}/valuations
func (h *Handler) HandleGetValuations(w http.ResponseWriter, r *http.Request, runID string) {
	bundle, err := h.service.GetBundle(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load run valuations")
		http.Error(w, "Failed to load run valuations", http.StatusInternalServerError)
		return
	}
	if bundle == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":     runID,
			"valuations": bundle.Result.Valuations,
			"returns":    bundle.Result.Returns,
			"count":      len(bundle.Result.Valuations),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetReport handles GET /api/backtest/runs/{id}/report
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request, runID string) {
	report, err := h.service.Report(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to render report")
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}
	if report == "" {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
