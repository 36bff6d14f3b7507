// Package api exposes the day data-entry endpoints and operational
// endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/store"
)

// Stats aggregates the counters the stats endpoint reports.
type Stats struct {
	Cycles      uint64 `json:"cycles"`
	Alerts      uint64 `json:"alerts"`
	Errors      uint64 `json:"errors"`
	Subscribers int    `json:"subscribers"`
}

// Handler serves the day data-entry API and operational endpoints.
type Handler struct {
	store store.Store
	stats func() Stats
}

// NewHandler creates an API handler.
func NewHandler(st store.Store, stats func() Stats) *Handler {
	return &Handler{store: st, stats: stats}
}

// SaveDayRequest is the data-entry payload: a day of hourly thresholds plus
// the daily unloading capacity in MW. Values arrive keyed hour1..hour24 and
// tolerate quoted numbers.
type SaveDayRequest struct {
	Installation string                 `json:"installation"`
	Date         string                 `json:"date"`
	Capacity     json.Number            `json:"capacity"`
	Values       map[string]json.Number `json:"values"`
}

// apiResponse is the envelope every API endpoint answers with.
type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SaveDay handles POST /api/save-data: validates the full day and persists
// it in one store transaction. Capacity is entered in MW and stored in kW.
func (h *Handler) SaveDay(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	var req SaveDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	capacity, err := req.Capacity.Float64()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "capacity is not numeric")
		return
	}

	rec := models.DayRecord{
		Installation: req.Installation,
		Date:         req.Date,
		Capacity:     capacity * 1000, // MW entered, kW stored
	}

	for i := 1; i <= 24; i++ {
		raw, ok := req.Values[fmt.Sprintf("hour%d", i)]
		if !ok || raw == "" {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("incomplete data: missing value for hour %d", i))
			return
		}
		v, err := raw.Float64()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("value for hour %d is not numeric", i))
			return
		}
		rec.Hours[i-1] = v
	}

	if err := rec.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SaveDay(r.Context(), rec); err != nil {
		log.Error().Err(err).Str("installation", rec.Installation).Str("date", rec.Date).Msg("day save failed")
		h.writeError(w, http.StatusInternalServerError, "failed to save day record")
		return
	}

	log.Info().Str("installation", rec.Installation).Str("date", rec.Date).Msg("day record saved")
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "data saved"})
}

// GetDay handles GET /api/get-data?installation=&date=.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	installation := r.URL.Query().Get("installation")
	date := r.URL.Query().Get("date")
	if installation == "" || date == "" {
		h.writeError(w, http.StatusBadRequest, "parameters 'installation' and 'date' are required")
		return
	}

	rows, err := h.store.Day(r.Context(), installation, date)
	if err != nil {
		log := logger.WithComponent("api")
		log.Error().Err(err).Str("installation", installation).Str("date", date).Msg("day read failed")
		h.writeError(w, http.StatusInternalServerError, "failed to read day record")
		return
	}

	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: rows})
}

// Ping handles GET /ping, the console keep-alive probe.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// Health handles GET /health: reachable store means healthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.stats())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, apiResponse{Success: false, Message: message})
}
