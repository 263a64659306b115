// Package handlers provides the HTTP API over the portfolio engine.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/allocation"
	"github.com/finvoice/riskengine/internal/modules/portfolio"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/snapshots"
	"github.com/finvoice/riskengine/internal/modules/stress"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Engine is the portfolio engine as seen by the API.
type Engine interface {
	Valuation(ctx context.Context, portfolioID string, forceRefresh bool) (*valuation.PortfolioValuation, error)
	RiskAssessment(ctx context.Context, portfolioID string) (*risk.Assessment, error)
	StressTest(ctx context.Context, portfolioID string) (*stress.Summary, error)
	Optimize(ctx context.Context, portfolioID string, req allocation.Request) (*allocation.Result, error)
	Snapshot(ctx context.Context, portfolioID string, persistAssessment bool) (*portfolio.SnapshotResult, error)
	History(ctx context.Context, portfolioID string, days int) ([]snapshots.Snapshot, error)
	ActiveEvents(ctx context.Context) ([]domain.CrisisEvent, error)
}

var portfolioIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Handler handles portfolio HTTP requests
type Handler struct {
	engine         Engine
	streamInterval time.Duration
	log            zerolog.Logger
}

// NewHandler creates a new portfolio handler. streamInterval paces the
// websocket valuation stream.
func NewHandler(engine Engine, streamInterval time.Duration, log zerolog.Logger) *Handler {
	if streamInterval <= 0 {
		streamInterval = 30 * time.Second
	}
	return &Handler{
		engine:         engine,
		streamInterval: streamInterval,
		log:            log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetValuation handles GET /api/portfolios/{portfolioId}/valuation
func (h *Handler) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	force := false
	if raw := r.URL.Query().Get("force_refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "force_refresh must be a boolean")
			return
		}
		force = parsed
	}

	v, err := h.engine.Valuation(r.Context(), id, force)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, v)
}

// SnapshotRequest is the body of POST /snapshots
type SnapshotRequest struct {
	PersistAssessment bool `json:"persist_assessment"`
}

// HandleCreateSnapshot handles POST /api/portfolios/{portfolioId}/snapshots.
// A storage failure still answers 200 with persisted=false.
func (h *Handler) HandleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	var req SnapshotRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.engine.Snapshot(r.Context(), id, req.PersistAssessment)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotPersistence) && result != nil {
			h.writeData(w, http.StatusOK, result)
			return
		}
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, result)
}

// HandleGetHistory handles GET /api/portfolios/{portfolioId}/history?days=N
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	days := snapshots.DefaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = snapshots.ClampHistoryDays(parsed)
	}

	history, err := h.engine.History(r.Context(), id, days)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": id,
		"days":         days,
		"snapshots":    history,
	})
}

// HandleGetRisk handles GET /api/portfolios/{portfolioId}/risk
func (h *Handler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	a, err := h.engine.RiskAssessment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, a)
}

// HandleGetStress handles GET /api/portfolios/{portfolioId}/stress
func (h *Handler) HandleGetStress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	summary, err := h.engine.StressTest(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, summary)
}

// HandleOptimize handles POST /api/portfolios/{portfolioId}/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	var req allocation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.engine.Optimize(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleGetCrisisEvents handles GET /api/crisis/events
func (h *Handler) HandleGetCrisisEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.ActiveEvents(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) portfolioID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "portfolioId")
	if !portfolioIDPattern.MatchString(id) {
		h.writeServiceError(w, fmt.Errorf("%w: %q", domain.ErrPortfolioNotFound, id))
		return "", false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPortfolioNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
