package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/cache"
	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/engine"
	"github.com/aristath/advisor/internal/strategy"
)

// handlers holds the dependencies of all HTTP handlers
type handlers struct {
	instruments map[string]bool
	ordered     []string
	engine      *engine.Engine
	cache       *cache.Cache
	registry    *strategy.Registry
	log         zerolog.Logger
	startedAt   time.Time
}

func newHandlers(cfg Config) *handlers {
	tracked := make(map[string]bool, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		tracked[inst] = true
	}
	return &handlers{
		instruments: tracked,
		ordered:     cfg.Instruments,
		engine:      cfg.Engine,
		cache:       cfg.Cache,
		registry:    cfg.Registry,
		log:         cfg.Log.With().Str("component", "handlers").Logger(),
		startedAt:   time.Now(),
	}
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// handleHealth handles GET /health
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": engine.Version,
	})
}

// handleInstruments handles GET /api/v1/instruments
func (h *handlers) handleInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ordered)
}

// handleGetRecommendation handles GET /api/v1/recommendations/{instrument}.
// Serves the cached Recommendation for the bar or builds one through the
// single-flight guard.
func (h *handlers) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")
	if !h.instruments[instrument] {
		writeError(w, http.StatusNotFound, "not_tracked")
		return
	}

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request")
			return
		}
		asOf = parsed.UTC()
	}

	rec, err := h.buildThroughCache(r.Context(), instrument, asOf)
	if err != nil {
		h.writeEngineError(w, instrument, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleRefreshRecommendation handles
// POST /api/v1/recommendations/{instrument}/refresh: invalidates the
// instrument's entries and rebuilds for the current bar.
func (h *handlers) handleRefreshRecommendation(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")
	if !h.instruments[instrument] {
		writeError(w, http.StatusNotFound, "not_tracked")
		return
	}

	h.cache.Invalidate(instrument)

	rec, err := h.buildThroughCache(r.Context(), instrument, time.Now().UTC())
	if err != nil {
		h.writeEngineError(w, instrument, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) buildThroughCache(ctx context.Context, instrument string, asOf time.Time) (*domain.Recommendation, error) {
	key := cache.NewKey(instrument, h.engine.Timeframe(), asOf)
	return h.cache.GetOrBuild(ctx, key, func(ctx context.Context) (*domain.Recommendation, error) {
		return h.engine.Recommend(ctx, instrument, asOf)
	})
}

func (h *handlers) writeEngineError(w http.ResponseWriter, instrument string, err error) {
	h.log.Error().Err(err).Str("instrument", instrument).Msg("Recommendation failed")
	if errors.Is(err, domain.ErrNoData) {
		writeError(w, http.StatusServiceUnavailable, "no_data")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal")
}

// strategyRecord is the wire shape of one registry entry
type strategyRecord struct {
	Name     string            `json:"name"`
	Enabled  bool              `json:"enabled"`
	Weight   float64           `json:"weight"`
	Metadata strategy.Metadata `json:"metadata"`
}

func toStrategyRecord(e strategy.Entry) strategyRecord {
	return strategyRecord{
		Name:     e.Metadata.Name,
		Enabled:  e.Enabled,
		Weight:   e.Weight,
		Metadata: e.Metadata,
	}
}

// handleListStrategies handles GET /api/v1/strategies
func (h *handlers) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()
	records := make([]strategyRecord, 0, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		records = append(records, toStrategyRecord(e))
	}
	writeJSON(w, http.StatusOK, records)
}

// updateStrategyRequest is the body of PUT /api/v1/strategies/{name}
type updateStrategyRequest struct {
	Enabled *bool    `json:"enabled"`
	Weight  *float64 `json:"weight"`
}

// handleUpdateStrategy handles PUT /api/v1/strategies/{name}.
// Enabled and weight apply atomically; changes take effect on the next
// engine run.
func (h *handlers) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req updateStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if req.Weight != nil && *req.Weight < 0 {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	entry, err := h.registry.Update(name, req.Enabled, req.Weight)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_strategy")
		return
	}
	writeJSON(w, http.StatusOK, toStrategyRecord(entry))
}
