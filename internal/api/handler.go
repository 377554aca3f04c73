// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"fork-harvester/internal/activity"
	"fork-harvester/internal/database"
	"fork-harvester/internal/model"
)

// Handler is the container for API dependencies.
type Handler struct {
	db         database.Querier
	healthyMin int
	logger     *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
// healthyMin is the threshold used by the ?healthy=true filter.
func NewRouter(db database.Querier, healthyMin int, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:         db,
		healthyMin: healthyMin,
		logger:     logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/forks/{owner}/{name}", h.getFork)
		r.Get("/repos/{owner}/{name}/forks", h.listForks)
		r.Get("/stats", h.getStats)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getFork returns the latest enriched record of a fork.
// GET /v1/forks/{owner}/{name}
func (h *Handler) getFork(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	row, err := h.db.GetForkRecord(r.Context(), database.GetForkRecordParams{
		ChildOwner: owner,
		ChildName:  name,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Fork not found")
			return
		}
		h.logger.Error("Failed to get fork record", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	rec, err := database.ToModel(row)
	if err != nil {
		h.logger.Error("Failed to decode fork record", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// listForks returns the enriched records of a parent's forks, oldest first.
// GET /v1/repos/{owner}/{name}/forks?limit=N&healthy=true
func (h *Handler) listForks(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "100" // Default limit
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 1000 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 1000.")
		return
	}

	healthyOnly := false
	if v := r.URL.Query().Get("healthy"); v != "" {
		if healthyOnly, err = strconv.ParseBool(v); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'healthy' parameter. Must be a boolean.")
			return
		}
	}

	rows, err := h.db.ListForkRecordsByParent(r.Context(), database.ListForkRecordsByParentParams{
		ParentOwner: owner,
		ParentName:  name,
		Limit:       int32(limit),
	})
	if err != nil {
		h.logger.Error("Failed to list fork records", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	records := make([]model.EnrichedForkRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := database.ToModel(row)
		if err != nil {
			h.logger.Error("Failed to decode fork record", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if healthyOnly && !h.isHealthy(rec, row.ForkTime) {
			continue
		}
		records = append(records, rec)
	}

	respondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) isHealthy(rec model.EnrichedForkRecord, forkTime time.Time) bool {
	return activity.Classify(rec.CommitTimes, forkTime, h.healthyMin).Healthy
}

// getStats reports how many records the sink holds.
// GET /v1/stats
func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.db.CountForkRecords(r.Context())
	if err != nil {
		h.logger.Error("Failed to count fork records", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"records": count})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
