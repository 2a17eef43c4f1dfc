package status

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

const (
	defaultRunLimit     = 50
	maxRunLimit         = 500
	defaultOutcomeLimit = 100
	maxOutcomeLimit     = 1000
	repoTimeout         = 3 * time.Second
)

// runsHandler exposes persisted runs and outcomes.
type runsHandler struct {
	repo    store.OutcomeRepository
	timeout time.Duration
	logger  *zap.Logger
}

func newRunsHandler(repo store.OutcomeRepository, logger *zap.Logger) *runsHandler {
	return &runsHandler{repo: repo, timeout: repoTimeout, logger: logger}
}

// list handles GET /v1/runs?status=&limit=&offset=.
func (h *runsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.RunStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		val, err := parseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &val
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.repo.ListRuns(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// get handles GET /v1/runs/{run_id}.
func (h *runsHandler) get(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// outcomes handles GET /v1/runs/{run_id}/outcomes?outcome=&limit=&offset=.
func (h *runsHandler) outcomes(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultOutcomeLimit, maxOutcomeLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var outcome *store.Outcome
	switch raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("outcome"))); raw {
	case "":
	case string(store.OutcomeSucceeded), string(store.OutcomeFailed):
		val := store.Outcome(raw)
		outcome = &val
	default:
		writeError(w, http.StatusBadRequest, "invalid outcome")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	outcomes, err := h.repo.ListOutcomes(ctx, runID, outcome, limit, offset)
	if err != nil {
		h.logger.Error("list outcomes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list outcomes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return id, nil
}

func parseStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.RunRunning, nil
	case "completed", "success":
		return store.RunCompleted, nil
	case "canceled", "cancelled":
		return store.RunCanceled, nil
	case "error", "failed":
		return store.RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}
