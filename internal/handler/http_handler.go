package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/orchestrator"
	"github.com/gosight/gosight/analytics/internal/runledger"
)

// Aggregation is the orchestrator surface exposed over HTTP.
type Aggregation interface {
	Run(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
	Health(ctx context.Context) (*runledger.Run, []*runledger.Run, error)
}

type HTTPHandler struct {
	aggregation Aggregation
}

func NewHTTPHandler(a Aggregation) *HTTPHandler {
	return &HTTPHandler{aggregation: a}
}

type AggregateRequest struct {
	IgnoreLastRun bool `json:"ignore_last_run"`
	TestMode      bool `json:"test_mode"`
}

type HealthResponse struct {
	Status            string         `json:"status"`
	LastSuccessfulRun *runledger.Run `json:"last_successful_run"`
	IncompleteRuns    int            `json:"incomplete_runs"`
}

type IncompleteResponse struct {
	Count int              `json:"count"`
	Runs  []*runledger.Run `json:"runs"`
}

// HandleAggregate runs one aggregation synchronously. Flags come from the
// query string or a JSON body.
func (h *HTTPHandler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}
	q := r.URL.Query()
	req.IgnoreLastRun = req.IgnoreLastRun || queryFlag(q.Get("ignore_last_run"))
	req.TestMode = req.TestMode || queryFlag(q.Get("test_mode"))

	runType := runledger.TypeManual
	if req.TestMode {
		runType = runledger.TypeTest
	}
	h.run(w, r, orchestrator.Request{
		IgnoreLastRun: req.IgnoreLastRun,
		TestMode:      req.TestMode,
		RunType:       runType,
	})
}

// HandleAggregateStatus reports health, or with ?date=YYYY-MM-DD runs a
// test aggregation over that day.
func (h *HTTPHandler) HandleAggregateStatus(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "date must be YYYY-MM-DD",
			})
			return
		}
		h.run(w, r, orchestrator.Request{Date: &date, RunType: runledger.TypeTest})
		return
	}

	last, incomplete, err := h.aggregation.Health(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read run health")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:            "healthy",
		LastSuccessfulRun: last,
		IncompleteRuns:    len(incomplete),
	})
}

func (h *HTTPHandler) HandleIncompleteRuns(w http.ResponseWriter, r *http.Request) {
	_, incomplete, err := h.aggregation.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if incomplete == nil {
		incomplete = []*runledger.Run{}
	}
	writeJSON(w, http.StatusOK, IncompleteResponse{Count: len(incomplete), Runs: incomplete})
}

func (h *HTTPHandler) run(w http.ResponseWriter, r *http.Request, req orchestrator.Request) {
	res, err := h.aggregation.Run(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"run_id":  res.RunID,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// CronAuthMiddleware requires "Authorization: Bearer <secret>" when secret
// is set.
func CronAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"error":   "unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func queryFlag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
