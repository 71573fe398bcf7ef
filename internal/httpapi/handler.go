// Package httpapi implements the minimal HTTP surface spec §6 names: a
// single POST /model turn handler and a GET / liveness probe, grounded on
// the teacher's net/http.ServeMux router (internal/delivery/server/http/router.go)
// scaled down to the two routes this spec actually calls for.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// TurnHandler is the subset of the orchestrator the HTTP layer depends on.
type TurnHandler interface {
	HandleTurn(ctx context.Context, userID, systemPrompt, userPrompt string) (Result, error)
}

// Result mirrors orchestrator.TurnResult without importing the orchestrator
// package directly, keeping this package's only dependency on the rest of
// the module at the interface boundary.
type Result struct {
	Response string
}

type turnRequest struct {
	UserID       string `json:"user_id"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

type errorResponse struct {
	Error     string   `json:"error"`
	Traceback []string `json:"traceback"`
}

// requestDuration is the latency histogram the teacher's observability
// package registers per route (internal/observability), scaled to this
// module's two routes.
var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name: "memory_core_http_request_duration_seconds",
	Help: "HTTP request latency by route and status.",
}, []string{"route", "status"})

func init() {
	prometheus.MustRegister(requestDuration)
}

// NewRouter builds the process's HTTP handler: POST /model, GET / (liveness),
// GET /metrics (Prometheus scrape endpoint).
func NewRouter(turns TurnHandler, logger logging.Logger) http.Handler {
	logger = logging.OrNop(logger)
	mux := http.NewServeMux()

	mux.Handle("GET /", http.HandlerFunc(handleLiveness))
	mux.Handle("POST /model", instrument("model", logger, handleModel(turns, logger)))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleModel implements the spec §6 contract: forward user_id,
// system_prompt, user_prompt to the orchestrator; 200 with the response
// text on success, 500 with {error, traceback} on handler failure — no
// partial work is ever surfaced as a 2xx (spec §7).
func handleModel(turns TurnHandler, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("httpapi: panic handling /model: %v\n%s", rec, debug.Stack())
				writeError(w, http.StatusInternalServerError, "internal error", []string{"panic recovered"})
			}
		}()

		var req turnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body", []string{err.Error()})
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeError(w, http.StatusBadRequest, "user_id is required", nil)
			return
		}

		result, err := turns.HandleTurn(r.Context(), req.UserID, req.SystemPrompt, req.UserPrompt)
		if err != nil {
			logger.Error("httpapi: turn failed for user %s: %v", req.UserID, err)
			writeError(w, http.StatusInternalServerError, "turn handling failed", tracebackLines(err))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(result.Response))
	}
}

func tracebackLines(err error) []string {
	var lines []string
	for err != nil {
		lines = append(lines, err.Error())
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return lines
}

func writeError(w http.ResponseWriter, status int, message string, traceback []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Traceback: traceback})
}

// instrument wraps a handler with request logging and the latency
// histogram, mirroring the teacher's LoggingMiddleware
// (internal/delivery/server/http/middleware_logging.go) scaled to this
// module's routes.
func instrument(route string, logger logging.Logger, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		logger.Info("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next(sw, r)
		requestDuration.WithLabelValues(route, statusClass(sw.status)).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
