// Package httpapi serves the monitor's read-only query API and event stream.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fd1az/mordor-monitor/business/monitor/app"
	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/logger"
)

// Handler exposes QueryService over HTTP.
type Handler struct {
	query *app.QueryService
	hub   *Hub
	log   logger.LoggerInterface
}

func NewHandler(query *app.QueryService, hub *Hub, log logger.LoggerInterface) *Handler {
	return &Handler{query: query, hub: hub, log: log}
}

// Mount adds the API routes to mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/gas", h.gas)
	mux.HandleFunc("GET /api/forks", h.forks)
	if h.hub != nil {
		mux.Handle("GET /ws", h.hub)
	}
}

// NewServer wraps mux with tracing.
func NewServer(port int, mux http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           otelhttp.NewHandler(mux, "monitor-api"),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.query.Status())
}

func (h *Handler) gas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.query.Recommendation())
}

// forks accepts ?limit=N to cap the number of events, newest first.
func (h *Handler) forks(w http.ResponseWriter, r *http.Request) {
	forks := h.query.Forks()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, r, apperror.Validation(apperror.CodeInvalidInput,
				fmt.Sprintf("limit must be a non-negative integer, got %q", raw)))
			return
		}
		if limit < len(forks) {
			forks = forks[:limit]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": len(forks), "forks": forks})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		appErr = apperror.Wrap(err, apperror.CodeInternalError, r.URL.Path)
	}
	if traceID := logger.OTELTraceID(r.Context()); traceID != "" {
		appErr = appErr.WithTraceID(traceID)
	}
	h.log.Warn(r.Context(), "api request failed", "path", r.URL.Path, "error", appErr)
	writeJSON(w, appErr.StatusCode, appErr.ToResponse())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
