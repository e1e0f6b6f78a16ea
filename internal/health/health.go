// Package health provides HTTP health check endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health check response.
type Status struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Version   string           `json:"version,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Check represents an individual health check.
type Check struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) (bool, string)

// Handler serves /health, /ready and /live on a caller-owned mux.
type Handler struct {
	version string
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
	// ready checks gate /ready; the rest only degrade /health.
	ready map[string]bool
}

// New creates a health handler.
func New(version string) *Handler {
	return &Handler{
		version: version,
		timeout: 5 * time.Second,
		now:     time.Now,
		checks:  make(map[string]CheckFunc),
		ready:   make(map[string]bool),
	}
}

// RegisterCheck registers a check that degrades /health and gates /ready.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.register(name, check, true)
}

// RegisterInfoCheck registers a check that degrades /health only.
func (h *Handler) RegisterInfoCheck(name string, check CheckFunc) {
	h.register(name, check, false)
}

func (h *Handler) register(name string, check CheckFunc, gatesReady bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
	h.ready[name] = gatesReady
}

// Mount adds the health routes to mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)
	mux.HandleFunc("GET /live", h.handleLive)
}

func (h *Handler) snapshot(readyOnly bool) map[string]CheckFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		if readyOnly && !h.ready[k] {
			continue
		}
		checks[k] = v
	}
	return checks
}

// handleHealth returns full health status with all checks.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := Status{
		Status:    "ok",
		Checks:    make(map[string]Check),
		Version:   h.version,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}

	for name, check := range h.snapshot(false) {
		healthy, msg := check(ctx)
		status.Checks[name] = Check{Healthy: healthy, Message: msg}
		if !healthy {
			status.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// handleReady returns whether the service is ready to receive traffic.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := h.snapshot(true)
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if healthy, msg := checks[name](ctx); !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready: " + name + ": " + msg))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleLive returns whether the service is alive (simple liveness probe).
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
