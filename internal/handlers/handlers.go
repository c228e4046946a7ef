package handlers

import (
	"net/http"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/httputil"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/service"
)

// MonitorHandler exposes the monitor's read operations over HTTP.
type MonitorHandler struct {
	monitor *service.Monitor
}

// NewMonitorHandler constructs a new handler.
func NewMonitorHandler(m *service.Monitor) *MonitorHandler {
	return &MonitorHandler{monitor: m}
}

// Statistics handles GET /api/v1/statistics.
func (h *MonitorHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result, err := h.monitor.Statistics()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// Components handles GET /api/v1/components.
func (h *MonitorHandler) Components(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	components, err := h.monitor.Components()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"components": components,
		"count":      len(components),
	})
}

// ClearTraces handles POST /api/v1/traces/clear. It returns once the
// batched clear has completed.
func (h *MonitorHandler) ClearTraces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.monitor.ClearTraces(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Tasks handles GET /api/v1/tasks, reporting lifecycle counters plus the
// cache and poll figures useful alongside them.
func (h *MonitorHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"tasks":  h.monitor.TaskCounters(),
		"caches": h.monitor.CacheStats(),
		"poll":   h.monitor.PollSnapshot(),
	})
}

// Health handles GET /healthz.
func (h *MonitorHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": h.monitor.Environment(),
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}
