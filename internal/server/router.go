package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/handlers"
)

// NewRouter wires HTTP routes for the monitor service.
func NewRouter(h *handlers.MonitorHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statistics", h.Statistics)
	mux.HandleFunc("/api/v1/components", h.Components)
	mux.HandleFunc("/api/v1/traces/clear", h.ClearTraces)
	mux.HandleFunc("/api/v1/tasks", h.Tasks)
	mux.HandleFunc("/healthz", h.Health)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
