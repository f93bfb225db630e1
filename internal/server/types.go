// Package server exposes the scan pipeline over HTTP: image upload, cancel,
// history and a WebSocket stream for live camera detections.
package server

import (
	"errors"
	"net/http"

	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/livescan"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	orch        *scan.Orchestrator
	history     history.Store
	gate        *livescan.Gate
	hub         *hub
	corsOrigin  string
	maxUploadMB int64
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	// RateLimitRPS limits scan uploads per client; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	Scan           scan.Config
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Time       string `json:"time"`
	ActiveScan string `json:"active_scan,omitempty"`
	LivePaused bool   `json:"live_paused"`
}

// ScanResponse wraps a finished scan.
type ScanResponse struct {
	Success bool          `json:"success"`
	Outcome *scan.Outcome `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// CancelResponse reports whether a running scan was cancelled.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// HistoryResponse lists recorded scans, oldest first.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// NewServer builds the orchestrator for stages and wires its notices to the
// live stream. store may be nil to disable history.
func NewServer(config Config, stages scan.Stages, store history.Store) (*Server, error) {
	if stages.Normalizer == nil || stages.Decoder == nil || stages.Detector == nil {
		return nil, errors.New("scan stages are not configured")
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}

	s := &Server{
		history:     store,
		gate:        livescan.NewGate(),
		hub:         newHub(),
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
	}
	if config.RateLimitRPS > 0 {
		s.rateLimiter = NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	}

	notifier := scan.MultiNotifier{
		scan.LogNotifier{},
		livescan.SuspendingNotifier{Gate: s.gate, Next: s.hub},
	}
	s.orch = scan.NewOrchestrator(config.Scan, stages, scan.NewSink(notifier, store))
	return s, nil
}

// Orchestrator returns the scan orchestrator behind the API.
func (s *Server) Orchestrator() *scan.Orchestrator { return s.orch }

// Gate returns the live detection gate.
func (s *Server) Gate() *livescan.Gate { return s.gate }

// Close cancels a running scan and disconnects live clients.
func (s *Server) Close() error {
	s.orch.Cancel()
	s.hub.closeAll()
	return nil
}

// Router configures the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware, metricsMiddleware)

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Handle("/scan", s.rateLimitMiddleware(http.HandlerFunc(s.scanHandler))).Methods(http.MethodPost)
	api.HandleFunc("/scan/cancel", s.cancelHandler).Methods(http.MethodPost)
	api.HandleFunc("/history", s.historyHandler).Methods(http.MethodGet)
	api.HandleFunc("/history", s.clearHistoryHandler).Methods(http.MethodDelete)

	r.HandleFunc("/ws/live", s.liveWebSocketHandler).Methods(http.MethodGet)

	// Preflight requests are answered by the CORS middleware.
	r.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	return r
}
