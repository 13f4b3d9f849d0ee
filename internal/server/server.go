package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"watchtorian/internal/datalog"
	"watchtorian/internal/metrics"
	"watchtorian/internal/models"
)

const defaultSampleLimit = 500

// Server exposes the telemetry log over HTTP.
type Server struct {
	httpServer   *http.Server
	log          *datalog.Log
	logger       *slog.Logger
	sampleLimit  int
	pushInterval time.Duration
}

// New creates a read-only HTTP server for the log at addr.
func New(addr string, log *datalog.Log, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		log:          log,
		logger:       logger,
		sampleLimit:  defaultSampleLimit,
		pushInterval: livePushInterval,
	}
	s.registerRoutes(mux)
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/samples", s.handleSamples)
	mux.HandleFunc("/api/aggregates", s.handleAggregates)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/uptime", s.handleUptime)
	mux.HandleFunc("/ws/live", s.handleLive)
}

// snapshot reads the log. A log that was never created reads as empty.
func (s *Server) snapshot() (models.LogSnapshot, error) {
	snap, err := s.log.ReadAll(false)
	if errors.Is(err, fs.ErrNotExist) {
		return models.LogSnapshot{History: models.DefaultHistory()}, nil
	}
	return snap, err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.load(w, r)
	if !ok {
		return
	}
	latest, found := snap.Latest()
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{
			"when":     nil,
			"machines": []models.MachineProbe{},
		})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lastN(snap.Samples, parseLimit(r, s.sampleLimit)))
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(snap.Aggregates))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.History)
}

type uptimeResponse struct {
	InternetPercent float64                 `json:"internet_percent"`
	Samples         int                     `json:"samples"`
	Machines        []metrics.MachineUptime `json:"machines"`
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, buildUptime(snap.Samples))
}

func buildUptime(samples []models.TelemetrySample) uptimeResponse {
	machines := metrics.ComputeMachineUptime(samples)
	if machines == nil {
		machines = []metrics.MachineUptime{}
	}
	return uptimeResponse{
		InternetPercent: metrics.ComputeInternetUptime(samples),
		Samples:         len(samples),
		Machines:        machines,
	}
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (models.LogSnapshot, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return models.LogSnapshot{}, false
	}
	snap, err := s.snapshot()
	if err != nil {
		s.logger.Error("read telemetry log", "path", s.log.Path(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return models.LogSnapshot{}, false
	}
	return snap, true
}

func lastN(samples []models.TelemetrySample, n int) []models.TelemetrySample {
	if n > 0 && len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	return nonNil(samples)
}

func nonNil(samples []models.TelemetrySample) []models.TelemetrySample {
	if samples == nil {
		return []models.TelemetrySample{}
	}
	return samples
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
