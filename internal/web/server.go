// Package web provides an HTTP status server for the capture service.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"codeberg.org/mutker/drowsyctl/internal/status"
)

const (
	defaultWindow = 10 * time.Minute
	defaultTail   = 30
	maxTail       = 1000
)

// Pipeline is the part of the capture loop the server streams from.
type Pipeline interface {
	Subscribe(buffer int) (<-chan capture.Result, func())
	SubscribeAlerts(buffer int) (<-chan capture.Alert, func())
	ResetPolicy()
}

// History reads the measurement log.
type History interface {
	Summary(window time.Duration) (earlog.Summary, error)
	Tail(n int) ([]earlog.Sample, error)
}

// Server serves status, history and a live stream over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	pipeline   Pipeline
	history    History
	log        logger.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a Server. pipeline and history may be nil, in which case the
// endpoints that need them respond with 404.
func New(addr string, tracker *status.Tracker, pipeline Pipeline, history History, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		tracker:  tracker,
		pipeline: pipeline,
		history:  history,
		log:      log,
		closing:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/history.json", s.handleHistory)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/ws", s.handleStream)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and ends open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, formatStatus(s.tracker.Snapshot()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.NotFound(w, r)
		return
	}

	window := defaultWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = d
	}

	tail := defaultTail
	if v := r.URL.Query().Get("tail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxTail {
			http.Error(w, "invalid tail", http.StatusBadRequest)
			return
		}
		tail = n
	}

	hj := HistoryJSON{Window: window.String(), Recent: []SampleJSON{}}

	// A log the reader cannot interpret still yields an empty history.
	summary, err := s.history.Summary(window)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to summarize measurement log")
		hj.Error = err.Error()
	}
	hj.Summary = summary

	samples, err := s.history.Tail(tail)
	if err != nil && hj.Error == "" {
		s.log.Warn().Err(err).Msg("Failed to read measurement log")
		hj.Error = err.Error()
	}
	for _, sample := range samples {
		hj.Recent = append(hj.Recent, formatSample(sample))
	}

	writeJSON(w, http.StatusOK, hj)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		http.NotFound(w, r)
		return
	}

	s.pipeline.ResetPolicy()
	s.log.Info().Msg("Alert policy reset")
	w.WriteHeader(http.StatusNoContent)
}
