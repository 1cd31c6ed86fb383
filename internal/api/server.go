// Package api exposes the forecast, backtest, and station registry as
// a small JSON API, plus health and Prometheus endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/snowsignal/internal/forecast"
	"github.com/lox/snowsignal/internal/publish"
	"github.com/lox/snowsignal/internal/store"
)

type Server struct {
	store     *store.Store
	generator *forecast.Generator
	sink      *publish.FileSink
	addr      string
}

func NewServer(st *store.Store, generator *forecast.Generator, sink *publish.FileSink, addr string) *Server {
	return &Server{store: st, generator: generator, sink: sink, addr: addr}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/backtest", s.handleBacktest)
	mux.HandleFunc("/api/stations", s.handleStations)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetActiveStations(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleForecast scores a fresh outlook on every request; scoring reads
// a two-week window per predictor and is cheap enough to not cache.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.generator.Generate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot)
}

// handleBacktest serves the most recently published report; backtests
// replay years of history and only run on demand.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	report, err := s.sink.LoadBacktest()
	if err != nil {
		http.Error(w, "no backtest report published", http.StatusNotFound)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.store.GetActiveStations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stations)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
