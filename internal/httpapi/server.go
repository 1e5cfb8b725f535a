// Package httpapi exposes the optimizer over HTTP: weight export for the
// composite scorer, trade ingestion, scoring endpoints, and a websocket
// stream of learning events.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/config"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/exits"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/learner"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/optimizer"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/trade"
)

// Server serializes access to the optimizer behind an HTTP surface.
type Server struct {
	cfg     config.HTTPConfig
	opt     *optimizer.Optimizer
	mu      sync.Mutex
	limiter *rate.Limiter
	hub     *Hub
	httpSrv *http.Server

	// Optional sinks, invoked outside the optimizer lock. Errors are
	// logged, not propagated; the sinks are best-effort.
	OnTradeRecorded func(context.Context, *trade.Record) error
	OnWeightUpdate  func(context.Context, *learner.UpdateReport) error
}

// NewServer builds the server and its routes.
func NewServer(cfg config.HTTPConfig, opt *optimizer.Optimizer) *Server {
	s := &Server{
		cfg:     cfg,
		opt:     opt,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		hub:     NewHub(),
	}

	r := mux.NewRouter()
	r.Use(s.logRequests, s.rateLimit)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/weights", s.handleWeights).Methods(http.MethodGet)
	v1.HandleFunc("/multipliers", s.handleMultipliers).Methods(http.MethodGet)
	v1.HandleFunc("/exit-weights", s.handleExitWeights).Methods(http.MethodGet)
	v1.HandleFunc("/trades", s.handleRecordTrade).Methods(http.MethodPost)
	v1.HandleFunc("/conviction", s.handleConviction).Methods(http.MethodPost)
	v1.HandleFunc("/exit", s.handleExit).Methods(http.MethodPost)
	v1.HandleFunc("/update", s.handleUpdate).Methods(http.MethodPost)
	v1.HandleFunc("/insights", s.handleInsights).Methods(http.MethodPost)
	v1.HandleFunc("/why/{component}", s.handleWhy).Methods(http.MethodGet)
	v1.HandleFunc("/investigate/{component}", s.handleInvestigate).Methods(http.MethodGet)
	v1.HandleFunc("/stream", s.hub.HandleStream).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then drains with a grace period.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", s.cfg.Listen).Msg("http api listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).Msg("request")
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWeights(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	weights := s.opt.EffectiveWeights()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"effective_weights": weights})
}

func (s *Server) handleMultipliers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	multipliers := s.opt.Multipliers()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"multipliers": multipliers})
}

func (s *Server) handleExitWeights(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	weights := s.opt.ExitWeights()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"exit_weights": weights})
}

func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var record trade.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade record: "+err.Error())
		return
	}
	if record.TradeID == "" {
		writeError(w, http.StatusBadRequest, "trade_id is required")
		return
	}

	s.mu.Lock()
	s.opt.RecordTrade(&record)
	s.mu.Unlock()

	if s.OnTradeRecorded != nil {
		if err := s.OnTradeRecorded(r.Context(), &record); err != nil {
			log.Warn().Err(err).Str("trade_id", record.TradeID).Msg("trade sink failed")
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"trade_id": record.TradeID})
}

type convictionRequest struct {
	Readings  []signal.Reading `json:"readings"`
	Regime    string           `json:"regime"`
	Threshold float64          `json:"threshold"`
}

func (s *Server) handleConviction(w http.ResponseWriter, r *http.Request) {
	var req convictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid conviction request: "+err.Error())
		return
	}

	s.mu.Lock()
	result := s.opt.ComputeEntryConviction(req.Readings, req.Regime)
	decision := s.opt.ShouldEnter(result, req.Threshold)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"result": result, "decision": decision})
}

type exitRequest struct {
	Position exits.Position `json:"position"`
	Signals  exits.Signals  `json:"signals"`
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	var req exitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid exit request: "+err.Error())
		return
	}

	s.mu.Lock()
	result := s.opt.ComputeExitUrgency(req.Position, req.Signals)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	report, err := s.opt.UpdateWeights()
	s.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("weight update persistence failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.OnWeightUpdate != nil {
		if err := s.OnWeightUpdate(r.Context(), report); err != nil {
			log.Warn().Err(err).Msg("weight update sink failed")
		}
	}
	s.hub.Broadcast(Event{Type: "weight_update", Payload: report})
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInsights(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	bundle, err := s.opt.GenerateInsights()
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.Broadcast(Event{Type: "insights", Payload: bundle})
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleWhy(w http.ResponseWriter, r *http.Request) {
	component := mux.Vars(r)["component"]
	question := r.URL.Query().Get("q")

	s.mu.Lock()
	answer := s.opt.AnswerWhy(component, question)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	component := mux.Vars(r)["component"]

	s.mu.Lock()
	investigation := s.opt.InvestigateComponent(component)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, investigation)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
