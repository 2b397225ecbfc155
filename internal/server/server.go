// Package server exposes the prediction pipeline over HTTP: a one-shot
// predict endpoint, an interactive WebSocket session for UI collaborators,
// and health and bundle introspection endpoints. It holds no pipeline logic
// of its own; requests and responses are the data structures the pipeline
// already speaks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"riskcast/internal/pipeline"

	"github.com/rs/zerolog/log"
)

// Metrics defines the server-side metrics methods. A nil Metrics is valid.
type Metrics interface {
	WSSessionInc()
	HighRiskInc()
}

// Server serves predictions from one loaded session.
type Server struct {
	session *pipeline.Session
	metrics Metrics
	server  *http.Server
}

// PredictRequest is the incoming prediction request: the feature selection
// plus an optional caller correlation id.
type PredictRequest struct {
	Categories map[string]string  `json:"categories"`
	Numerics   map[string]float64 `json:"numerics,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
}

// PredictResponse is the prediction result as shown to display collaborators.
type PredictResponse struct {
	Probability    float64   `json:"probability"`
	Percent        float64   `json:"percent"`
	Score          float64   `json:"score"`
	Decision       string    `json:"decision"`
	ThresholdUsed  float64   `json:"thresholdUsed"`
	SkippedLookups int       `json:"skippedLookups"`
	RequestID      string    `json:"request_id,omitempty"`
	LatencyMs      float64   `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// ErrorResponse carries a short failure message; prior server state is
// unchanged and the caller may retry with corrected input.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// New creates the prediction HTTP server on the given port.
func New(session *pipeline.Session, m Metrics, port int) *Server {
	s := &Server{
		session: session,
		metrics: m,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/bundle/info", s.handleBundleInfo)
	mux.HandleFunc("/ws", s.handleWS)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err), req.RequestID)
		return
	}

	res, err := s.predict(req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNotLoaded) {
			status = http.StatusServiceUnavailable
		}
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		writeError(w, status, err.Error(), req.RequestID)
		return
	}

	resp := toResponse(res, req.RequestID, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) predict(req PredictRequest) (pipeline.Result, error) {
	sel := pipeline.Selection{
		Categories: req.Categories,
		Numerics:   req.Numerics,
	}
	res, err := s.session.Predict(sel)
	if err != nil {
		return pipeline.Result{}, err
	}
	if s.metrics != nil && res.Decision == pipeline.HighRisk {
		s.metrics.HighRiskInc()
	}
	return res, nil
}

func toResponse(res pipeline.Result, requestID string, elapsed time.Duration) PredictResponse {
	return PredictResponse{
		Probability:    res.Probability,
		Percent:        res.Percent(),
		Score:          res.Score,
		Decision:       string(res.Decision),
		ThresholdUsed:  res.ThresholdUsed,
		SkippedLookups: res.SkippedLookups,
		RequestID:      requestID,
		LatencyMs:      float64(elapsed.Microseconds()) / 1000,
		Timestamp:      time.Now(),
	}
}

func writeError(w http.ResponseWriter, status int, msg, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, RequestID: requestID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.session.State()
	healthy := state == pipeline.StateReady || state == pipeline.StateScored

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"healthy": healthy,
		"state":   state.String(),
	})
}

func (s *Server) handleBundleInfo(w http.ResponseWriter, r *http.Request) {
	b := s.session.Bundle()
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "no bundle loaded", "")
		return
	}

	info := map[string]interface{}{
		"cat_cols":       b.CatCols,
		"num_cols":       b.NumCols,
		"ohe_categories": b.OHECategories,
		"features":       b.N(),
		"threshold":      b.Threshold,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}
