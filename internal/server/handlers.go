package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/events"
	"github.com/MeKo-Tech/onionqc/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// NewServer creates a new analysis server around analyzer.
func NewServer(analyzer Analyzer, config Config, opts ...Option) *Server {
	s := &Server{
		analyzer:       analyzer,
		corsOrigin:     config.CORSOrigin,
		maxUploadBytes: config.MaxUploadMB * 1024 * 1024,
		maxBatchImages: config.MaxBatchImages,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		publisher:      events.NopPublisher{},
		logger:         slog.Default(),
		now:            config.Clock,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = 50 * 1024 * 1024
	}
	if s.now == nil {
		s.now = time.Now
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour,
			rl.MaxRequestsPerDay, rl.MaxDataPerDayMB*1024*1024)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the cache and publisher. The analyzer is owned by the caller.
func (s *Server) Close() error {
	var firstErr error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/model/status", s.corsMiddleware(s.modelStatusHandler))
	mux.HandleFunc("/model/load", s.corsMiddleware(s.modelLoadHandler))
	mux.HandleFunc("/analyze/image", s.corsMiddleware(s.rateLimitMiddleware(s.analyzeImageHandler)))
	mux.HandleFunc("/analyze/batch", s.corsMiddleware(s.rateLimitMiddleware(s.analyzeBatchHandler)))
	mux.HandleFunc("/ws/analyze", s.rateLimitMiddleware(s.analyzeWebSocketHandler))
}

// Handler returns the routed handler with request IDs and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s.requestIDMiddleware(s.loggingMiddleware(mux))
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Model:   s.analyzer.Status(),
	})
}

// modelStatusHandler reports the model lifecycle state.
func (s *Server) modelStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.modelStatus())
}

// modelLoadHandler triggers a model load. A load already in progress is
// answered with 202.
func (s *Server) modelLoadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ok, err := s.analyzer.LoadModel(r.Context())
	if err != nil {
		s.logger.Error("model load failed", "error", err, "request_id", requestIDFrom(r.Context()))
		s.writeErrorResponse(w, r, err.Error(), MapHTTPStatus(err))
		return
	}

	if !ok {
		s.writeJSON(w, http.StatusAccepted, ModelLoadResponse{
			Message: "model load already in progress",
			Model:   s.modelStatus(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, ModelLoadResponse{
		Success: true,
		Message: "model ready",
		Model:   s.modelStatus(),
	})
}

func (s *Server) modelStatus() ModelStatusResponse {
	st := s.analyzer.Status()
	state := "unloaded"
	switch {
	case st.Loaded:
		state = "ready"
	case st.Loading:
		state = "loading"
	}
	return ModelStatusResponse{Status: st, State: state}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		RequestID: requestIDFrom(r.Context()),
	})
}
