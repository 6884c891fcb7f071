package server

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/cache"
	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/events"
	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// Analyzer defines the methods needed by the server from the engine.
type Analyzer interface {
	LoadModel(ctx context.Context) (bool, error)
	Status() engine.Status
	ModelIdentity() string
	Analyze(ctx context.Context, img image.Image) (quality.OnionAnalysis, error)
	AnalyzeBatchResults(ctx context.Context, images []image.Image, progress engine.ProgressCallback) []engine.ItemResult
}

var _ Analyzer = (*engine.Engine)(nil)

// Server holds the HTTP server state and dependencies.
type Server struct {
	analyzer       Analyzer
	corsOrigin     string
	maxUploadBytes int64
	maxBatchImages int
	timeout        time.Duration
	rateLimiter    *RateLimiter
	cache          *cache.AnalysisCache
	publisher      events.Publisher
	logger         *slog.Logger
	now            func() time.Time
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDayMB   int64
}

// Config holds server configuration.
type Config struct {
	CORSOrigin     string
	MaxUploadMB    int64
	MaxBatchImages int
	TimeoutSec     int
	RateLimit      RateLimitConfig
	// Clock decides the month for cache keys. Defaults to time.Now.
	Clock func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithCache enables the analysis result cache.
func WithCache(c *cache.AnalysisCache) Option {
	return func(s *Server) { s.cache = c }
}

// WithPublisher sets where analysis events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Time    string        `json:"time"`
	Model   engine.Status `json:"model"`
}

type ModelStatusResponse struct {
	engine.Status
	State string `json:"state"`
}

type ModelLoadResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Model   ModelStatusResponse `json:"model"`
}

type AnalysisResponse struct {
	Success   bool                   `json:"success"`
	RequestID string                 `json:"request_id,omitempty"`
	Filename  string                 `json:"filename,omitempty"`
	Cached    bool                   `json:"cached,omitempty"`
	Analysis  *quality.OnionAnalysis `json:"analysis,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type BatchItem struct {
	Index    int                   `json:"index"`
	Filename string                `json:"filename,omitempty"`
	Error    string                `json:"error,omitempty"`
	Analysis quality.OnionAnalysis `json:"analysis"`
}

type BatchResponse struct {
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id,omitempty"`
	Results   []BatchItem     `json:"results"`
	Summary   quality.Summary `json:"summary"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
