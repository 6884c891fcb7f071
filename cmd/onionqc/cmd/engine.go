package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/onionqc/internal/cache"
	"github.com/MeKo-Tech/onionqc/internal/classifier"
	"github.com/MeKo-Tech/onionqc/internal/config"
	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/events"
	"github.com/MeKo-Tech/onionqc/internal/models"
)

// heuristicProber accepts every artifact; the heuristic model reads none.
type heuristicProber struct{}

func (heuristicProber) Probe(context.Context, string) (int, error) { return http.StatusOK, nil }

// newEngine assembles an unloaded engine from the configuration.
func newEngine(cfg *config.Config) (*engine.Engine, error) {
	onnxCfg, err := cfg.ToONNXConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}

	source := models.NewSource(nil)
	loader := classifier.NewFallbackLoader(classifier.NewONNXLoader(onnxCfg, source), cfg.ToFallbackOptions())

	var prober models.Prober = source
	if cfg.Model.HeuristicOnly {
		prober = heuristicProber{}
	}

	return engine.New(cfg.Artifacts(), prober, loader,
		engine.WithBatchWorkers(cfg.Analysis.BatchWorkers),
		engine.WithLabelRoles(cfg.LabelRoles()),
		engine.WithLogger(slog.Default()),
	), nil
}

// loadEngine assembles the engine and loads its model.
func loadEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := e.LoadModel(ctx); err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return e, nil
}

// newAnalysisCache returns nil when caching is disabled.
func newAnalysisCache(cfg *config.Config) (*cache.AnalysisCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	var store cache.Cache
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		store = rc
		slog.Info("analysis cache enabled", "backend", "redis")
	} else {
		store = cache.NewMemoryCache()
		slog.Info("analysis cache enabled", "backend", "memory")
	}
	return cache.NewAnalysisCache(store, cfg.CacheTTL(), slog.Default()), nil
}

func newPublisher(cfg *config.Config) events.Publisher {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}
	}
	slog.Info("analysis events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	return events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, slog.Default())
}
