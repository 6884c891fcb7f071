package classifier

import (
	"context"
	"log/slog"

	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// FallbackLoader wraps a primary loader with the colour heuristic.
type FallbackLoader struct {
	primary       Loader
	roles         quality.LabelRoles
	inputSize     int
	heuristicOnly bool
	fallback      bool
}

// FallbackOptions selects when the heuristic model is used.
type FallbackOptions struct {
	Roles quality.LabelRoles
	// InputSize of the heuristic model.
	InputSize int
	// HeuristicOnly skips the primary loader entirely.
	HeuristicOnly bool
	// Fallback uses the heuristic when the primary loader fails.
	Fallback bool
}

// NewFallbackLoader returns a loader that prefers primary.
func NewFallbackLoader(primary Loader, opts FallbackOptions) *FallbackLoader {
	return &FallbackLoader{
		primary:       primary,
		roles:         opts.Roles,
		inputSize:     opts.InputSize,
		heuristicOnly: opts.HeuristicOnly,
		fallback:      opts.Fallback,
	}
}

// Load implements Loader.
func (l *FallbackLoader) Load(ctx context.Context, topology, metadata string) (Model, error) {
	if l.heuristicOnly || l.primary == nil {
		slog.Info("using heuristic classifier", "reason", "heuristic only")
		return NewHeuristicModel(l.roles, l.inputSize), nil
	}

	m, err := l.primary.Load(ctx, topology, metadata)
	if err == nil {
		return m, nil
	}
	if !l.fallback || ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("model initialisation failed, using heuristic classifier", "error", err)
	return NewHeuristicModel(l.roles, l.inputSize), nil
}
