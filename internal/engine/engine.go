// Package engine runs the onion quality analysis: it owns the classifier
// model's lifecycle and turns images into analysis records, one at a time or
// in batches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/classifier"
	"github.com/MeKo-Tech/onionqc/internal/models"
	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// State is the model lifecycle state.
type State int

// Lifecycle states.
const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unloaded"
	}
}

// Status is a snapshot of the model state.
type Status struct {
	Loaded     bool `json:"loaded"`
	Loading    bool `json:"loading"`
	ClassCount int  `json:"classCount"`
}

// Engine owns one classifier model and analyses images with it. It is safe
// for concurrent use.
type Engine struct {
	mu    sync.Mutex
	state State
	model classifier.Model

	artifacts models.Artifacts
	prober    models.Prober
	loader    classifier.Loader

	roles   quality.LabelRoles
	clock   func() time.Time
	workers int
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used to pick the storage season.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// WithBatchWorkers sets how many images a batch analyses concurrently.
// Values below 2 keep batches sequential.
func WithBatchWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithLabelRoles sets which classifier labels mean healthy and spoiled.
func WithLabelRoles(roles quality.LabelRoles) Option {
	return func(e *Engine) { e.roles = roles }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an engine in the unloaded state. The prober checks artifacts
// before the loader is invoked.
func New(artifacts models.Artifacts, prober models.Prober, loader classifier.Loader, opts ...Option) *Engine {
	e := &Engine{
		artifacts: artifacts,
		prober:    prober,
		loader:    loader,
		roles:     quality.DefaultLabelRoles(),
		clock:     time.Now,
		workers:   1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Artifacts returns the configured model artifact locations.
func (e *Engine) Artifacts() models.Artifacts {
	return e.artifacts
}

// LoadModel loads the model if needed. It returns true when the model is
// ready. A call made while another load is in progress returns false
// immediately without starting a second load. Failures are returned to the
// caller and leave the engine unloaded; there is no automatic retry.
func (e *Engine) LoadModel(ctx context.Context) (bool, error) {
	e.mu.Lock()
	switch e.state {
	case StateLoading:
		e.mu.Unlock()
		e.logger.Debug("model is already loading")
		return false, nil
	case StateReady:
		e.mu.Unlock()
		return true, nil
	}
	e.state = StateLoading
	e.mu.Unlock()

	start := time.Now()
	e.logger.Info("loading model", "topology", e.artifacts.Topology, "metadata", e.artifacts.Metadata)

	model, err := e.load(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateUnloaded
		e.logger.Error("model load failed", "error", err)
		return false, err
	}
	e.model = model
	e.state = StateReady
	e.logger.Info("model loaded", "classes", model.TotalClasses(), "duration", time.Since(start))
	return true, nil
}

func (e *Engine) load(ctx context.Context) (classifier.Model, error) {
	for _, artifact := range []string{e.artifacts.Topology, e.artifacts.Metadata} {
		if err := e.probe(ctx, artifact); err != nil {
			return nil, err
		}
	}

	model, err := e.loader.Load(ctx, e.artifacts.Topology, e.artifacts.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: loader returned no model", ErrModelUnavailable)
	}
	return model, nil
}

func (e *Engine) probe(ctx context.Context, artifact string) error {
	status, err := e.prober.Probe(ctx, artifact)
	if err != nil {
		return &ModelUnavailableError{Artifact: artifact, StatusCode: status, Err: err}
	}
	if !models.IsSuccess(status) {
		return &ModelUnavailableError{Artifact: artifact, StatusCode: status}
	}
	return nil
}

// Status reports the model state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{Loaded: e.state == StateReady, Loading: e.state == StateLoading}
	if e.model != nil {
		s.ClassCount = e.model.TotalClasses()
	}
	return s
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ModelIdentity names the loaded model: its artifacts, implementation, class
// count and label roles. Records produced under different identities may
// differ for the same image. It is empty unless the model is ready.
func (e *Engine) ModelIdentity() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady || e.model == nil {
		return ""
	}
	return fmt.Sprintf("%s|%s|%T|%d|%s|%s",
		e.artifacts.Topology, e.artifacts.Metadata, e.model, e.model.TotalClasses(),
		e.roles.Healthy, e.roles.Spoiled)
}

func (e *Engine) readyModel() (classifier.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady || e.model == nil {
		return nil, ErrModelNotReady
	}
	return e.model, nil
}

// Close releases the model. The engine returns to the unloaded state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateLoading {
		return errors.New("cannot close while model is loading")
	}
	var err error
	if e.model != nil {
		err = e.model.Close()
		e.model = nil
	}
	e.state = StateUnloaded
	return err
}
