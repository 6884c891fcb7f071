package testutil

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/onionqc/internal/classifier"
	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// Results returns a healthy/spoiled classifier output for the given spoiled
// probability.
func Results(spoiled float64) []quality.ClassificationResult {
	return []quality.ClassificationResult{
		{Label: "healthy", Probability: 1 - spoiled},
		{Label: "spoiled", Probability: spoiled},
	}
}

// FakeModel is a scripted classifier.Model.
type FakeModel struct {
	// Results and Err are returned by Classify unless ClassifyFunc is set.
	Results      []quality.ClassificationResult
	Err          error
	ClassifyFunc func(ctx context.Context, img image.Image) ([]quality.ClassificationResult, error)
	Classes      int
	Size         int

	mu       sync.Mutex
	calls    int
	closed   bool
	lastSize image.Point
}

var _ classifier.Model = (*FakeModel)(nil)

// Classify implements classifier.Classifier.
func (m *FakeModel) Classify(ctx context.Context, img image.Image) ([]quality.ClassificationResult, error) {
	m.mu.Lock()
	m.calls++
	if img != nil {
		m.lastSize = img.Bounds().Size()
	}
	fn, res, err := m.ClassifyFunc, m.Results, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, img)
	}
	return res, err
}

// TotalClasses implements classifier.Model.
func (m *FakeModel) TotalClasses() int {
	if m.Classes == 0 {
		return 2
	}
	return m.Classes
}

// InputSize implements classifier.Model.
func (m *FakeModel) InputSize() int {
	if m.Size == 0 {
		return classifier.DefaultInputSize
	}
	return m.Size
}

// Close implements classifier.Model.
func (m *FakeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how often Classify ran.
func (m *FakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close ran.
func (m *FakeModel) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// LastInputSize returns the size of the last classified image.
func (m *FakeModel) LastInputSize() image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSize
}

// FakeLoader is a scripted classifier.Loader.
type FakeLoader struct {
	Model classifier.Model
	Err   error
	// Gate, when set, blocks Load until it is closed or the context ends.
	Gate chan struct{}
	// Started receives a value when Load begins, if set.
	Started chan struct{}

	calls atomic.Int32
}

// Load implements classifier.Loader.
func (l *FakeLoader) Load(ctx context.Context, _, _ string) (classifier.Model, error) {
	l.calls.Add(1)
	if l.Started != nil {
		select {
		case l.Started <- struct{}{}:
		default:
		}
	}
	if l.Gate != nil {
		select {
		case <-l.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Model, nil
}

// Calls returns how often Load ran.
func (l *FakeLoader) Calls() int {
	return int(l.calls.Load())
}

// FakeProber answers reachability checks from a table. Unknown locations
// report 200.
type FakeProber struct {
	Statuses map[string]int
	Errs     map[string]error

	mu    sync.Mutex
	calls []string
}

// Probe implements models.Prober.
func (p *FakeProber) Probe(_ context.Context, location string) (int, error) {
	p.mu.Lock()
	p.calls = append(p.calls, location)
	p.mu.Unlock()

	if err, ok := p.Errs[location]; ok {
		return 0, err
	}
	if status, ok := p.Statuses[location]; ok {
		return status, nil
	}
	return 200, nil
}

// Calls returns the probed locations in order.
func (p *FakeProber) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}
