// Package support holds the step definitions of the engine behaviour suite.
package support

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/models"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Artifacts models.Artifacts
	Prober    *testutil.FakeProber
	Loader    *testutil.FakeLoader
	Model     *testutil.FakeModel
	Month     time.Month
	Workers   int

	Engine *engine.Engine

	// Analysis state
	LastAnalysis quality.OnionAnalysis
	LastError    error
	LastBatch    []engine.ItemResult
	LastProgress []int

	// HTTP state
	HTTPTestServer     *HTTPTestServerWrapper
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    http.Header
}

// NewTestContext returns a context with reachable artifacts and a healthy
// classifier.
func NewTestContext() *TestContext {
	model := &testutil.FakeModel{Results: testutil.Results(0)}
	return &TestContext{
		Artifacts: models.Artifacts{Topology: "models/model.onnx", Metadata: "models/metadata.json"},
		Prober:    &testutil.FakeProber{Statuses: map[string]int{}},
		Loader:    &testutil.FakeLoader{Model: model},
		Model:     model,
		Month:     time.May,
		Workers:   1,
	}
}

// engineFor builds the engine on first use so that Given steps can still
// change the fakes.
func (testCtx *TestContext) engineFor() *engine.Engine {
	if testCtx.Engine == nil {
		testCtx.Engine = engine.New(testCtx.Artifacts, testCtx.Prober, testCtx.Loader,
			engine.WithClock(testCtx.now),
			engine.WithBatchWorkers(testCtx.Workers),
			engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
	}
	return testCtx.Engine
}

// now reads Month on every call so that a month step after the engine was
// built still applies.
func (testCtx *TestContext) now() time.Time {
	return time.Date(2026, testCtx.Month, 15, 12, 0, 0, 0, time.UTC)
}

func (testCtx *TestContext) loadModel() error {
	ok, err := testCtx.engineFor().LoadModel(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("model did not become ready")
	}
	return nil
}

// Cleanup releases the server and the engine.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}
	if testCtx.Engine != nil {
		return testCtx.Engine.Close()
	}
	return nil
}
