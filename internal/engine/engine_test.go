package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/onionqc/internal/models"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
)

var testArtifacts = models.Artifacts{Topology: "models/model.onnx", Metadata: "models/metadata.json"}

func fixedClock(month time.Month) func() time.Time {
	return func() time.Time { return time.Date(2026, month, 15, 12, 0, 0, 0, time.UTC) }
}

func newReadyEngine(t *testing.T, model *testutil.FakeModel, opts ...Option) *Engine {
	t.Helper()

	e := New(testArtifacts, &testutil.FakeProber{}, &testutil.FakeLoader{Model: model}, opts...)
	ok, err := e.LoadModel(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return e
}

func TestLoadModel_Idempotent(t *testing.T) {
	prober := &testutil.FakeProber{}
	loader := &testutil.FakeLoader{Model: &testutil.FakeModel{Classes: 2}}
	e := New(testArtifacts, prober, loader)

	assert.Equal(t, StateUnloaded, e.State())
	assert.Equal(t, Status{}, e.Status())

	ok, err := e.LoadModel(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.LoadModel(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, loader.Calls())
	assert.Equal(t, []string{testArtifacts.Topology, testArtifacts.Metadata}, prober.Calls())
	assert.Equal(t, Status{Loaded: true, ClassCount: 2}, e.Status())
	assert.Equal(t, "ready", e.State().String())
}

func TestModelIdentity(t *testing.T) {
	e := New(testArtifacts, &testutil.FakeProber{}, &testutil.FakeLoader{Model: &testutil.FakeModel{Classes: 2}})
	assert.Empty(t, e.ModelIdentity())

	_, err := e.LoadModel(context.Background())
	require.NoError(t, err)
	id := e.ModelIdentity()
	assert.Contains(t, id, testArtifacts.Topology)
	assert.Contains(t, id, "*testutil.FakeModel")

	other := newReadyEngine(t, &testutil.FakeModel{Classes: 3})
	assert.NotEqual(t, id, other.ModelIdentity())

	roles := newReadyEngine(t, &testutil.FakeModel{Classes: 2},
		WithLabelRoles(quality.LabelRoles{Healthy: "fresh", Spoiled: "rotten"}))
	assert.NotEqual(t, id, roles.ModelIdentity())

	require.NoError(t, e.Close())
	assert.Empty(t, e.ModelIdentity())
}

func TestLoadModel_ConcurrentCallReturnsFalse(t *testing.T) {
	loader := &testutil.FakeLoader{
		Model:   &testutil.FakeModel{},
		Gate:    make(chan struct{}),
		Started: make(chan struct{}, 1),
	}
	e := New(testArtifacts, &testutil.FakeProber{}, loader)

	type outcome struct {
		ok  bool
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		ok, err := e.LoadModel(context.Background())
		first <- outcome{ok, err}
	}()

	<-loader.Started
	assert.Equal(t, StateLoading, e.State())
	assert.True(t, e.Status().Loading)

	ok, err := e.LoadModel(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	close(loader.Gate)
	res := <-first
	require.NoError(t, res.err)
	assert.True(t, res.ok)
	assert.Equal(t, 1, loader.Calls())
	assert.Equal(t, StateReady, e.State())
}

func TestLoadModel_ArtifactNotFound(t *testing.T) {
	prober := &testutil.FakeProber{Statuses: map[string]int{testArtifacts.Metadata: 404}}
	loader := &testutil.FakeLoader{Model: &testutil.FakeModel{}}
	e := New(testArtifacts, prober, loader)

	ok, err := e.LoadModel(context.Background())
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrModelUnavailable)

	var unavailable *ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, testArtifacts.Metadata, unavailable.Artifact)
	assert.Equal(t, 404, unavailable.StatusCode)
	assert.Contains(t, err.Error(), "status: 404")

	assert.Equal(t, 0, loader.Calls())
	assert.Equal(t, StateUnloaded, e.State())
}

func TestLoadModel_TransportError(t *testing.T) {
	netErr := errors.New("connection refused")
	prober := &testutil.FakeProber{Errs: map[string]error{testArtifacts.Topology: netErr}}
	e := New(testArtifacts, prober, &testutil.FakeLoader{})

	_, err := e.LoadModel(context.Background())
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.ErrorIs(t, err, netErr)
	assert.Contains(t, err.Error(), "not accessible")
}

func TestLoadModel_LoaderFailureAllowsRetry(t *testing.T) {
	loadErr := errors.New("corrupt topology")
	loader := &testutil.FakeLoader{Err: loadErr}
	e := New(testArtifacts, &testutil.FakeProber{}, loader)

	ok, err := e.LoadModel(context.Background())
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.ErrorIs(t, err, loadErr)
	assert.Equal(t, StateUnloaded, e.State())

	loader.Err = nil
	loader.Model = &testutil.FakeModel{}
	ok, err = e.LoadModel(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, loader.Calls())
}

func TestLoadModel_NilModel(t *testing.T) {
	e := New(testArtifacts, &testutil.FakeProber{}, &testutil.FakeLoader{})

	_, err := e.LoadModel(context.Background())
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestClose(t *testing.T) {
	model := &testutil.FakeModel{}
	e := newReadyEngine(t, model)

	require.NoError(t, e.Close())
	assert.True(t, model.Closed())
	assert.Equal(t, StateUnloaded, e.State())

	_, err := e.Analyze(context.Background(), testutil.OnionImage(32, 32, 0))
	require.ErrorIs(t, err, ErrModelNotReady)
}

func TestModelUnavailableError(t *testing.T) {
	err := &ModelUnavailableError{Artifact: "x.json", StatusCode: 403}
	assert.Equal(t, "model file not found: x.json (status: 403)", err.Error())
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.NotErrorIs(t, err, ErrModelNotReady)
	assert.NoError(t, err.Unwrap())
}

func TestAnalyze_SpoiledInMay(t *testing.T) {
	model := &testutil.FakeModel{Results: testutil.Results(0.8)}
	e := newReadyEngine(t, model, WithClock(fixedClock(time.May)))

	a, err := e.Analyze(context.Background(), testutil.OnionImage(64, 48, 0.8))
	require.NoError(t, err)

	assert.Equal(t, quality.GradeF, a.QualityGrade)
	assert.Equal(t, quality.StatusCritical, a.Status)
	assert.Equal(t, 80, a.DeteriorationIndex)
	assert.Equal(t, 20, a.QualityScore)
	assert.Equal(t, 3, a.ShelfLifeDays)
	assert.InDelta(t, 80.0, a.Confidence, 1e-9)
	assert.Equal(t, quality.SeasonSpringSummer, a.EnvironmentalFactors.Season)
	assert.Equal(t, image224, model.LastInputSize())
}

func TestAnalyze_HealthyInOctober(t *testing.T) {
	model := &testutil.FakeModel{Results: testutil.Results(0.08)}
	e := newReadyEngine(t, model, WithClock(fixedClock(time.October)))

	a, err := e.Analyze(context.Background(), testutil.OnionImage(100, 100, 0))
	require.NoError(t, err)

	assert.Equal(t, quality.GradeA, a.QualityGrade)
	assert.Equal(t, quality.StatusHealthy, a.Status)
	assert.InDelta(t, 92.0, a.Confidence, 1e-9)
	assert.Equal(t, 180, a.ShelfLifeDays)
	assert.Equal(t, quality.VarietyStorage, a.VarietyEstimate)
	assert.Equal(t, quality.SeasonHarvest, a.EnvironmentalFactors.Season)
}

func TestAnalyze_CustomLabelRoles(t *testing.T) {
	model := &testutil.FakeModel{Results: []quality.ClassificationResult{
		{Label: "firm", Probability: 0.1},
		{Label: "rotten", Probability: 0.9},
	}}
	e := newReadyEngine(t, model, WithLabelRoles(quality.LabelRoles{Healthy: "firm", Spoiled: "rot"}))

	a, err := e.Analyze(context.Background(), testutil.OnionImage(32, 32, 1))
	require.NoError(t, err)
	assert.Equal(t, 90, a.DeteriorationIndex)
}

func TestAnalyze_Errors(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		e := New(testArtifacts, &testutil.FakeProber{}, &testutil.FakeLoader{})
		_, err := e.Analyze(context.Background(), testutil.OnionImage(8, 8, 0))
		require.ErrorIs(t, err, ErrModelNotReady)
	})

	t.Run("nil image", func(t *testing.T) {
		e := newReadyEngine(t, &testutil.FakeModel{Results: testutil.Results(0.1)})
		_, err := e.Analyze(context.Background(), nil)
		require.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("empty image", func(t *testing.T) {
		e := newReadyEngine(t, &testutil.FakeModel{Results: testutil.Results(0.1)})
		_, err := e.Analyze(context.Background(), testutil.SolidImage(0, 0, testutil.Background))
		require.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("no predictions", func(t *testing.T) {
		e := newReadyEngine(t, &testutil.FakeModel{})
		_, err := e.Analyze(context.Background(), testutil.OnionImage(8, 8, 0))
		require.ErrorIs(t, err, ErrClassificationFailure)
	})

	t.Run("classifier error", func(t *testing.T) {
		boom := errors.New("inference failed")
		e := newReadyEngine(t, &testutil.FakeModel{Err: boom})
		_, err := e.Analyze(context.Background(), testutil.OnionImage(8, 8, 0))
		require.ErrorIs(t, err, ErrClassificationFailure)
		require.ErrorIs(t, err, boom)
	})
}
