package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
)

func TestServer_HealthHandler(t *testing.T) {
	s := newTestServer(t, newTestEngine(t, &testutil.FakeModel{Classes: 2}, true), testConfig())

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.healthHandler(w, httptest.NewRequest(tt.method, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, engine.Status{Loaded: true, ClassCount: 2}, response.Model)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_ModelStatus(t *testing.T) {
	e := newTestEngine(t, &testutil.FakeModel{Classes: 3}, false)
	h := newTestServer(t, e, testConfig()).Handler()

	get := func() ModelStatusResponse {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/model/status", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp ModelStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	before := get()
	assert.Equal(t, "unloaded", before.State)
	assert.False(t, before.Loaded)

	_, err := e.LoadModel(context.Background())
	require.NoError(t, err)

	after := get()
	assert.Equal(t, "ready", after.State)
	assert.True(t, after.Loaded)
	assert.Equal(t, 3, after.ClassCount)
}

func TestServer_ModelLoad(t *testing.T) {
	e := newTestEngine(t, &testutil.FakeModel{}, false)
	h := newTestServer(t, e, testConfig()).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/model/load", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/model/load", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ModelLoadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ready", resp.Model.State)
	assert.Equal(t, engine.StateReady, e.State())
}

func TestServer_ModelLoad_Unavailable(t *testing.T) {
	prober := &testutil.FakeProber{Statuses: map[string]int{testArtifacts.Topology: http.StatusNotFound}}
	e := engine.New(testArtifacts, prober, &testutil.FakeLoader{Model: &testutil.FakeModel{}},
		engine.WithLogger(quietLogger()))
	h := newTestServer(t, e, testConfig()).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/model/load", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "404")
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, engine.StateUnloaded, e.State())
}

func TestServer_ModelLoad_InProgress(t *testing.T) {
	loader := &testutil.FakeLoader{
		Model:   &testutil.FakeModel{},
		Gate:    make(chan struct{}),
		Started: make(chan struct{}, 1),
	}
	e := engine.New(testArtifacts, &testutil.FakeProber{}, loader, engine.WithLogger(quietLogger()))
	h := newTestServer(t, e, testConfig()).Handler()

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/model/load", nil))
		first <- w.Code
	}()
	<-loader.Started

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/model/load", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp ModelLoadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "loading", resp.Model.State)

	close(loader.Gate)
	assert.Equal(t, http.StatusOK, <-first)
	_ = e.Close()
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t, newTestEngine(t, &testutil.FakeModel{}, true), testConfig()).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "onionqc_http_requests_total")
}

func TestServer_Close(t *testing.T) {
	s := NewServer(newTestEngine(t, &testutil.FakeModel{}, true), testConfig())
	require.NoError(t, s.Close())
}
