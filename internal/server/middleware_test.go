package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/onionqc/internal/testutil"
)

func TestCORSMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigin = "https://packhouse.example"
	s := newTestServer(t, newTestEngine(t, &testutil.FakeModel{}, true), cfg)

	called := false
	h := s.corsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodOptions, "/analyze/image", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Equal(t, "https://packhouse.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestRequestIDMiddleware_GeneratesUUID(t *testing.T) {
	s := newTestServer(t, newTestEngine(t, &testutil.FakeModel{}, true), testConfig())

	var seen string
	h := s.requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestLoggingMiddleware_RecoversPanics(t *testing.T) {
	s := newTestServer(t, newTestEngine(t, &testutil.FakeModel{}, true), testConfig())
	h := s.loggingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("sorting belt jammed")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	h := newTestServer(t, newTestEngine(t, &testutil.FakeModel{Results: testutil.Results(0.1)}, true), cfg).Handler()

	for range 2 {
		w := postMultipart(t, h, "/analyze/image", nil, formFile{"image", "a.png", onionPNG(t)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postMultipart(t, h, "/analyze/image", nil, formFile{"image", "a.png", onionPNG(t)})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])

	// health is not rate limited
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_DataQuota(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: true, MaxDataPerDayMB: 1}
	h := newTestServer(t, newTestEngine(t, &testutil.FakeModel{Results: testutil.Results(0.1)}, true), cfg).Handler()

	big := make([]byte, 2*1024*1024)
	w := postMultipart(t, h, "/analyze/image", nil, formFile{"image", "big.png", big})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "data", w.Header().Get("X-Quota-Type"))
	assert.Equal(t, "1048576", w.Header().Get("X-Quota-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-Quota-Resets"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:555", "203.0.113.7"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 203.0.113.8 "}, "10.0.0.2:555", "203.0.113.8"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.3"}, "10.0.0.2:555", "198.51.100.3"},
		{"remote addr", nil, "192.0.2.10:4242", "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.11", "192.0.2.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}
