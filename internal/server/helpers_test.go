package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/models"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
)

var testArtifacts = models.Artifacts{Topology: "models/model.onnx", Metadata: "models/metadata.json"}

func testClock() time.Time {
	return time.Date(2026, time.May, 15, 12, 0, 0, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		MaxBatchImages: 4,
		TimeoutSec:     10,
		Clock:          testClock,
	}
}

// newTestEngine returns an engine over model. It is loaded unless load is false.
func newTestEngine(t *testing.T, model *testutil.FakeModel, load bool) *engine.Engine {
	t.Helper()

	e := engine.New(testArtifacts, &testutil.FakeProber{}, &testutil.FakeLoader{Model: model},
		engine.WithClock(testClock), engine.WithLogger(quietLogger()))
	if load {
		ok, err := e.LoadModel(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newTestServer(t *testing.T, analyzer Analyzer, cfg Config, opts ...Option) *Server {
	t.Helper()

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s := NewServer(analyzer, cfg, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func postMultipart(t *testing.T, h http.Handler, path string, fields map[string]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func onionPNG(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.OnionImage(48, 48, 0.1))
}
