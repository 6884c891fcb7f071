package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/onionqc/internal/server"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
	"github.com/cucumber/godog"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server *httptest.Server
	API    *server.Server
}

// Close stops the listener and releases the API server.
func (w *HTTPTestServerWrapper) Close() {
	w.Server.Close()
	_ = w.API.Close()
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the analysis server is running$`, testCtx.theAnalysisServerIsRunning)
	sc.Step(`^I send "(GET|POST) ([^"]*)"$`, testCtx.iSendRequest)
	sc.Step(`^I upload (\d+) onion images? to "([^"]*)" as "([^"]*)"$`, testCtx.iUploadOnionImages)
	sc.Step(`^I upload a corrupt file to "([^"]*)" as "([^"]*)"$`, testCtx.iUploadACorruptFile)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should have a request id$`, testCtx.theResponseShouldHaveARequestID)
}

func (testCtx *TestContext) theAnalysisServerIsRunning() error {
	api := server.NewServer(testCtx.engineFor(), server.Config{
		MaxUploadMB:    5,
		MaxBatchImages: 4,
		TimeoutSec:     10,
		Clock:          testCtx.now,
	}, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server: httptest.NewServer(api.Handler()),
		API:    api,
	}
	return nil
}

func (testCtx *TestContext) baseURL() (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPTestServer.Server.URL, nil
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iSendRequest(method, path string) error {
	base, err := testCtx.baseURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, base+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

type upload struct {
	name string
	data []byte
}

func (testCtx *TestContext) postMultipart(path, field string, files []upload) error {
	base, err := testCtx.baseURL()
	if err != nil {
		return err
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iUploadOnionImages(n int, path, field string) error {
	files := make([]upload, n)
	for i := range files {
		var buf bytes.Buffer
		if err := png.Encode(&buf, testutil.OnionImage(48, 48, 0.1)); err != nil {
			return err
		}
		files[i] = upload{name: fmt.Sprintf("onion-%d.png", i+1), data: buf.Bytes()}
	}
	return testCtx.postMultipart(path, field, files)
}

func (testCtx *TestContext) iUploadACorruptFile(path, field string) error {
	return testCtx.postMultipart(path, field, []upload{{name: "broken.png", data: []byte("not an image")}})
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// lookup follows a dotted path such as "analysis.qualityGrade" or
// "results.1.error" through a decoded JSON document.
func lookup(doc any, path string) (any, error) {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("field %q not found", key)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range", key)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q", cur, key)
		}
	}
	return cur, nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(path, want string) error {
	var doc any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	v, err := lookup(doc, path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s: expected %q, got %q", path, want, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldHaveARequestID() error {
	if testCtx.LastHTTPHeaders.Get(server.RequestIDHeader) == "" {
		return fmt.Errorf("missing %s header", server.RequestIDHeader)
	}
	return nil
}
