package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"
)

// Prober checks whether an artifact can be fetched. It returns the HTTP status
// of the location; local files report 200 when present and 404 when missing.
// A non-nil error means the check itself could not complete.
type Prober interface {
	Probe(ctx context.Context, location string) (int, error)
}

// Fetcher reads an artifact's bytes.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Source probes and fetches artifacts from the local filesystem or over HTTP.
type Source struct {
	client *http.Client
}

// NewSource returns a Source. A nil client gets a 30 second timeout client.
func NewSource(client *http.Client) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{client: client}
}

// Probe implements Prober.
func (s *Source) Probe(ctx context.Context, location string) (int, error) {
	if !IsRemote(location) {
		return probeFile(location)
	}

	status, err := s.request(ctx, http.MethodHead, location)
	if err != nil {
		return 0, err
	}
	// some static hosts reject HEAD
	if status == http.StatusMethodNotAllowed {
		return s.request(ctx, http.MethodGet, location)
	}
	return status, nil
}

func (s *Source) request(ctx context.Context, method, location string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, location, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func probeFile(path string) (int, error) {
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, nil
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden, nil
	case err != nil:
		return 0, err
	case fi.IsDir():
		return http.StatusNotFound, nil
	default:
		return http.StatusOK, nil
	}
}

// Fetch implements Fetcher.
func (s *Source) Fetch(ctx context.Context, location string) ([]byte, error) {
	if !IsRemote(location) {
		data, err := os.ReadFile(location) //nolint:gosec // G304: configured model path
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", location, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status <= 299
}
