package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is.
var (
	// ErrModelUnavailable means a model artifact could not be fetched or the
	// model could not be initialised from it.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelNotReady means analysis was attempted before a successful load.
	ErrModelNotReady = errors.New("model not ready")
	// ErrClassificationFailure means the classifier failed or returned no
	// results.
	ErrClassificationFailure = errors.New("classification failure")
	// ErrInvalidImage means the input could not be used as an image.
	ErrInvalidImage = errors.New("invalid image")
)

// ModelUnavailableError names the artifact whose reachability check failed.
type ModelUnavailableError struct {
	Artifact   string
	StatusCode int   // 0 when no response was received
	Err        error // transport error, if any
}

func (e *ModelUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model file not accessible: %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("model file not found: %s (status: %d)", e.Artifact, e.StatusCode)
}

// Is makes the error match ErrModelUnavailable.
func (e *ModelUnavailableError) Is(target error) bool {
	return target == ErrModelUnavailable
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}
