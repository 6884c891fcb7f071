package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/utils"
)

// MapHTTPStatus returns the HTTP status code for an analysis error.
func MapHTTPStatus(err error) int {
	var imgErr *utils.ImageProcessingError
	var tooLarge *http.MaxBytesError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrModelNotReady), errors.Is(err, engine.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrInvalidImage), errors.As(err, &imgErr):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrClassificationFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorType is a short machine-readable name for err, used in WebSocket
// error messages.
func errorType(err error) string {
	switch MapHTTPStatus(err) {
	case http.StatusServiceUnavailable:
		return "model_unavailable"
	case http.StatusBadRequest:
		return "invalid_image"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusUnprocessableEntity:
		return "classification_failed"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}
