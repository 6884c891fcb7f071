// Package utils loads and validates the raster images fed to the analyzer.
package utils

import "fmt"

// ImageProcessingError represents errors that can occur while loading or
// validating an image.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}
