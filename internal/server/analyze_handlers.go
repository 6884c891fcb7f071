package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/batch"
	"github.com/MeKo-Tech/onionqc/internal/events"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// parseUpload limits the body to the configured upload size and parses the
// multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return fmt.Errorf("failed to parse form: %w", err)
	}
	return nil
}

func (s *Server) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	if MapHTTPStatus(err) == http.StatusRequestEntityTooLarge {
		status = http.StatusRequestEntityTooLarge
	}
	s.writeErrorResponse(w, r, err.Error(), status)
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// analyzeImageHandler analyses a single uploaded image (form field "image").
func (s *Server) analyzeImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	defer observeDuration(events.SourceImage, start)

	if err := s.parseUpload(w, r); err != nil {
		s.writeUploadError(w, r, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, r, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, r, "Failed to read image", http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	requestID := requestIDFrom(r.Context())
	analysis, cached, err := s.analyzeBytes(ctx, data)
	recordAnalysis(events.SourceImage, analysis, err)
	if err != nil {
		s.logger.Warn("image analysis failed", "error", err, "filename", header.Filename, "request_id", requestID)
		s.writeErrorResponse(w, r, err.Error(), MapHTTPStatus(err))
		return
	}

	s.publish(ctx, events.AnalysisEvent{
		RequestID: requestID,
		Source:    events.SourceImage,
		Filename:  header.Filename,
		Timestamp: s.now(),
		Analysis:  analysis,
	})

	if r.FormValue("format") == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, batch.FormatAnalysisText(header.Filename, analysis))
		return
	}

	s.writeJSON(w, http.StatusOK, AnalysisResponse{
		Success:   true,
		RequestID: requestID,
		Filename:  header.Filename,
		Cached:    cached,
		Analysis:  &analysis,
	})
}

// analyzeBatchHandler analyses the images of the repeated form field
// "images". Each image yields a record; unreadable ones are degraded.
func (s *Server) analyzeBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	defer observeDuration(events.SourceBatch, start)

	if err := s.parseUpload(w, r); err != nil {
		s.writeUploadError(w, r, err)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		s.writeErrorResponse(w, r, "No images provided", http.StatusBadRequest)
		return
	}
	if s.maxBatchImages > 0 && len(files) > s.maxBatchImages {
		s.writeErrorResponse(w, r,
			fmt.Sprintf("Too many images: %d (max %d)", len(files), s.maxBatchImages), http.StatusBadRequest)
		return
	}

	uploads := make([]upload, len(files))
	for i, fh := range files {
		data, err := readFileHeader(fh)
		if err == nil {
			uploadSizeBytes.Observe(float64(len(data)))
		}
		uploads[i] = upload{Filename: fh.Filename, Data: data, Err: err}
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	requestID := requestIDFrom(r.Context())
	items, err := s.analyzeUploads(ctx, uploads, nil)
	if err != nil {
		analysisRequestsTotal.WithLabelValues(events.SourceBatch, "error").Inc()
		s.writeErrorResponse(w, r, err.Error(), MapHTTPStatus(err))
		return
	}
	for _, it := range items {
		recordAnalysis(events.SourceBatch, it.Analysis, nil)
	}

	s.publish(ctx, s.batchEvents(requestID, events.SourceBatch, items)...)

	s.writeJSON(w, http.StatusOK, newBatchResponse(requestID, items))
}
