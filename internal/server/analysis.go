package server

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/events"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/utils"
)

// requestContext bounds an analysis by the configured timeout.
func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(parent, s.timeout)
	}
	return context.WithCancel(parent)
}

// analyzeBytes decodes and analyses one uploaded image, consulting the
// result cache first. cached reports a cache hit.
func (s *Server) analyzeBytes(ctx context.Context, data []byte) (a quality.OnionAnalysis, cached bool, err error) {
	if !s.analyzer.Status().Loaded {
		return quality.OnionAnalysis{}, false, engine.ErrModelNotReady
	}

	month := s.now().Month()
	model := s.analyzer.ModelIdentity()
	if s.cache != nil {
		if hit, ok := s.cache.Lookup(ctx, model, data, month); ok {
			cacheLookupsTotal.WithLabelValues("hit").Inc()
			return hit, true, nil
		}
		cacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		return quality.OnionAnalysis{}, false, err
	}

	a, err = s.analyzer.Analyze(ctx, img)
	if err != nil {
		return quality.OnionAnalysis{}, false, err
	}

	if s.cache != nil {
		s.cache.Store(ctx, model, data, month, a)
	}
	return a, false, nil
}

// upload is one image of a batch request.
type upload struct {
	Filename string
	Data     []byte
	// Err is set when the upload could not be read.
	Err error
}

// analyzeUploads decodes and analyses a batch. Uploads that cannot be read or
// decoded become degraded records; the batch itself fails only when the
// model is not ready.
func (s *Server) analyzeUploads(ctx context.Context, uploads []upload, progress engine.ProgressCallback) ([]BatchItem, error) {
	if !s.analyzer.Status().Loaded {
		return nil, engine.ErrModelNotReady
	}

	images := make([]image.Image, len(uploads))
	decodeErrs := make([]error, len(uploads))
	for i, u := range uploads {
		if u.Err != nil {
			decodeErrs[i] = u.Err
			continue
		}
		img, _, err := utils.DecodeImageBytes(u.Data)
		if err != nil {
			decodeErrs[i] = err
			continue
		}
		images[i] = img
	}

	results := s.analyzer.AnalyzeBatchResults(ctx, images, progress)

	items := make([]BatchItem, len(uploads))
	for i, u := range uploads {
		err := decodeErrs[i]
		var record quality.OnionAnalysis
		switch {
		case err != nil:
			record = quality.FailedAnalysis(err)
		case i < len(results):
			err = results[i].Err
			record = results[i].Record()
		default:
			err = errors.New("missing batch result")
			record = quality.FailedAnalysis(err)
		}

		item := BatchItem{Index: i, Filename: u.Filename, Analysis: record}
		if err != nil {
			item.Error = err.Error()
		}
		items[i] = item
	}
	return items, nil
}

func newBatchResponse(requestID string, items []BatchItem) BatchResponse {
	analyses := make([]quality.OnionAnalysis, len(items))
	for i, it := range items {
		analyses[i] = it.Analysis
	}
	return BatchResponse{
		Success:   true,
		RequestID: requestID,
		Results:   items,
		Summary:   quality.Summarize(analyses),
	}
}

// recordAnalysis updates the analysis metrics for one outcome.
func recordAnalysis(kind string, a quality.OnionAnalysis, err error) {
	if err != nil || quality.IsFailed(a) {
		analysisRequestsTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	analysisRequestsTotal.WithLabelValues(kind, "success").Inc()
	analysisGrades.WithLabelValues(string(a.QualityGrade)).Inc()
	analysisShelfLife.Observe(float64(a.ShelfLifeDays))
}

// publish hands events to the publisher. Failures are logged and never fail
// the request.
func (s *Server) publish(ctx context.Context, evs ...events.AnalysisEvent) {
	if len(evs) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		eventsPublishedTotal.WithLabelValues("error").Add(float64(len(evs)))
		s.logger.Warn("failed to publish analysis events", "count", len(evs), "error", err)
		return
	}
	eventsPublishedTotal.WithLabelValues("success").Add(float64(len(evs)))
}

func (s *Server) batchEvents(requestID, source string, items []BatchItem) []events.AnalysisEvent {
	ts := s.now()
	evs := make([]events.AnalysisEvent, len(items))
	for i, it := range items {
		evs[i] = events.AnalysisEvent{
			RequestID: requestID,
			Index:     it.Index,
			Source:    source,
			Filename:  it.Filename,
			Timestamp: ts,
			Analysis:  it.Analysis,
		}
	}
	return evs
}

func observeDuration(kind string, start time.Time) {
	analysisDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
