package engine

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// ItemResult is the outcome for one image of a batch.
type ItemResult struct {
	Index    int
	Analysis quality.OnionAnalysis
	Err      error
}

// Record returns the analysis, or the degraded placeholder when the item
// failed.
func (r ItemResult) Record() quality.OnionAnalysis {
	if r.Err != nil {
		return quality.FailedAnalysis(r.Err)
	}
	return r.Analysis
}

// AnalyzeBatchResults analyses images and returns one result per image in
// input order. Per-image failures are reported in ItemResult.Err and never
// stop the batch. Once ctx is done, images not yet started fail with the
// context error.
func (e *Engine) AnalyzeBatchResults(ctx context.Context, images []image.Image, progress ProgressCallback) []ItemResult {
	results := make([]ItemResult, len(images))
	if len(images) == 0 {
		return results
	}
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	progress.OnStart(len(images))
	defer progress.OnComplete()

	tracker := &batchTracker{total: len(images), progress: progress}

	workers := min(e.workers, len(images))
	if workers < 2 {
		for i, img := range images {
			results[i] = e.analyzeItem(ctx, i, img)
			tracker.done(results[i])
		}
		return results
	}

	jobs := make(chan int, len(images))
	for i := range images {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// each index is written by exactly one worker
				results[i] = e.analyzeItem(ctx, i, images[i])
				tracker.done(results[i])
			}
		}()
	}
	wg.Wait()

	return results
}

// AnalyzeBatch analyses images and never fails: items that could not be
// analysed are replaced by degraded records (grade F, status critical).
func (e *Engine) AnalyzeBatch(ctx context.Context, images []image.Image, progress ProgressCallback) []quality.OnionAnalysis {
	items := e.AnalyzeBatchResults(ctx, images, progress)
	out := make([]quality.OnionAnalysis, len(items))
	for i, item := range items {
		out[i] = item.Record()
	}
	return out
}

func (e *Engine) analyzeItem(ctx context.Context, index int, img image.Image) ItemResult {
	if err := ctx.Err(); err != nil {
		return ItemResult{Index: index, Err: err}
	}

	analysis, err := e.Analyze(ctx, img)
	if err != nil {
		e.logger.Warn("batch item failed", "index", index, "error", err)
		return ItemResult{Index: index, Err: err}
	}
	return ItemResult{Index: index, Analysis: analysis}
}

// batchTracker serialises progress reports from concurrent workers.
type batchTracker struct {
	mu       sync.Mutex
	total    int
	finished int
	progress ProgressCallback
}

func (t *batchTracker) done(r ItemResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished++
	if r.Err != nil {
		t.progress.OnError(r.Index, r.Err)
	}
	t.progress.OnProgress(t.finished, t.total)
}
