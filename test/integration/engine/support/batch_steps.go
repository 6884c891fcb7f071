package support

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
	"github.com/cucumber/godog"
)

// RegisterBatchSteps registers batch analysis steps.
func (testCtx *TestContext) RegisterBatchSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the engine analyses (\d+) images concurrently$`, testCtx.theEngineAnalysesConcurrently)
	sc.Step(`^I analyse a batch of (\d+) images$`, testCtx.iAnalyseABatch)
	sc.Step(`^I analyse a batch of (\d+) images where image (\d+) is empty$`, testCtx.iAnalyseABatchWithEmptyImage)
	sc.Step(`^I analyse a batch of (\d+) images with a cancelled context$`, testCtx.iAnalyseACancelledBatch)
	sc.Step(`^the batch should contain (\d+) records$`, testCtx.theBatchShouldContain)
	sc.Step(`^record (\d+) should have grade "([A-F])"$`, testCtx.recordShouldHaveGrade)
	sc.Step(`^record (\d+) should be a degraded record mentioning "([^"]*)"$`, testCtx.recordShouldBeDegraded)
	sc.Step(`^every record should be a degraded record$`, testCtx.everyRecordShouldBeDegraded)
	sc.Step(`^progress should have been reported (\d+) times ending at (\d+)$`, testCtx.progressShouldHaveBeenReported)
}

func (testCtx *TestContext) theEngineAnalysesConcurrently(n int) error {
	testCtx.Workers = n
	return nil
}

func onionImages(n int) []image.Image {
	images := make([]image.Image, n)
	for i := range images {
		images[i] = testutil.OnionImage(32, 32, 0.1)
	}
	return images
}

func (testCtx *TestContext) runBatch(ctx context.Context, images []image.Image) {
	testCtx.LastProgress = nil
	progress := engine.ProgressFunc(func(done, _ int) {
		testCtx.LastProgress = append(testCtx.LastProgress, done)
	})
	testCtx.LastBatch = testCtx.engineFor().AnalyzeBatchResults(ctx, images, progress)
}

func (testCtx *TestContext) iAnalyseABatch(n int) error {
	testCtx.runBatch(context.Background(), onionImages(n))
	return nil
}

func (testCtx *TestContext) iAnalyseABatchWithEmptyImage(n, empty int) error {
	if empty < 1 || empty > n {
		return fmt.Errorf("image %d is outside a batch of %d", empty, n)
	}
	images := onionImages(n)
	images[empty-1] = image.NewNRGBA(image.Rect(0, 0, 0, 0))
	testCtx.runBatch(context.Background(), images)
	return nil
}

func (testCtx *TestContext) iAnalyseACancelledBatch(n int) error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	testCtx.runBatch(ctx, onionImages(n))
	return nil
}

func (testCtx *TestContext) theBatchShouldContain(n int) error {
	if len(testCtx.LastBatch) != n {
		return fmt.Errorf("expected %d records, got %d", n, len(testCtx.LastBatch))
	}
	for i, r := range testCtx.LastBatch {
		if r.Index != i {
			return fmt.Errorf("record %d carries index %d", i+1, r.Index)
		}
	}
	return nil
}

func (testCtx *TestContext) record(n int) (engine.ItemResult, error) {
	if n < 1 || n > len(testCtx.LastBatch) {
		return engine.ItemResult{}, fmt.Errorf("no record %d in a batch of %d", n, len(testCtx.LastBatch))
	}
	return testCtx.LastBatch[n-1], nil
}

func (testCtx *TestContext) recordShouldHaveGrade(n int, grade string) error {
	r, err := testCtx.record(n)
	if err != nil {
		return err
	}
	if r.Err != nil {
		return fmt.Errorf("record %d failed: %w", n, r.Err)
	}
	if got := string(r.Record().QualityGrade); got != grade {
		return fmt.Errorf("record %d: expected grade %s, got %s", n, grade, got)
	}
	return nil
}

func (testCtx *TestContext) recordShouldBeDegraded(n int, text string) error {
	r, err := testCtx.record(n)
	if err != nil {
		return err
	}
	rec := r.Record()
	if !quality.IsFailed(rec) {
		return fmt.Errorf("record %d is not degraded: grade %s", n, rec.QualityGrade)
	}
	if rec.QualityGrade != quality.GradeF || rec.Status != quality.StatusCritical {
		return fmt.Errorf("record %d: degraded record must be F/critical, got %s/%s", n, rec.QualityGrade, rec.Status)
	}
	if len(rec.RiskFactors) == 0 || !strings.Contains(rec.RiskFactors[0], text) {
		return fmt.Errorf("record %d: risk factors %v do not mention %q", n, rec.RiskFactors, text)
	}
	return nil
}

func (testCtx *TestContext) everyRecordShouldBeDegraded() error {
	for i, r := range testCtx.LastBatch {
		if !quality.IsFailed(r.Record()) {
			return fmt.Errorf("record %d is not degraded", i+1)
		}
	}
	return nil
}

func (testCtx *TestContext) progressShouldHaveBeenReported(times, last int) error {
	if len(testCtx.LastProgress) != times {
		return fmt.Errorf("expected %d progress reports, got %d", times, len(testCtx.LastProgress))
	}
	if times > 0 && testCtx.LastProgress[times-1] != last {
		return fmt.Errorf("expected last progress %d, got %d", last, testCtx.LastProgress[times-1])
	}
	return nil
}
