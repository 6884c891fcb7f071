package support

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/testutil"
	"github.com/cucumber/godog"
)

// RegisterEngineSteps registers model lifecycle and single-image steps.
func (testCtx *TestContext) RegisterEngineSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the model artifacts are reachable$`, testCtx.theModelArtifactsAreReachable)
	sc.Step(`^the model (topology|metadata) is missing$`, testCtx.theModelArtifactIsMissing)
	sc.Step(`^the classifier reports a spoilage probability of ([0-9.]+)$`, testCtx.theClassifierReportsSpoilage)
	sc.Step(`^the classifier fails with "([^"]*)"$`, testCtx.theClassifierFailsWith)
	sc.Step(`^the current month is (\w+)$`, testCtx.theCurrentMonthIs)
	sc.Step(`^the model is loaded$`, testCtx.loadModel)
	sc.Step(`^I load the model$`, testCtx.iLoadTheModel)
	sc.Step(`^loading should succeed$`, testCtx.loadingShouldSucceed)
	sc.Step(`^loading should fail because the model is unavailable$`, testCtx.loadingShouldFailUnavailable)
	sc.Step(`^the model state should be "([^"]*)"$`, testCtx.theModelStateShouldBe)
	sc.Step(`^I analyse an onion image$`, testCtx.iAnalyseAnOnionImage)
	sc.Step(`^the grade should be "([A-F])"$`, testCtx.theGradeShouldBe)
	sc.Step(`^the status should be "([^"]*)"$`, testCtx.theStatusShouldBe)
	sc.Step(`^the shelf life should be (\d+) days$`, testCtx.theShelfLifeShouldBe)
	sc.Step(`^the quality score should be (\d+)$`, testCtx.theQualityScoreShouldBe)
	sc.Step(`^the deterioration index should be (\d+)$`, testCtx.theDeteriorationIndexShouldBe)
	sc.Step(`^the season should be "([^"]*)"$`, testCtx.theSeasonShouldBe)
	sc.Step(`^the recommendations should include "([^"]*)"$`, testCtx.theRecommendationsShouldInclude)
	sc.Step(`^the analysis should fail with "(model not ready|classification failure|invalid image)"$`,
		testCtx.theAnalysisShouldFailWith)
}

func (testCtx *TestContext) theModelArtifactsAreReachable() error {
	testCtx.Prober.Statuses = map[string]int{}
	return nil
}

func (testCtx *TestContext) theModelArtifactIsMissing(which string) error {
	location := testCtx.Artifacts.Topology
	if which == "metadata" {
		location = testCtx.Artifacts.Metadata
	}
	testCtx.Prober.Statuses[location] = http.StatusNotFound
	return nil
}

func (testCtx *TestContext) theClassifierReportsSpoilage(p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("probability out of range: %v", p)
	}
	testCtx.Model.Results = testutil.Results(p)
	testCtx.Model.Err = nil
	return nil
}

func (testCtx *TestContext) theClassifierFailsWith(msg string) error {
	testCtx.Model.Err = errors.New(msg)
	return nil
}

func (testCtx *TestContext) theCurrentMonthIs(name string) error {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			testCtx.Month = m
			return nil
		}
	}
	return fmt.Errorf("unknown month: %s", name)
}

func (testCtx *TestContext) iLoadTheModel() error {
	testCtx.LastError = testCtx.loadModel()
	return nil
}

func (testCtx *TestContext) loadingShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("expected load to succeed, got: %w", testCtx.LastError)
	}
	return nil
}

func (testCtx *TestContext) loadingShouldFailUnavailable() error {
	if !errors.Is(testCtx.LastError, engine.ErrModelUnavailable) {
		return fmt.Errorf("expected model unavailable error, got: %v", testCtx.LastError)
	}
	return nil
}

func (testCtx *TestContext) theModelStateShouldBe(state string) error {
	if got := testCtx.engineFor().State().String(); got != state {
		return fmt.Errorf("expected model state %q, got %q", state, got)
	}
	return nil
}

func (testCtx *TestContext) iAnalyseAnOnionImage() error {
	img := testutil.OnionImage(64, 64, 0.1)
	testCtx.LastAnalysis, testCtx.LastError = testCtx.engineFor().Analyze(context.Background(), img)
	return nil
}

func (testCtx *TestContext) requireAnalysis() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("analysis failed: %w", testCtx.LastError)
	}
	return nil
}

func (testCtx *TestContext) theGradeShouldBe(grade string) error {
	if err := testCtx.requireAnalysis(); err != nil {
		return err
	}
	if got := string(testCtx.LastAnalysis.QualityGrade); got != grade {
		return fmt.Errorf("expected grade %s, got %s", grade, got)
	}
	return nil
}

func (testCtx *TestContext) theStatusShouldBe(status string) error {
	if err := testCtx.requireAnalysis(); err != nil {
		return err
	}
	if got := string(testCtx.LastAnalysis.Status); got != status {
		return fmt.Errorf("expected status %s, got %s", status, got)
	}
	return nil
}

func (testCtx *TestContext) theShelfLifeShouldBe(days int) error {
	if err := testCtx.requireAnalysis(); err != nil {
		return err
	}
	if got := testCtx.LastAnalysis.ShelfLifeDays; got != days {
		return fmt.Errorf("expected shelf life %d days, got %d", days, got)
	}
	return nil
}

func (testCtx *TestContext) theQualityScoreShouldBe(score int) error {
	if err := testCtx.requireAnalysis(); err != nil {
		return err
	}
	if got := testCtx.LastAnalysis.QualityScore; got != score {
		return fmt.Errorf("expected quality score %d, got %d", score, got)
	}
	return nil
}

func (testCtx *TestContext) theDeteriorationIndexShouldBe(index int) error {
	if err := testCtx.requireAnalysis(); err != nil {
		return err
	}
	if got := testCtx.LastAnalysis.DeteriorationIndex; got != index {
		return fmt.Errorf("expected deterioration index %d, got %d", index, got)
	}
	return nil
}

func (testCtx *TestContext) theSeasonShouldBe(season string) error {
	if err := testCtx.requireAnalysis(); err != nil {
		return err
	}
	if got := testCtx.LastAnalysis.EnvironmentalFactors.Season; got != season {
		return fmt.Errorf("expected season %q, got %q", season, got)
	}
	return nil
}

func (testCtx *TestContext) theRecommendationsShouldInclude(text string) error {
	if err := testCtx.requireAnalysis(); err != nil {
		return err
	}
	for _, r := range testCtx.LastAnalysis.Recommendations {
		if r == text {
			return nil
		}
	}
	return fmt.Errorf("recommendation %q not found in %v", text, testCtx.LastAnalysis.Recommendations)
}

func (testCtx *TestContext) theAnalysisShouldFailWith(kind string) error {
	want := map[string]error{
		"model not ready":        engine.ErrModelNotReady,
		"classification failure": engine.ErrClassificationFailure,
		"invalid image":          engine.ErrInvalidImage,
	}[kind]
	if !errors.Is(testCtx.LastError, want) {
		return fmt.Errorf("expected %s error, got: %v", kind, testCtx.LastError)
	}
	return nil
}
