// Package pipeline runs the modeling stages for a run, from validation
// through persisted outputs.
//
// A run executes in a single goroutine: validate and canonicalize the
// dataset, build features, sample the posterior through the engine, then
// write diagnostics, contributions, ROI, and fitted values as artifacts.
// The stage status is advanced before each stage's work begins, and any
// failure lands the run in ERROR with the failure message recorded verbatim.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"uplift/internal/canonical"
	"uplift/internal/contrib"
	"uplift/internal/dataset"
	"uplift/internal/diagnostics"
	"uplift/internal/features"
	"uplift/internal/logging"
	"uplift/internal/run"
	"uplift/internal/sampler"
	"uplift/internal/services"
	"uplift/internal/store"
)

// Runner executes runs against a store and a sampling engine.
type Runner struct {
	store  *store.Store
	engine sampler.Engine
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewRunner constructs a pipeline runner.
func NewRunner(st *store.Store, engine sampler.Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:  st,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Launch starts a run in the background and returns immediately. Failures
// are recorded on the run itself, never returned to the caller.
func (r *Runner) Launch(runID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := services.WithRunID(context.Background(), runID)
		ctx = services.WithRequestID(ctx, uuid.NewString())
		_ = r.Execute(ctx, runID)
	}()
}

// Wait blocks until every launched run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Execute runs the full pipeline synchronously. The returned error has
// already been recorded on the run.
func (r *Runner) Execute(ctx context.Context, runID string) error {
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()

	if err := r.execute(ctx, runID, logger); err != nil {
		logger.Error("run failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Error(err))
		if setErr := r.store.SetRunError(ctx, runID, err.Error()); setErr != nil {
			logger.Error("failed to record run failure", logging.Error(setErr))
		}
		return err
	}

	logger.Info("run completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}

func (r *Runner) execute(ctx context.Context, runID string, logger *slog.Logger) error {
	rec, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	ds, err := r.store.GetDataset(ctx, rec.DatasetID)
	if err != nil {
		return err
	}
	spec := rec.Spec

	// Validation and canonicalization.
	if err := r.advance(ctx, runID, logger, run.StageValidated, run.ProgressValidated); err != nil {
		return err
	}
	table, err := dataset.ReadCSV(bytes.NewReader(ds.CSV))
	if err != nil {
		return err
	}
	summary := dataset.Validate(ds.ID, table, spec.TargetCol)
	if err := r.store.PutArtifact(ctx, ds.ID, store.ArtifactValidationSummary, summary); err != nil {
		return err
	}
	if !summary.IsValid() {
		return services.Wrap(services.ErrValidation, "validate", "dataset",
			strings.Join(summary.Errors, "; "), nil)
	}
	for _, warning := range summary.Warnings {
		logger.Warn("validation warning",
			logging.String(logging.FieldAlert, "validation"),
			logging.String("detail", warning))
	}

	series, columnInfo, err := canonical.Aggregate(table, spec.Grain, spec.TargetCol)
	if err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactCanonicalData, series); err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactColumnInfo, columnInfo); err != nil {
		return err
	}

	// Feature build.
	if err := r.advance(ctx, runID, logger, run.StageFeaturesBuilt, run.ProgressFeaturesBuilt); err != nil {
		return err
	}
	built, err := features.Build(series, columnInfo, spec)
	if err != nil {
		return err
	}
	for _, warning := range built.Metadata.Warnings {
		logger.Warn("feature warning",
			logging.String(logging.FieldAlert, "features"),
			logging.String("detail", warning))
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactFeatures, built.Matrix); err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactFeatureScaler, built.Scaler); err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactFeatureMetadata, built.Metadata); err != nil {
		return err
	}

	// Sampling.
	if err := r.advance(ctx, runID, logger, run.StageTraining, run.ProgressTraining); err != nil {
		return err
	}
	request := sampler.Request{
		Design:   sampler.NewDesign(built),
		Priors:   sampler.DefaultPriors(),
		Sampling: spec.Sampling,
	}
	logger.Info("sampling started",
		logging.Int("chains", spec.Sampling.Chains),
		logging.Int("draws", spec.Sampling.Draws),
		logging.Int("channels", len(request.Design.ChannelNames)))
	result, err := r.engine.Sample(ctx, request)
	if err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactPosterior, result); err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactModelMetadata, sampler.NewModelMetadata(request)); err != nil {
		return err
	}

	// Diagnostics and decomposition.
	if err := r.advance(ctx, runID, logger, run.StageTrained, run.ProgressTrained); err != nil {
		return err
	}
	report := diagnostics.Evaluate(runID, &result.Posterior, &result.Stats, spec.Sampling)
	if report.OverallStatus != diagnostics.StatusPass {
		logger.Warn("sampling diagnostics reported warnings",
			logging.String(logging.FieldAlert, "diagnostics"),
			logging.Any("warnings", report.Warnings))
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactDiagnostics, report); err != nil {
		return err
	}
	posteriorSummary := diagnostics.Summarize(&result.Posterior, request.Design.ChannelNames)
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactPosteriorSummary, posteriorSummary); err != nil {
		return err
	}

	coef := contrib.Means(&result.Posterior)
	decomposition, err := contrib.Compute(built, coef)
	if err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactContributions, decomposition.Rows); err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactContributionSummary, decomposition.Summary); err != nil {
		return err
	}
	roi := contrib.ROI(decomposition.Summary, series, built.Matrix.PeriodStart)
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactROIMetrics, roi); err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactFitted, decomposition.Fitted); err != nil {
		return err
	}
	if err := r.store.PutArtifact(ctx, runID, store.ArtifactFitMetrics, decomposition.FitMetrics); err != nil {
		return err
	}

	return r.advance(ctx, runID, logger, run.StageOutputsReady, run.ProgressOutputsReady)
}

func (r *Runner) advance(ctx context.Context, runID string, logger *slog.Logger, stage run.Stage, progress int) error {
	if err := r.store.UpdateRunStatus(ctx, runID, stage, progress); err != nil {
		return fmt.Errorf("advance to %s: %w", stage, err)
	}
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldStage, string(stage)),
		logging.Int("progress", progress))
	return nil
}
