package store_test

import (
	"context"
	"errors"
	"testing"

	"uplift/internal/run"
	"uplift/internal/services"
	"uplift/internal/store"
	"uplift/internal/testsupport"
)

var sampleCSV = []byte("entity_id,period_start,sales\na,2024-01-01,10\n")

func newRun(t *testing.T, st *store.Store, datasetID string) *run.Run {
	t.Helper()
	spec := run.Spec{DatasetID: datasetID}
	spec.ApplyDefaults()
	r, err := st.CreateRun(context.Background(), datasetID, spec)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return r
}

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ds := testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	if ds.ID != "ds_1" || ds.CreatedAt.IsZero() {
		t.Fatalf("unexpected dataset: %#v", ds)
	}

	fetched, err := st.GetDataset(context.Background(), "ds_1")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if string(fetched.CSV) != string(sampleCSV) {
		t.Fatalf("csv round trip mismatch: %q", fetched.CSV)
	}
}

func TestSaveDatasetRejectsDuplicateID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	if _, err := st.SaveDataset(context.Background(), "ds_1", "again", sampleCSV); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for duplicate id, got %v", err)
	}
}

func TestCreateRunStartsCreated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)

	r := newRun(t, st, "ds_1")
	if r.Status.Stage != run.StageCreated || r.Status.Progress != 0 {
		t.Fatalf("unexpected initial status: %#v", r.Status)
	}
	if r.Status.StartedAt != nil {
		t.Fatal("started_at should be unset before the first update")
	}
	if len(r.ID) != len("run_")+8 {
		t.Fatalf("unexpected run id format: %q", r.ID)
	}
}

func TestUpdateRunStatusEnforcesTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	r := newRun(t, st, "ds_1")

	ctx := context.Background()
	if err := st.UpdateRunStatus(ctx, r.ID, run.StageTrained, run.ProgressTrained); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	if err := st.UpdateRunStatus(ctx, r.ID, run.StageValidated, run.ProgressValidated); err != nil {
		t.Fatalf("UpdateRunStatus failed: %v", err)
	}

	status, err := st.GetRunStatus(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRunStatus failed: %v", err)
	}
	if status.Stage != run.StageValidated || status.Progress != run.ProgressValidated {
		t.Fatalf("unexpected status: %#v", status)
	}
	if status.StartedAt == nil || status.UpdatedAt == nil {
		t.Fatal("expected started_at and updated_at to be stamped")
	}
}

func TestUpdateRunStatusPreservesStartedAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	r := newRun(t, st, "ds_1")

	ctx := context.Background()
	if err := st.UpdateRunStatus(ctx, r.ID, run.StageValidated, run.ProgressValidated); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	first, err := st.GetRunStatus(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRunStatus failed: %v", err)
	}

	if err := st.UpdateRunStatus(ctx, r.ID, run.StageFeaturesBuilt, run.ProgressFeaturesBuilt); err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	second, err := st.GetRunStatus(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRunStatus failed: %v", err)
	}
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("started_at changed: %v -> %v", first.StartedAt, second.StartedAt)
	}
}

func TestSetRunErrorRecordsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	r := newRun(t, st, "ds_1")

	ctx := context.Background()
	if err := st.UpdateRunStatus(ctx, r.ID, run.StageValidated, run.ProgressValidated); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := st.SetRunError(ctx, r.ID, "features: no activity driver columns"); err != nil {
		t.Fatalf("SetRunError failed: %v", err)
	}

	status, err := st.GetRunStatus(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRunStatus failed: %v", err)
	}
	if status.Stage != run.StageError {
		t.Fatalf("stage = %s, want ERROR", status.Stage)
	}
	if status.Error != "features: no activity driver columns" {
		t.Fatalf("error = %q", status.Error)
	}
	if status.Progress != run.ProgressValidated {
		t.Fatalf("progress = %d, want preserved %d", status.Progress, run.ProgressValidated)
	}

	// ERROR to ERROR is a self-transition and stays allowed.
	if err := st.SetRunError(ctx, r.ID, "again"); err != nil {
		t.Fatalf("re-fail from ERROR should be allowed: %v", err)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	r := newRun(t, st, "ds_1")

	ctx := context.Background()
	payload := map[string]any{"target": "sales", "aggregation_level": "brand_total"}
	if err := st.PutArtifact(ctx, r.ID, store.ArtifactColumnInfo, payload); err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}

	var decoded map[string]any
	if err := st.GetArtifact(ctx, r.ID, store.ArtifactColumnInfo, &decoded); err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if decoded["target"] != "sales" {
		t.Fatalf("unexpected payload: %#v", decoded)
	}

	// Overwrite replaces the document.
	if err := st.PutArtifact(ctx, r.ID, store.ArtifactColumnInfo, map[string]any{"target": "revenue"}); err != nil {
		t.Fatalf("PutArtifact overwrite failed: %v", err)
	}
	if err := st.GetArtifact(ctx, r.ID, store.ArtifactColumnInfo, &decoded); err != nil {
		t.Fatalf("GetArtifact after overwrite failed: %v", err)
	}
	if decoded["target"] != "revenue" {
		t.Fatalf("expected overwrite, got %#v", decoded)
	}

	kinds, err := st.ListArtifactKinds(ctx, r.ID)
	if err != nil {
		t.Fatalf("ListArtifactKinds failed: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != store.ArtifactColumnInfo {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestGetArtifactMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	var dest map[string]any
	err := st.GetArtifact(context.Background(), "run_missing", store.ArtifactFitted, &dest)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRunRemovesArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	r := newRun(t, st, "ds_1")

	ctx := context.Background()
	if err := st.PutArtifact(ctx, r.ID, store.ArtifactFitMetrics, map[string]float64{"mape": 1.5}); err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}
	if err := st.DeleteRun(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := st.GetRun(ctx, r.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected run gone, got %v", err)
	}
	if _, err := st.GetArtifactRaw(ctx, r.ID, store.ArtifactFitMetrics); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected artifacts gone, got %v", err)
	}
}

func TestDeleteDatasetCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "panel", sampleCSV)
	r := newRun(t, st, "ds_1")

	ctx := context.Background()
	if err := st.PutArtifact(ctx, "ds_1", store.ArtifactValidationSummary, map[string]any{"errors": []string{}}); err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}
	if err := st.DeleteDataset(ctx, "ds_1"); err != nil {
		t.Fatalf("DeleteDataset failed: %v", err)
	}
	if _, err := st.GetRun(ctx, r.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected run cascaded away, got %v", err)
	}
	if _, err := st.GetArtifactRaw(ctx, "ds_1", store.ArtifactValidationSummary); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected dataset artifacts gone, got %v", err)
	}
}

func TestListRunsFiltersByDataset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewDataset(t, st, "ds_1", "a", sampleCSV)
	testsupport.NewDataset(t, st, "ds_2", "b", sampleCSV)
	newRun(t, st, "ds_1")
	newRun(t, st, "ds_2")

	all, err := st.ListRuns(context.Background(), "")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all))
	}

	only, err := st.ListRuns(context.Background(), "ds_2")
	if err != nil {
		t.Fatalf("ListRuns filtered failed: %v", err)
	}
	if len(only) != 1 || only[0].DatasetID != "ds_2" {
		t.Fatalf("unexpected filtered runs: %#v", only)
	}
}
