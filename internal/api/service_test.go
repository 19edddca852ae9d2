package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"uplift/internal/run"
	"uplift/internal/services"
	"uplift/internal/store"
	"uplift/internal/testsupport"
)

func smallPanelCSV() string {
	var b strings.Builder
	b.WriteString("entity_id,period_start,sales,act_tv,spend_tv,ctrl_price\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for week := 0; week < 20; week++ {
		date := start.AddDate(0, 0, week*7).Format("2006-01-02")
		fmt.Fprintf(&b, "brand_a,%s,%d,%d,%d,9.99\n", date, 1000+week, 50+week, 200+week)
	}
	return b.String()
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return NewService(cfg, st, nil, nil), st
}

func TestCreateDatasetPersistsValidation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	detail, err := svc.CreateDataset(ctx, CreateDatasetRequest{Name: "q1 panel", CSV: smallPanelCSV()})
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	if !strings.HasPrefix(detail.ID, "ds_") {
		t.Fatalf("unexpected dataset id %q", detail.ID)
	}
	if detail.RowCount != 20 {
		t.Fatalf("expected 20 rows, got %d", detail.RowCount)
	}
	if detail.Validation == nil || !detail.Validation.IsValid() {
		t.Fatalf("expected valid dataset, got %+v", detail.Validation)
	}
	if detail.Validation.Grain != "WEEK" {
		t.Fatalf("expected WEEK grain, got %q", detail.Validation.Grain)
	}

	kinds, err := st.ListArtifactKinds(ctx, detail.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{store.ArtifactRawData, store.ArtifactValidationSummary}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Fatalf("expected artifact kinds %v, got %v", want, kinds)
	}

	fetched, err := svc.DescribeDataset(ctx, detail.ID)
	if err != nil {
		t.Fatalf("DescribeDataset: %v", err)
	}
	if fetched.Validation == nil || fetched.Validation.DatasetID != detail.ID {
		t.Fatalf("expected persisted validation summary, got %+v", fetched.Validation)
	}
}

func TestCreateDatasetRejectsEmptyPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDataset(ctx, CreateDatasetRequest{Name: "", CSV: smallPanelCSV()}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}
	if _, err := svc.CreateDataset(ctx, CreateDatasetRequest{Name: "x", CSV: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty csv, got %v", err)
	}
}

func TestCreateRunAppliesDefaultsAndPersistsSpec(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	detail, err := svc.CreateDataset(ctx, CreateDatasetRequest{Name: "panel", CSV: smallPanelCSV()})
	if err != nil {
		t.Fatal(err)
	}

	created, err := svc.CreateRun(ctx, CreateRunRequest{
		DatasetID: detail.ID,
		Spec:      run.Spec{Drivers: []string{"act_tv"}},
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if created.Stage != string(run.StageCreated) {
		t.Fatalf("expected CREATED stage, got %s", created.Stage)
	}
	if created.Spec.TargetCol != run.DefaultTargetCol {
		t.Fatalf("expected default target col, got %q", created.Spec.TargetCol)
	}
	if created.Spec.Sampling.Draws == 0 || created.Spec.Sampling.Chains == 0 {
		t.Fatalf("expected sampling defaults from config, got %+v", created.Spec.Sampling)
	}

	var persisted run.Spec
	if err := st.GetArtifact(ctx, created.ID, store.ArtifactRunSpec, &persisted); err != nil {
		t.Fatalf("run_spec artifact missing: %v", err)
	}
	if persisted.Grain != run.GrainWeek {
		t.Fatalf("expected defaulted grain in persisted spec, got %q", persisted.Grain)
	}
}

func TestCreateRunUnknownDataset(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateRun(context.Background(), CreateRunRequest{DatasetID: "ds_missing"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestOutputGatedOnCompletion(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	detail, err := svc.CreateDataset(ctx, CreateDatasetRequest{Name: "panel", CSV: smallPanelCSV()})
	if err != nil {
		t.Fatal(err)
	}
	created, err := svc.CreateRun(ctx, CreateRunRequest{
		DatasetID: detail.ID,
		Spec:      run.Spec{Drivers: []string{"act_tv"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// status and run_spec are visible immediately.
	raw, err := svc.Output(ctx, created.ID, store.ArtifactStatus)
	if err != nil {
		t.Fatalf("status output: %v", err)
	}
	var status run.Status
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatal(err)
	}
	if status.Stage != run.StageCreated {
		t.Fatalf("expected CREATED status, got %s", status.Stage)
	}
	if _, err := svc.Output(ctx, created.ID, store.ArtifactRunSpec); err != nil {
		t.Fatalf("run_spec output: %v", err)
	}

	if _, err := svc.Output(ctx, created.ID, store.ArtifactDiagnostics); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-ready error before completion, got %v", err)
	}

	for _, step := range []struct {
		stage    run.Stage
		progress int
	}{
		{run.StageValidated, run.ProgressValidated},
		{run.StageFeaturesBuilt, run.ProgressFeaturesBuilt},
		{run.StageTraining, run.ProgressTraining},
		{run.StageTrained, run.ProgressTrained},
		{run.StageOutputsReady, run.ProgressOutputsReady},
	} {
		if err := st.UpdateRunStatus(ctx, created.ID, step.stage, step.progress); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.PutArtifact(ctx, created.ID, store.ArtifactDiagnostics, map[string]string{"overall_status": "PASS"}); err != nil {
		t.Fatal(err)
	}

	raw, err = svc.Output(ctx, created.ID, store.ArtifactDiagnostics)
	if err != nil {
		t.Fatalf("diagnostics output after completion: %v", err)
	}
	if !strings.Contains(string(raw), "PASS") {
		t.Fatalf("unexpected payload %s", raw)
	}
}

func TestRunsFilterByDataset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateDataset(ctx, CreateDatasetRequest{Name: "a", CSV: smallPanelCSV()})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.CreateDataset(ctx, CreateDatasetRequest{Name: "b", CSV: smallPanelCSV()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateRun(ctx, CreateRunRequest{DatasetID: first.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateRun(ctx, CreateRunRequest{DatasetID: second.ID}); err != nil {
		t.Fatal(err)
	}

	all, err := svc.Runs(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all))
	}
	scoped, err := svc.Runs(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].DatasetID != first.ID {
		t.Fatalf("expected 1 run for %s, got %+v", first.ID, scoped)
	}
}
