package run_test

import (
	"testing"

	"uplift/internal/run"
)

func TestForwardChainTransitions(t *testing.T) {
	chain := []run.Stage{
		run.StageCreated,
		run.StageValidated,
		run.StageFeaturesBuilt,
		run.StageTraining,
		run.StageTrained,
		run.StageOutputsReady,
	}
	for i := 0; i < len(chain)-1; i++ {
		if !run.CanTransition(chain[i], chain[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", chain[i], chain[i+1])
		}
	}
	for i := 0; i < len(chain)-2; i++ {
		if run.CanTransition(chain[i], chain[i+2]) {
			t.Fatalf("expected %s -> %s (skipping a stage) to be rejected", chain[i], chain[i+2])
		}
	}
	if run.CanTransition(run.StageTrained, run.StageCreated) {
		t.Fatal("expected backwards transition to be rejected")
	}
}

func TestErrorReachableFromNonTerminalStages(t *testing.T) {
	for _, stage := range []run.Stage{
		run.StageCreated,
		run.StageValidated,
		run.StageFeaturesBuilt,
		run.StageTraining,
		run.StageTrained,
	} {
		if !run.CanTransition(stage, run.StageError) {
			t.Fatalf("expected %s -> ERROR to be allowed", stage)
		}
	}
}

func TestTerminalStages(t *testing.T) {
	for _, stage := range []run.Stage{run.StageOutputsReady, run.StageError} {
		if !run.IsTerminal(stage) {
			t.Fatalf("expected %s to be terminal", stage)
		}
		if run.CanTransition(stage, run.StageValidated) {
			t.Fatalf("expected %s to reject forward transitions", stage)
		}
	}
	if run.CanTransition(run.StageOutputsReady, run.StageError) {
		t.Fatal("expected completed runs to stay completed")
	}
}

func TestParseStage(t *testing.T) {
	cases := []struct {
		in   string
		want run.Stage
		ok   bool
	}{
		{"CREATED", run.StageCreated, true},
		{" outputs_ready ", run.StageOutputsReady, true},
		{"error", run.StageError, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := run.ParseStage(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseStage(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSpecApplyDefaults(t *testing.T) {
	spec := run.Spec{DatasetID: "ds-1"}
	spec.ApplyDefaults()

	if spec.Grain != run.GrainWeek {
		t.Fatalf("expected WEEK default grain, got %s", spec.Grain)
	}
	if spec.TargetCol != "sales" {
		t.Fatalf("expected sales default target, got %q", spec.TargetCol)
	}
	if spec.FeatureConfig.Adstock.DecayDefault != 0.5 {
		t.Fatalf("expected decay default 0.5, got %v", spec.FeatureConfig.Adstock.DecayDefault)
	}
	if spec.Windows.CarryoverMonths != 12 || spec.Windows.EstimationMonths != 12 {
		t.Fatalf("unexpected window defaults: %+v", spec.Windows)
	}
	if spec.FeatureConfig.Saturation.IsEnabled() {
		t.Fatal("saturation must be opt-in")
	}
	if !spec.FeatureConfig.Seasonality.IsEnabled() || !spec.FeatureConfig.Trend.IsEnabled() {
		t.Fatal("seasonality and trend default on")
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("defaulted spec should validate: %v", err)
	}
}

func TestSpecValidateRejectsBadDecay(t *testing.T) {
	spec := run.Spec{DatasetID: "ds-1"}
	spec.ApplyDefaults()
	spec.FeatureConfig.Adstock.DecayDefault = 1.5
	if err := spec.Validate(); err == nil {
		t.Fatal("expected decay outside [0,1] to be rejected")
	}
}
