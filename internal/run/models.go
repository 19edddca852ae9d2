package run

import (
	"strings"
	"time"
)

// Stage represents the lifecycle position of a run.
type Stage string

const (
	StageCreated       Stage = "CREATED"
	StageValidated     Stage = "VALIDATED"
	StageFeaturesBuilt Stage = "FEATURES_BUILT"
	StageTraining      Stage = "TRAINING"
	StageTrained       Stage = "TRAINED"
	StageOutputsReady  Stage = "OUTPUTS_READY"
	StageError         Stage = "ERROR"
)

var allStages = []Stage{
	StageCreated,
	StageValidated,
	StageFeaturesBuilt,
	StageTraining,
	StageTrained,
	StageOutputsReady,
	StageError,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage. Unknown input yields the
// zero Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := stageSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// Status is the externally visible snapshot of a run's lifecycle state.
type Status struct {
	Stage     Stage      `json:"stage"`
	Progress  int        `json:"progress"`
	StartedAt *time.Time `json:"started_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	Error     string     `json:"error,omitempty"`
}

// DefaultStatus is returned when no status has been persisted for a run.
func DefaultStatus() Status {
	return Status{Stage: StageCreated, Progress: 0}
}

// IsComplete reports whether the run finished producing outputs.
func (s Status) IsComplete() bool { return s.Stage == StageOutputsReady }

// IsError reports whether the run terminated with an error.
func (s Status) IsError() bool { return s.Stage == StageError }

// Run couples a persisted run with its specification and status.
type Run struct {
	ID        string
	DatasetID string
	Spec      Spec
	Status    Status
	CreatedAt time.Time
}

// Progress milestones recorded before each pipeline stage executes.
const (
	ProgressCreated       = 0
	ProgressValidated     = 10
	ProgressFeaturesBuilt = 25
	ProgressTraining      = 40
	ProgressTrained       = 70
	ProgressOutputsReady  = 100
)
