package run

var forwardTransitions = map[Stage]Stage{
	StageCreated:       StageValidated,
	StageValidated:     StageFeaturesBuilt,
	StageFeaturesBuilt: StageTraining,
	StageTraining:      StageTrained,
	StageTrained:       StageOutputsReady,
}

// CanTransition reports whether moving from one stage to another is legal.
// A stage may always re-enter itself (progress refreshes within a stage),
// advance one step along the forward chain, or drop into ERROR from any
// non-terminal stage. OUTPUTS_READY and ERROR are terminal.
func CanTransition(from, to Stage) bool {
	if _, known := stageSet[from]; !known {
		return false
	}
	if _, known := stageSet[to]; !known {
		return false
	}
	if from == StageError || from == StageOutputsReady {
		return from == to
	}
	if from == to {
		return true
	}
	if to == StageError {
		return true
	}
	return forwardTransitions[from] == to
}

// IsTerminal reports whether a stage admits no further transitions.
func IsTerminal(stage Stage) bool {
	return stage == StageOutputsReady || stage == StageError
}
