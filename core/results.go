package core

// StageResult is what every stage entry point returns. Failures are carried
// in Status and Errors rather than a Go error; the orchestrator persists the
// manifest and decides whether to continue.
type StageResult struct {
	Stage   string      `json:"stage"`
	Status  StageStatus `json:"status"`
	Errors  []string    `json:"errors,omitempty"`
	Skipped bool        `json:"skipped,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// Completed reports whether the stage ended in a runnable-success state.
// StageMissing counts: the stage did its work, the artifact is just absent.
func (r StageResult) Completed() bool {
	return r.Status == StageCompleted || r.Status == StageMissing
}

// Fail builds a failed result for stage with the given messages.
func Fail(stage string, msgs ...string) StageResult {
	return StageResult{Stage: stage, Status: StageFailed, Errors: msgs}
}

// Done builds a completed result for stage.
func Done(stage string, detail string) StageResult {
	return StageResult{Stage: stage, Status: StageCompleted, Detail: detail}
}

// PipelineResult is what run-all returns: the per-stage outcomes in order.
type PipelineResult struct {
	AssetID string        `json:"asset_id"`
	Stages  []StageResult `json:"stages"`
	Halted  bool          `json:"halted"`
}
