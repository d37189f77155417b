// Package core defines the data model shared by every pipeline stage: asset
// and stage statuses, the manifest with its typed stage records, and the
// result types that stage functions return across the orchestrator boundary.
package core

// AssetStatus is the top-level status of an asset in the pipeline.
type AssetStatus string

const (
	AssetPending  AssetStatus = "pending"
	AssetIngested AssetStatus = "ingested"
	AssetFailed   AssetStatus = "failed"
)

// StageStatus is the status of a single pipeline stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	// StageMissing means the stage's source exists but is not materialized.
	// It is a legitimate terminal state, distinct from failure.
	StageMissing StageStatus = "missing"
)

// Pipeline stage names, in execution order.
const (
	StageSource       = "source"
	StageFrames       = "frames"
	StageTimeline     = "timeline"
	StageSelect       = "select"
	StageOCR          = "ocr"
	StageOCRNormalize = "ocr_normalize"
	StageTranscript   = "transcript"
	StageIndex        = "index"
)

// PipelineStages is the ordered stage list run by the full pipeline.
var PipelineStages = []string{
	StageSource,
	StageFrames,
	StageTimeline,
	StageSelect,
	StageOCR,
	StageOCRNormalize,
	StageTranscript,
	StageIndex,
}
