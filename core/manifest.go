package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Manifest is the single source of truth for an asset. Stage records are kept
// as raw JSON and decoded on demand so each stage only knows its own shape.
type Manifest struct {
	AssetID     string                     `json:"asset_id"`
	SourceURL   string                     `json:"source_url"`
	Status      AssetStatus                `json:"status"`
	Fingerprint string                     `json:"fingerprint"`
	CreatedAt   string                     `json:"created_at"`
	UpdatedAt   string                     `json:"updated_at"`
	Paths       ManifestPaths              `json:"paths"`
	Errors      []ManifestError            `json:"errors"`
	Stages      map[string]json.RawMessage `json:"stages"`
}

// ManifestPaths points at the provenance files written during ingest,
// relative to the asset directory.
type ManifestPaths struct {
	Metadata      string `json:"metadata"`
	SourceView    string `json:"source_view"`
	SourcePlayURL string `json:"source_playurl"`
}

// ManifestError is a recorded asset-level failure.
type ManifestError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	At      string `json:"at"`
}

// StageMeta is the envelope every stage record embeds.
type StageMeta struct {
	Status    StageStatus `json:"status"`
	Params    Params      `json:"params,omitempty"`
	UpdatedAt string      `json:"updated_at"`
	Errors    []string    `json:"errors,omitempty"`
}

// NewManifest returns a pending manifest stamped with the current time.
func NewManifest(assetID, sourceURL string) *Manifest {
	now := NowUTC()
	return &Manifest{
		AssetID:   assetID,
		SourceURL: sourceURL,
		Status:    AssetPending,
		CreatedAt: now,
		UpdatedAt: now,
		Errors:    []ManifestError{},
		Stages:    map[string]json.RawMessage{},
	}
}

// Touch updates the manifest timestamp.
func (m *Manifest) Touch() {
	m.UpdatedAt = NowUTC()
}

// AddError appends an asset-level error.
func (m *Manifest) AddError(stage, message string) {
	m.Errors = append(m.Errors, ManifestError{Stage: stage, Message: message, At: NowUTC()})
}

// StageStatusOf returns the recorded status of a stage, or StagePending when
// the stage has never run. Only the envelope is decoded.
func (m *Manifest) StageStatusOf(stage string) StageStatus {
	raw, ok := m.Stages[stage]
	if !ok {
		return StagePending
	}
	var meta StageMeta
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Status == "" {
		return StagePending
	}
	return meta.Status
}

// StageParamsOf returns the params a stage last completed with, or nil.
func (m *Manifest) StageParamsOf(stage string) Params {
	raw, ok := m.Stages[stage]
	if !ok {
		return nil
	}
	var meta StageMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	return meta.Params
}

// StageAs decodes the named stage record into T. The second return is false
// when the stage is absent.
func StageAs[T any](m *Manifest, stage string) (T, bool, error) {
	var rec T
	raw, ok := m.Stages[stage]
	if !ok {
		return rec, false, nil
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, true, fmt.Errorf("decode stage %q: %w", stage, err)
	}
	return rec, true, nil
}

// PutStage encodes rec and stores it under the stage name, touching the
// manifest timestamp.
func PutStage[T any](m *Manifest, stage string, rec T) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode stage %q: %w", stage, err)
	}
	if m.Stages == nil {
		m.Stages = map[string]json.RawMessage{}
	}
	m.Stages[stage] = raw
	m.Touch()
	return nil
}

// NowUTC returns the current time formatted as RFC 3339 in UTC, the timestamp
// format used throughout the manifest.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
