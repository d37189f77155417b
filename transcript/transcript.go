package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/source"
)

const (
	// AudioRelPath is the ASR-ready audio file, relative to the asset dir.
	AudioRelPath = "audio/audio.m4a"
	// FileName is the transcript record file, relative to the asset dir.
	FileName = "transcript.jsonl"
	// ProvenanceRelPath keeps the provider's raw response.
	ProvenanceRelPath = "source_api/transcript.json"
)

// Options for the transcript stage.
type Options struct {
	Force bool
}

// Run executes the transcript stage for one asset.
func Run(ctx context.Context, cfg config.Settings, store *manifest.Store, enc audioEncoder, provider Provider, assetID string, opts Options) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}
	if m.Status != core.AssetIngested {
		return core.Fail(core.StageTranscript, fmt.Sprintf("asset status must be ingested, got %s", m.Status))
	}

	params := core.NewParams(map[string]any{
		"provider": provider.Name(),
		"lang":     cfg.TranscriptLang,
	})

	assetDir := store.AssetDir(assetID)
	if !opts.Force &&
		m.StageStatusOf(core.StageTranscript) == core.StageCompleted &&
		m.StageParamsOf(core.StageTranscript).Equal(params) &&
		fileExists(filepath.Join(assetDir, FileName)) {
		log.Info("transcript cached", "asset", assetID)
		return core.StageResult{Stage: core.StageTranscript, Status: core.StageCompleted, Skipped: true}
	}

	if m.StageStatusOf(core.StageSource) != core.StageCompleted {
		return core.Fail(core.StageTranscript, "source stage not completed; run extract-source first")
	}
	videoPath := filepath.Join(assetDir, source.VideoRelPath)
	if !fileExists(videoPath) {
		return core.Fail(core.StageTranscript, fmt.Sprintf("source video not found: %s", videoPath))
	}

	audioPath := filepath.Join(assetDir, AudioRelPath)
	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}

	log.Info("extracting audio", "asset", assetID)
	bitrate, err := ExtractAudioAdaptive(ctx, enc, videoPath, audioPath, cfg.AudioBitrates, cfg.AudioMaxBytes)
	if err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}

	log.Info("transcribing", "asset", assetID, "provider", provider.Name(), "bitrate_kbps", bitrate)
	rawSegments, provenance, err := provider.Transcribe(ctx, audioPath, cfg.TranscriptLang)
	if err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}

	segments := AssignIDs(rawSegments)
	if len(segments) == 0 {
		return core.Fail(core.StageTranscript, "provider returned no segments")
	}

	if err := WriteSegments(filepath.Join(assetDir, FileName), segments); err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}
	provPath := filepath.Join(assetDir, ProvenanceRelPath)
	if err := os.MkdirAll(filepath.Dir(provPath), 0o755); err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}
	if err := os.WriteFile(provPath, provenance, 0o644); err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}

	rec := core.TranscriptStage{
		StageMeta: core.StageMeta{
			Status:    core.StageCompleted,
			Params:    params,
			UpdatedAt: core.NowUTC(),
		},
		SegmentCount:   len(segments),
		AudioPath:      AudioRelPath,
		TranscriptFile: FileName,
		ProvenanceFile: ProvenanceRelPath,
	}
	if err := core.PutStage(m, core.StageTranscript, rec); err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageTranscript, err.Error())
	}

	log.Info("transcript extracted", "asset", assetID, "segments", len(segments))
	return core.Done(core.StageTranscript, fmt.Sprintf("%d segments", len(segments)))
}

// AssignIDs turns raw provider segments into records with sequential ids.
// Segments with empty text are dropped before numbering.
func AssignIDs(raw []Segment) []core.TranscriptSegment {
	var out []core.TranscriptSegment
	for _, s := range raw {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, core.TranscriptSegment{
			SegID:   fmt.Sprintf("SEG_%06d", len(out)+1),
			StartMs: s.StartMs,
			EndMs:   s.EndMs,
			Text:    text,
			Words:   []core.TimestampWord{},
		})
	}
	return out
}

// WriteSegments writes transcript records as JSON lines.
func WriteSegments(path string, segments []core.TranscriptSegment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, s := range segments {
		if err := enc.Encode(s); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSegments reads a transcript.jsonl file.
func ReadSegments(path string) ([]core.TranscriptSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []core.TranscriptSegment
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var s core.TranscriptSegment
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("parse transcript segment: %w", err)
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
