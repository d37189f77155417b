// Package selection picks the representative keyframes: top buckets by
// score, top frames across them, re-sorted chronologically and copied to
// frames_selected/.
package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/frames"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/timeline"
)

const (
	// DirName holds the selected frame copies, relative to the asset dir.
	DirName = "frames_selected"
	// FileName is the selection document, relative to the asset dir.
	FileName = "selected.json"
)

// Options for the select stage.
type Options struct {
	Force bool
}

// candidate is a frame referenced by a top bucket, resolved to its source
// image and score.
type candidate struct {
	frameID     string
	tsMs        int64
	score       float64
	srcPath     string
	bucketIndex int
}

// Run executes the select stage for one asset.
func Run(ctx context.Context, cfg config.Settings, store *manifest.Store, assetID string, opts Options) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}

	params := core.NewParams(map[string]any{
		"top_buckets": cfg.TopBuckets,
		"max_frames":  cfg.MaxSelectFrames,
	})

	assetDir := store.AssetDir(assetID)

	// The manifest is a hint; the outputs must still be on disk.
	if !opts.Force &&
		m.StageStatusOf(core.StageSelect) == core.StageCompleted &&
		m.StageParamsOf(core.StageSelect).Equal(params) &&
		fileExists(filepath.Join(assetDir, FileName)) &&
		fileExists(filepath.Join(assetDir, DirName)) {
		log.Info("selection cached", "asset", assetID)
		return core.StageResult{Stage: core.StageSelect, Status: core.StageCompleted, Skipped: true}
	}

	tlRec, ok, err := core.StageAs[core.TimelineStage](m, core.StageTimeline)
	if err != nil || !ok || tlRec.Status != core.StageCompleted {
		return core.Fail(core.StageSelect, "timeline stage not completed; run extract-timeline first")
	}
	framesRec, ok, err := core.StageAs[core.FramesStage](m, core.StageFrames)
	if err != nil || !ok || framesRec.Status != core.StageCompleted {
		return core.Fail(core.StageSelect, "frames stage not completed; run extract-frames first")
	}

	doc, err := timeline.ReadDocument(filepath.Join(assetDir, tlRec.TimelineFile))
	if err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}
	frameList, err := frames.ReadRecords(filepath.Join(assetDir, framesRec.FramesFile))
	if err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}
	scores, err := timeline.ReadScores(filepath.Join(assetDir, tlRec.ScoresFile))
	if err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}

	sel := Select(doc.Buckets, frameList, scores, cfg.TopBuckets, cfg.MaxSelectFrames)

	selectedDir := filepath.Join(assetDir, DirName)
	if err := os.MkdirAll(selectedDir, 0o755); err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}

	var stageErrs []string
	for i := range sel.Frames {
		src := filepath.Join(assetDir, sel.Frames[i].SrcPath)
		dst := filepath.Join(selectedDir, filepath.Base(sel.Frames[i].SrcPath))
		if err := copyFile(src, dst); err != nil {
			stageErrs = append(stageErrs, fmt.Sprintf("copy %s: %v", sel.Frames[i].FrameID, err))
			continue
		}
		sel.Frames[i].DstPath = filepath.Join(DirName, filepath.Base(sel.Frames[i].SrcPath))
	}

	sel.Params = params
	if err := writeJSON(filepath.Join(assetDir, FileName), sel); err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}

	status := core.StageCompleted
	if len(sel.Frames) == 0 {
		status = core.StageFailed
		stageErrs = append(stageErrs, "no frames selected")
	}

	rec := core.SelectStage{
		StageMeta: core.StageMeta{
			Status:    status,
			Params:    params,
			UpdatedAt: core.NowUTC(),
			Errors:    stageErrs,
		},
		FrameCount:   len(sel.Frames),
		BucketCount:  len(sel.Buckets),
		SelectedDir:  DirName,
		SelectedFile: FileName,
	}
	if err := core.PutStage(m, core.StageSelect, rec); err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageSelect, err.Error())
	}

	log.Info("frames selected", "asset", assetID, "frames", len(sel.Frames), "buckets", len(sel.Buckets))
	return core.StageResult{Stage: core.StageSelect, Status: status, Errors: stageErrs}
}

// Select ranks buckets by score, gathers their candidate frames, keeps the
// top maxFrames by score, and returns them sorted by timestamp ascending.
// Downstream consumers expect chronological order, not score order.
func Select(buckets []core.Bucket, frameList []core.Frame, scores []core.ScoredFrame, topBuckets, maxFrames int) *core.Selection {
	ranked := make([]core.Bucket, len(buckets))
	copy(ranked, buckets)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if topBuckets > 0 && len(ranked) > topBuckets {
		ranked = ranked[:topBuckets]
	}

	selBuckets := make([]core.SelectedBucket, len(ranked))
	for i, b := range ranked {
		selBuckets[i] = core.SelectedBucket{
			StartMs:     b.StartMs,
			EndMs:       b.EndMs,
			Score:       b.Score,
			BucketIndex: i,
		}
	}

	pathByID := map[string]string{}
	tsByID := map[string]int64{}
	for _, f := range frameList {
		if f.IsDuplicate || f.Path == nil {
			continue
		}
		pathByID[f.FrameID] = *f.Path
		if f.TsMs != nil {
			tsByID[f.FrameID] = *f.TsMs
		}
	}
	scoreByID := map[string]float64{}
	scoreTsByID := map[string]int64{}
	for _, s := range scores {
		scoreByID[s.FrameID] = s.Score
		scoreTsByID[s.FrameID] = s.TsMs
	}

	var candidates []candidate
	seen := map[string]bool{}
	for bucketIndex, b := range ranked {
		for _, id := range b.TopFrameIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			src, ok := pathByID[id]
			if !ok {
				continue
			}
			ts, ok := tsByID[id]
			if !ok {
				ts = scoreTsByID[id]
			}
			candidates = append(candidates, candidate{
				frameID:     id,
				tsMs:        ts,
				score:       scoreByID[id],
				srcPath:     src,
				bucketIndex: bucketIndex,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if maxFrames > 0 && len(candidates) > maxFrames {
		candidates = candidates[:maxFrames]
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].tsMs < candidates[j].tsMs })

	frames := make([]core.SelectedFrame, len(candidates))
	for i, c := range candidates {
		frames[i] = core.SelectedFrame{
			FrameID:     c.frameID,
			TsMs:        c.tsMs,
			Score:       c.score,
			SrcPath:     c.srcPath,
			BucketIndex: c.bucketIndex,
		}
	}
	return &core.Selection{Buckets: selBuckets, Frames: frames}
}

// ReadSelection reads a selected.json file.
func ReadSelection(path string) (*core.Selection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sel core.Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, fmt.Errorf("parse selection: %w", err)
	}
	return &sel, nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	return os.WriteFile(path, raw, 0o644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
