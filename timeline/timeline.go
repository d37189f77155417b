// Package timeline scores canonical frames for information density and
// aggregates them into fixed-width time buckets.
package timeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/frames"
	"github.com/Xyri1/bili-assetizer/manifest"
)

const (
	// TimelineFileName is the bucket summary, relative to the asset dir.
	TimelineFileName = "timeline.json"
	// ScoresFileName holds per-frame scores, relative to the asset dir.
	ScoresFileName = "frame_scores.jsonl"

	topFramesPerBucket = 3
)

// Document is the timeline.json layout.
type Document struct {
	BucketSec int           `json:"bucket_sec"`
	Buckets   []core.Bucket `json:"buckets"`
}

// Options for the timeline stage.
type Options struct {
	Force bool
}

// Run executes the timeline stage for one asset.
func Run(ctx context.Context, cfg config.Settings, store *manifest.Store, assetID string, opts Options) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageTimeline, err.Error())
	}
	if m.Status != core.AssetIngested {
		return core.Fail(core.StageTimeline, fmt.Sprintf("asset status must be ingested, got %s", m.Status))
	}

	params := core.NewParams(map[string]any{"bucket_sec": cfg.BucketSec})
	assetDir := store.AssetDir(assetID)

	// The manifest is a hint; the outputs must still be on disk.
	if !opts.Force &&
		m.StageStatusOf(core.StageTimeline) == core.StageCompleted &&
		m.StageParamsOf(core.StageTimeline).Equal(params) &&
		fileExists(filepath.Join(assetDir, TimelineFileName)) &&
		fileExists(filepath.Join(assetDir, ScoresFileName)) {
		log.Info("timeline cached", "asset", assetID)
		return core.StageResult{Stage: core.StageTimeline, Status: core.StageCompleted, Skipped: true}
	}

	framesRec, ok, err := core.StageAs[core.FramesStage](m, core.StageFrames)
	if err != nil || !ok || framesRec.Status != core.StageCompleted {
		return core.Fail(core.StageTimeline, "frames stage not completed; run extract-frames first")
	}
	if framesRec.FramesFile == "" {
		return core.Fail(core.StageTimeline, "frames stage has no frames file")
	}

	frameList, err := frames.ReadRecords(filepath.Join(assetDir, framesRec.FramesFile))
	if err != nil {
		return core.Fail(core.StageTimeline, err.Error())
	}
	if len(frameList) == 0 {
		return core.Fail(core.StageTimeline, "no frames found in metadata file")
	}

	intervalSec := intervalFromParams(framesRec.Params, cfg.FrameIntervalSec)
	scored, err := scoreFrames(ctx, assetDir, frameList, intervalSec)
	if err != nil {
		return core.Fail(core.StageTimeline, err.Error())
	}
	if len(scored) == 0 {
		return core.Fail(core.StageTimeline, "no scoreable frames found")
	}

	buckets := BucketFrames(scored, cfg.BucketSec)

	doc := Document{BucketSec: cfg.BucketSec, Buckets: buckets}
	if err := writeJSON(filepath.Join(assetDir, TimelineFileName), doc); err != nil {
		return core.Fail(core.StageTimeline, err.Error())
	}
	if err := WriteScores(filepath.Join(assetDir, ScoresFileName), scored); err != nil {
		return core.Fail(core.StageTimeline, err.Error())
	}

	rec := core.TimelineStage{
		StageMeta: core.StageMeta{
			Status:    core.StageCompleted,
			Params:    params,
			UpdatedAt: core.NowUTC(),
		},
		BucketCount:  len(buckets),
		TimelineFile: TimelineFileName,
		ScoresFile:   ScoresFileName,
	}
	if err := core.PutStage(m, core.StageTimeline, rec); err != nil {
		return core.Fail(core.StageTimeline, err.Error())
	}
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageTimeline, err.Error())
	}

	log.Info("timeline extracted", "asset", assetID, "buckets", len(buckets), "frames_scored", len(scored))
	return core.Done(core.StageTimeline, fmt.Sprintf("%d buckets", len(buckets)))
}

// scoreFrames scores canonical frames with a bounded worker pool. Results
// keep the input order, so concurrency never changes the output. A
// cancelled context aborts the whole batch; partial scores are never
// returned.
func scoreFrames(ctx context.Context, assetDir string, frameList []core.Frame, intervalSec int) ([]core.ScoredFrame, error) {
	type job struct {
		idx   int
		frame core.Frame
		path  string
	}

	var jobs []job
	for _, f := range frameList {
		if f.IsDuplicate || f.Path == nil {
			continue
		}
		p := filepath.Join(assetDir, *f.Path)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		jobs = append(jobs, job{idx: len(jobs), frame: f, path: p})
	}

	results := make([]core.ScoredFrame, len(jobs))
	workers := runtime.NumCPU()
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	ch := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				ts := tsOf(j.frame, intervalSec)
				results[j.idx] = core.ScoredFrame{
					FrameID: j.frame.FrameID,
					TsMs:    ts,
					Score:   ScoreImage(j.path),
				}
			}
		}()
	}
send:
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			break send
		case ch <- j:
		}
	}
	close(ch)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func tsOf(f core.Frame, intervalSec int) int64 {
	if f.TsMs != nil {
		return *f.TsMs
	}
	return frames.InferTsMs(f.FrameID, intervalSec)
}

func intervalFromParams(p core.Params, fallback int) int {
	if v, ok := p["interval_sec"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			return int(f)
		}
	}
	return fallback
}

// BucketFrames groups scored frames into fixed windows. Each bucket keeps
// its top-3 frame ids by score and scores itself as the mean of those top
// scores, which resists single-frame outliers.
func BucketFrames(scored []core.ScoredFrame, bucketSec int) []core.Bucket {
	bucketMs := int64(bucketSec) * 1000
	groups := map[int64][]core.ScoredFrame{}
	for _, f := range scored {
		idx := f.TsMs / bucketMs
		groups[idx] = append(groups[idx], f)
	}

	indices := make([]int64, 0, len(groups))
	for idx := range groups {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]core.Bucket, 0, len(indices))
	for _, idx := range indices {
		group := groups[idx]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Score > group[j].Score })

		top := group
		if len(top) > topFramesPerBucket {
			top = top[:topFramesPerBucket]
		}
		ids := make([]string, len(top))
		sum := 0.0
		for i, f := range top {
			ids[i] = f.FrameID
			sum += f.Score
		}
		score := 0.0
		if len(top) > 0 {
			score = round4(sum / float64(len(top)))
		}

		out = append(out, core.Bucket{
			StartMs:     idx * bucketMs,
			EndMs:       (idx + 1) * bucketMs,
			Score:       score,
			TopFrameIDs: ids,
		})
	}
	return out
}

// WriteScores writes the per-frame score lines.
func WriteScores(path string, scored []core.ScoredFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, s := range scored {
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

// ReadScores reads a frame_scores.jsonl file.
func ReadScores(path string) ([]core.ScoredFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []core.ScoredFrame
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var s core.ScoredFrame
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("parse score record: %w", err)
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// ReadDocument reads a timeline.json file.
func ReadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse timeline: %w", err)
	}
	return &doc, nil
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
