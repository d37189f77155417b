// Package frames runs uniform frame extraction and exact-duplicate removal,
// producing frames_passA/ and the frames_passA.jsonl record file.
package frames

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/source"
)

const (
	// DirName holds the extracted PNGs, relative to the asset dir.
	DirName = "frames_passA"
	// FileName is the frame record file, relative to the asset dir.
	FileName = "frames_passA.jsonl"
)

// Options for the frames stage.
type Options struct {
	Force bool
}

// Run executes the frames stage for one asset.
func Run(ctx context.Context, cfg config.Settings, store *manifest.Store, runner *ffmpeg.Runner, assetID string, opts Options) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageFrames, err.Error())
	}

	params := core.NewParams(map[string]any{
		"interval_sec": cfg.FrameIntervalSec,
		"scale_width":  cfg.FrameScaleWidth,
		"max_frames":   cfg.MaxFrames,
	})

	assetDir := store.AssetDir(assetID)
	framesFile := filepath.Join(assetDir, FileName)

	if !opts.Force &&
		m.StageStatusOf(core.StageFrames) == core.StageCompleted &&
		m.StageParamsOf(core.StageFrames).Equal(params) &&
		fileExists(framesFile) {
		log.Info("frames cached", "asset", assetID)
		return core.StageResult{Stage: core.StageFrames, Status: core.StageCompleted, Skipped: true}
	}

	if m.StageStatusOf(core.StageSource) != core.StageCompleted {
		return core.Fail(core.StageFrames, "source stage not completed; run extract-source first")
	}
	videoPath := filepath.Join(assetDir, source.VideoRelPath)
	if !fileExists(videoPath) {
		return core.Fail(core.StageFrames, fmt.Sprintf("source video not found: %s", videoPath))
	}

	saveStage := func(status core.StageStatus, count int, errs []string) core.StageResult {
		rec := core.FramesStage{
			StageMeta: core.StageMeta{
				Status:    status,
				Params:    params,
				UpdatedAt: core.NowUTC(),
				Errors:    errs,
			},
			FrameCount: count,
			FramesDir:  DirName,
			FramesFile: FileName,
		}
		if err := core.PutStage(m, core.StageFrames, rec); err == nil {
			if err := store.Save(m); err != nil {
				errs = append(errs, err.Error())
			}
		}
		return core.StageResult{Stage: core.StageFrames, Status: status, Errors: errs}
	}

	_ = saveStage(core.StageInProgress, 0, nil)

	framesDir := filepath.Join(assetDir, DirName)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return saveStage(core.StageFailed, 0, []string{err.Error()})
	}

	pattern := filepath.Join(framesDir, "frame_%06d.png")
	log.Info("extracting frames", "asset", assetID, "interval_sec", cfg.FrameIntervalSec)
	if err := runner.ExtractFrames(ctx, videoPath, pattern, cfg.FrameIntervalSec, cfg.FrameScaleWidth); err != nil {
		return saveStage(core.StageFailed, 0, []string{err.Error()})
	}

	records, err := BuildRecords(framesDir, cfg.FrameIntervalSec, cfg.MaxFrames)
	if err != nil {
		return saveStage(core.StageFailed, 0, []string{err.Error()})
	}
	if len(records) == 0 {
		return saveStage(core.StageFailed, 0, []string{"no frames extracted"})
	}

	if err := WriteRecords(framesFile, records); err != nil {
		return saveStage(core.StageFailed, 0, []string{err.Error()})
	}

	canonical := 0
	for _, r := range records {
		if !r.IsDuplicate {
			canonical++
		}
	}
	log.Info("frames extracted", "asset", assetID, "total", len(records), "canonical", canonical)
	return saveStage(core.StageCompleted, len(records), nil)
}

// BuildRecords scans dir for frame_*.png, hashes each file, marks exact
// duplicates (unlinking their files), and caps canonical frames to maxFrames
// by ascending timestamp. Duplicates whose canonical frame was dropped by
// the cap are dropped as well.
func BuildRecords(dir string, intervalSec, maxFrames int) ([]core.Frame, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var records []core.Frame
	seen := map[string]string{} // hash -> canonical frame id
	for _, p := range paths {
		ordinal, ok := frameOrdinal(p)
		if !ok {
			continue
		}
		frameID := fmt.Sprintf("KF_%06d", ordinal)
		ts := InferTsMs(frameID, intervalSec)

		hash, err := hashFile(p)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", p, err)
		}

		if canonical, dup := seen[hash]; dup {
			records = append(records, core.Frame{
				FrameID:     frameID,
				TsMs:        &ts,
				Path:        nil,
				Hash:        hash,
				Source:      "uniform",
				IsDuplicate: true,
				DuplicateOf: canonical,
			})
			os.Remove(p)
			continue
		}
		seen[hash] = frameID
		rel := filepath.Join(filepath.Base(dir), filepath.Base(p))
		records = append(records, core.Frame{
			FrameID:     frameID,
			TsMs:        &ts,
			Path:        &rel,
			Hash:        hash,
			Source:      "uniform",
			IsDuplicate: false,
		})
	}

	return capByTimestamp(records, maxFrames, filepath.Dir(dir)), nil
}

// capByTimestamp keeps at most maxFrames canonical frames, ordered by
// ascending timestamp, and drops duplicates pointing at dropped canonicals.
// assetDir anchors the records' relative paths for file removal.
func capByTimestamp(records []core.Frame, maxFrames int, assetDir string) []core.Frame {
	if maxFrames <= 0 {
		return records
	}

	var canonicals []core.Frame
	for _, r := range records {
		if !r.IsDuplicate {
			canonicals = append(canonicals, r)
		}
	}
	if len(canonicals) <= maxFrames {
		return records
	}

	sort.SliceStable(canonicals, func(i, j int) bool {
		return tsOf(canonicals[i]) < tsOf(canonicals[j])
	})
	kept := map[string]bool{}
	for _, r := range canonicals[:maxFrames] {
		kept[r.FrameID] = true
	}

	var out []core.Frame
	for _, r := range records {
		switch {
		case !r.IsDuplicate && kept[r.FrameID]:
			out = append(out, r)
		case !r.IsDuplicate:
			// Dropped by the cap; remove the file too.
			if r.Path != nil {
				os.Remove(filepath.Join(assetDir, *r.Path))
			}
		case r.IsDuplicate && kept[r.DuplicateOf]:
			out = append(out, r)
		}
	}
	return out
}

func tsOf(f core.Frame) int64 {
	if f.TsMs != nil {
		return *f.TsMs
	}
	return 0
}

// InferTsMs derives a frame's timestamp from its ordinal id: frame N covers
// the window starting at (N-1) intervals.
func InferTsMs(frameID string, intervalSec int) int64 {
	n, ok := parseOrdinal(frameID)
	if !ok {
		return 0
	}
	return int64(n-1) * int64(intervalSec) * 1000
}

func parseOrdinal(frameID string) (int, bool) {
	rest, found := strings.CutPrefix(frameID, "KF_")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func frameOrdinal(path string) (int, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".png")
	rest, found := strings.CutPrefix(base, "frame_")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// WriteRecords writes records as JSON lines.
func WriteRecords(path string, records []core.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
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

// ReadRecords reads a frames_passA.jsonl file.
func ReadRecords(path string) ([]core.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []core.Frame
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var fr core.Frame
		if err := json.Unmarshal([]byte(line), &fr); err != nil {
			return nil, fmt.Errorf("parse frame record: %w", err)
		}
		out = append(out, fr)
	}
	return out, sc.Err()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
