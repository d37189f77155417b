package timeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/manifest"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func solidImage(w, h int, c color.Gray) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, c)
		}
	}
	return img
}

func checkerboard(w, h, cell int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			} else {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img
}

func TestScoreImageCheckerboardBeatsSolid(t *testing.T) {
	dir := t.TempDir()
	solid := filepath.Join(dir, "solid.png")
	checker := filepath.Join(dir, "checker.png")
	writePNG(t, solid, solidImage(100, 100, color.Gray{Y: 128}))
	writePNG(t, checker, checkerboard(100, 100, 10))

	solidScore := ScoreImage(solid)
	checkerScore := ScoreImage(checker)

	// The edge kernel copies the borders, so even a flat frame scores well
	// above zero. At this geometry the busy frame still wins.
	assert.Greater(t, checkerScore, solidScore)
	assert.Less(t, solidScore, 0.5)
	assert.Greater(t, checkerScore, 0.3)
	assert.LessOrEqual(t, checkerScore, 1.0)
}

func TestScoreImageUnreadable(t *testing.T) {
	assert.Equal(t, 0.0, ScoreImage(filepath.Join(t.TempDir(), "missing.png")))

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))
	assert.Equal(t, 0.0, ScoreImage(bad))
}

func TestRunDoesNotSkipWhenOutputsMissing(t *testing.T) {
	dataDir := t.TempDir()
	store := manifest.NewStore(dataDir)
	cfg := config.Default(dataDir)

	m := core.NewManifest("BV1xx411c7mD", "url")
	m.Status = core.AssetIngested
	require.NoError(t, core.PutStage(m, core.StageTimeline, core.TimelineStage{
		StageMeta: core.StageMeta{
			Status:    core.StageCompleted,
			Params:    core.NewParams(map[string]any{"bucket_sec": cfg.BucketSec}),
			UpdatedAt: core.NowUTC(),
		},
		BucketCount:  4,
		TimelineFile: TimelineFileName,
		ScoresFile:   ScoresFileName,
	}))
	require.NoError(t, store.Save(m))

	// Outputs deleted out-of-band: the completed record alone must not
	// produce a cached skip.
	result := Run(context.Background(), cfg, store, "BV1xx411c7mD", Options{})
	assert.False(t, result.Skipped)
	assert.False(t, result.Completed())

	// With the outputs back in place the skip is legitimate.
	assetDir := store.AssetDir("BV1xx411c7mD")
	require.NoError(t, os.WriteFile(filepath.Join(assetDir, TimelineFileName), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assetDir, ScoresFileName), nil, 0o644))

	result = Run(context.Background(), cfg, store, "BV1xx411c7mD", Options{})
	assert.True(t, result.Skipped)
}

func TestScoreFramesCancelled(t *testing.T) {
	dir := t.TempDir()
	var frameList []core.Frame
	for i := 1; i <= 4; i++ {
		name := fmt.Sprintf("frame_%06d.png", i)
		writePNG(t, filepath.Join(dir, name), checkerboard(40, 40, 5))
		ts := int64(i * 5000)
		path := name
		frameList = append(frameList, core.Frame{FrameID: fmt.Sprintf("KF_%06d", i), TsMs: &ts, Path: &path})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scored, err := scoreFrames(ctx, dir, frameList, 5)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, scored, "no partial scores after cancellation")
}

func TestScoreImageDeterministic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "img.png")
	writePNG(t, p, checkerboard(90, 90, 6))

	assert.Equal(t, ScoreImage(p), ScoreImage(p))
}

func TestBucketScoreLaw(t *testing.T) {
	scored := []core.ScoredFrame{
		{FrameID: "KF_000001", TsMs: 0, Score: 0.6},
		{FrameID: "KF_000002", TsMs: 5000, Score: 0.8},
		{FrameID: "KF_000003", TsMs: 10000, Score: 0.4},
	}
	buckets := BucketFrames(scored, 30)

	require.Len(t, buckets, 1)
	assert.Equal(t, 0.6, buckets[0].Score)
	assert.Equal(t, []string{"KF_000002", "KF_000001", "KF_000003"}, buckets[0].TopFrameIDs)
}

func TestBucketFramesTopThree(t *testing.T) {
	scored := []core.ScoredFrame{
		{FrameID: "KF_000001", TsMs: 0, Score: 0.1},
		{FrameID: "KF_000002", TsMs: 5000, Score: 0.9},
		{FrameID: "KF_000003", TsMs: 10000, Score: 0.5},
		{FrameID: "KF_000004", TsMs: 15000, Score: 0.7},
		{FrameID: "KF_000005", TsMs: 20000, Score: 0.3},
	}
	buckets := BucketFrames(scored, 30)

	require.Len(t, buckets, 1)
	assert.Equal(t, []string{"KF_000002", "KF_000004", "KF_000003"}, buckets[0].TopFrameIDs)
	// Mean of the top three, not all five.
	assert.Equal(t, 0.7, buckets[0].Score)
}

func TestBucketFramesWindows(t *testing.T) {
	scored := []core.ScoredFrame{
		{FrameID: "KF_000001", TsMs: 0, Score: 0.5},
		{FrameID: "KF_000002", TsMs: 29999, Score: 0.5},
		{FrameID: "KF_000003", TsMs: 30000, Score: 0.9},
		{FrameID: "KF_000004", TsMs: 95000, Score: 0.2},
	}
	buckets := BucketFrames(scored, 30)

	require.Len(t, buckets, 3)
	assert.Equal(t, int64(0), buckets[0].StartMs)
	assert.Equal(t, int64(30000), buckets[0].EndMs)
	assert.Len(t, buckets[0].TopFrameIDs, 2)

	assert.Equal(t, int64(30000), buckets[1].StartMs)
	assert.Equal(t, []string{"KF_000003"}, buckets[1].TopFrameIDs)

	assert.Equal(t, int64(90000), buckets[2].StartMs)
	assert.Equal(t, int64(120000), buckets[2].EndMs)
}

func TestBucketFramesStableOnTies(t *testing.T) {
	scored := []core.ScoredFrame{
		{FrameID: "KF_000001", TsMs: 0, Score: 0.5},
		{FrameID: "KF_000002", TsMs: 5000, Score: 0.5},
		{FrameID: "KF_000003", TsMs: 10000, Score: 0.5},
		{FrameID: "KF_000004", TsMs: 15000, Score: 0.5},
	}
	buckets := BucketFrames(scored, 30)

	require.Len(t, buckets, 1)
	// Equal scores keep input order.
	assert.Equal(t, []string{"KF_000001", "KF_000002", "KF_000003"}, buckets[0].TopFrameIDs)
}

func TestScoresRoundTrip(t *testing.T) {
	scored := []core.ScoredFrame{
		{FrameID: "KF_000001", TsMs: 0, Score: 0.1234},
		{FrameID: "KF_000002", TsMs: 5000, Score: 0.9},
	}
	path := filepath.Join(t.TempDir(), ScoresFileName)
	require.NoError(t, WriteScores(path, scored))

	got, err := ReadScores(path)
	require.NoError(t, err)
	assert.Equal(t, scored, got)
}
