package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/ocr"
	"github.com/Xyri1/bili-assetizer/storage"
	"github.com/Xyri1/bili-assetizer/transcript"
)

const testAssetID = "BV1GJ411x7h7"

func setupAsset(t *testing.T) (*manifest.Store, *storage.DB) {
	t.Helper()
	dataDir := t.TempDir()
	store := manifest.NewStore(dataDir)

	db, err := storage.Open(filepath.Join(dataDir, "assetizer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := core.NewManifest(testAssetID, "https://www.bilibili.com/video/"+testAssetID)
	m.Status = core.AssetIngested
	require.NoError(t, core.PutStage(m, core.StageTranscript, core.TranscriptStage{
		StageMeta:      core.StageMeta{Status: core.StageCompleted, UpdatedAt: core.NowUTC()},
		SegmentCount:   3,
		TranscriptFile: transcript.FileName,
	}))
	require.NoError(t, core.PutStage(m, core.StageOCR, core.OcrStage{
		StageMeta:  core.StageMeta{Status: core.StageCompleted, UpdatedAt: core.NowUTC()},
		FrameCount: 2,
		OcrFile:    ocr.FileName,
	}))
	require.NoError(t, store.Save(m))

	assetDir := store.AssetDir(testAssetID)
	segments := []core.TranscriptSegment{
		{SegID: "SEG_000001", StartMs: 0, EndMs: 28000, Text: "Python 异步编程简介", Words: []core.TimestampWord{}},
		{SegID: "SEG_000002", StartMs: 28000, EndMs: 52000, Text: "协程与事件循环", Words: []core.TimestampWord{}},
		{SegID: "SEG_000003", StartMs: 52000, EndMs: 80000, Text: "Python 实战示例", Words: []core.TimestampWord{}},
	}
	require.NoError(t, transcript.WriteSegments(filepath.Join(assetDir, transcript.FileName), segments))

	writeOcrRecords(t, filepath.Join(assetDir, ocr.FileName), []core.OcrRecord{
		{FrameID: "KF_000001", TsMs: 83000, ImagePath: "frames_selected/frame_000017.png", Lang: "chi_sim+eng", Psm: 6, Text: "Python asyncio 示例代码"},
		{FrameID: "KF_000002", TsMs: 95000, ImagePath: "frames_selected/frame_000020.png", Lang: "chi_sim+eng", Psm: 6, Text: ""},
	})

	return store, db
}

func writeOcrRecords(t *testing.T, path string, records []core.OcrRecord) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, r := range records {
		require.NoError(t, enc.Encode(r))
	}
}

func TestRunIndexAndQuery(t *testing.T) {
	store, db := setupAsset(t)

	result := RunIndex(store, db, testAssetID, false)
	require.Empty(t, result.Errors)
	require.True(t, result.Completed())
	assert.False(t, result.Skipped)

	m, err := store.Load(testAssetID)
	require.NoError(t, err)
	rec, ok, err := core.StageAs[core.IndexStage](m, core.StageIndex)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.StageCompleted, rec.Status)
	assert.Equal(t, 3, rec.TranscriptCount)
	assert.Equal(t, 1, rec.OcrCount, "empty-text ocr record skipped")

	qr, err := Query(db, testAssetID, "Python", 8)
	require.NoError(t, err)
	assert.Equal(t, 3, qr.Total)
	require.Len(t, qr.Hits, 3)

	// bm25 ranks are replaced by time order for reading flow.
	assert.Equal(t, "SEG_000001", qr.Hits[0].SourceRef)
	assert.Equal(t, "SEG_000003", qr.Hits[1].SourceRef)
	assert.Equal(t, "KF_000001", qr.Hits[2].SourceRef)

	assert.Equal(t, "[seg:SEG_000001 t=0:00-0:28]", qr.Hits[0].Citation)
	assert.Equal(t, "[frame:KF_000001 t=1:23]", qr.Hits[2].Citation)
	for _, h := range qr.Hits {
		assert.Greater(t, h.Score, 0.0)
		assert.Contains(t, strings.ToLower(h.Snippet), "python")
	}
}

func TestRunIndexSecondRunSkips(t *testing.T) {
	store, db := setupAsset(t)

	require.True(t, RunIndex(store, db, testAssetID, false).Completed())

	result := RunIndex(store, db, testAssetID, false)
	assert.True(t, result.Completed())
	assert.True(t, result.Skipped)
}

func TestRunIndexRebuildsWhenRowsMissing(t *testing.T) {
	store, db := setupAsset(t)
	require.True(t, RunIndex(store, db, testAssetID, false).Completed())

	// Rows cleared out-of-band: the completed record alone must not
	// produce a cached skip.
	require.NoError(t, db.ClearEvidence(testAssetID))

	result := RunIndex(store, db, testAssetID, false)
	require.True(t, result.Completed())
	assert.False(t, result.Skipped)

	qr, err := Query(db, testAssetID, "Python", 8)
	require.NoError(t, err)
	assert.Equal(t, 3, qr.Total)
}

func TestRunIndexRequiresTranscript(t *testing.T) {
	dataDir := t.TempDir()
	store := manifest.NewStore(dataDir)
	db, err := storage.Open(filepath.Join(dataDir, "assetizer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := core.NewManifest(testAssetID, "https://www.bilibili.com/video/"+testAssetID)
	m.Status = core.AssetIngested
	require.NoError(t, store.Save(m))

	result := RunIndex(store, db, testAssetID, false)
	assert.False(t, result.Completed())
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "transcript stage not completed")
}

func TestRunIndexForceClearsStaleRows(t *testing.T) {
	store, db := setupAsset(t)
	require.True(t, RunIndex(store, db, testAssetID, false).Completed())

	// Shrink the transcript to one segment and force a reindex. The rows
	// from the dropped segments must disappear from the index.
	assetDir := store.AssetDir(testAssetID)
	segments := []core.TranscriptSegment{
		{SegID: "SEG_000001", StartMs: 0, EndMs: 28000, Text: "重新生成的字幕", Words: []core.TimestampWord{}},
	}
	require.NoError(t, transcript.WriteSegments(filepath.Join(assetDir, transcript.FileName), segments))
	require.NoError(t, os.Remove(filepath.Join(assetDir, ocr.FileName)))

	result := RunIndex(store, db, testAssetID, true)
	require.True(t, result.Completed())
	assert.False(t, result.Skipped)

	qr, err := Query(db, testAssetID, "协程", 8)
	require.NoError(t, err)
	assert.Equal(t, 0, qr.Total)
	assert.Empty(t, qr.Hits)
}

func TestRunIndexNothingToIndexFails(t *testing.T) {
	store, db := setupAsset(t)

	assetDir := store.AssetDir(testAssetID)
	blank := []core.TranscriptSegment{
		{SegID: "SEG_000001", StartMs: 0, EndMs: 1000, Text: "   ", Words: []core.TimestampWord{}},
	}
	require.NoError(t, transcript.WriteSegments(filepath.Join(assetDir, transcript.FileName), blank))
	require.NoError(t, os.Remove(filepath.Join(assetDir, ocr.FileName)))

	result := RunIndex(store, db, testAssetID, false)
	assert.False(t, result.Completed())

	m, err := store.Load(testAssetID)
	require.NoError(t, err)
	rec, ok, err := core.StageAs[core.IndexStage](m, core.StageIndex)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.StageFailed, rec.Status)
	assert.Equal(t, 0, rec.TranscriptCount)
	assert.Equal(t, 0, rec.OcrCount)
}

func TestQueryEmptyString(t *testing.T) {
	_, db := setupAsset(t)

	_, err := Query(db, testAssetID, "   ", 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestQueryTopKLimitsHitsNotTotal(t *testing.T) {
	store, db := setupAsset(t)
	require.True(t, RunIndex(store, db, testAssetID, false).Completed())

	qr, err := Query(db, testAssetID, "Python", 2)
	require.NoError(t, err)
	assert.Len(t, qr.Hits, 2)
	assert.Equal(t, 3, qr.Total)
}

func TestGatherResolvesFullText(t *testing.T) {
	store, db := setupAsset(t)
	require.True(t, RunIndex(store, db, testAssetID, false).Completed())

	pack, err := Gather(store, db, testAssetID, "Python", 8)
	require.NoError(t, err)
	assert.Empty(t, pack.Errors)
	require.Len(t, pack.Items, 3)

	// Items carry the original text, not the segmented token stream.
	assert.Equal(t, "Python 异步编程简介", pack.Items[0].Text)
	assert.Equal(t, "Python 实战示例", pack.Items[1].Text)
	assert.Equal(t, "Python asyncio 示例代码", pack.Items[2].Text)
	assert.Equal(t, "ocr", pack.Items[2].SourceType)
	assert.Equal(t, "[frame:KF_000001 t=1:23]", pack.Items[2].Citation)
}

func TestGatherReportsUnresolvedHits(t *testing.T) {
	store, db := setupAsset(t)
	require.True(t, RunIndex(store, db, testAssetID, false).Completed())

	// The index outlives the source file; the pack notes the gap instead
	// of failing outright.
	require.NoError(t, os.Remove(filepath.Join(store.AssetDir(testAssetID), transcript.FileName)))

	pack, err := Gather(store, db, testAssetID, "Python", 8)
	require.NoError(t, err)
	require.Len(t, pack.Items, 3)
	assert.NotEmpty(t, pack.Errors)
	assert.Empty(t, pack.Items[0].Text)
	assert.Equal(t, "Python asyncio 示例代码", pack.Items[2].Text)
}
