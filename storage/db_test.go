package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertAssetCreatesVersion(t *testing.T) {
	db := openTestDB(t)

	v1, err := db.UpsertAsset("BV1xx411c7mD", "https://www.bilibili.com/video/BV1xx411c7mD", "fp-1")
	require.NoError(t, err)
	assert.NotEmpty(t, v1)

	// Re-ingest gets a fresh version id.
	v2, err := db.UpsertAsset("BV1xx411c7mD", "https://www.bilibili.com/video/BV1xx411c7mD", "fp-2")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestInsertEvidenceAndSearch(t *testing.T) {
	db := openTestDB(t)

	end := int64(28000)
	n, err := db.InsertEvidence([]EvidenceRow{
		{AssetID: "A", SourceType: EvidenceSourceTranscript, SourceRef: "SEG_000001",
			StartMs: 0, EndMs: &end, Text: "Python 异步 编程 入门"},
		{AssetID: "A", SourceType: EvidenceSourceOCR, SourceRef: "KF_000001",
			StartMs: 83000, Text: "Python asyncio 示例"},
		{AssetID: "A", SourceType: EvidenceSourceTranscript, SourceRef: "SEG_000002",
			StartMs: 28000, Text: ""}, // empty text is skipped
		{AssetID: "B", SourceType: EvidenceSourceTranscript, SourceRef: "SEG_000001",
			StartMs: 0, Text: "Python 教程"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, total, err := db.Search("A", `"Python"`, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, total, "scoped to asset A")
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "A", h.Row.AssetID)
		assert.Negative(t, h.Bm25, "bm25 ranks better matches more negative")
	}
}

func TestInsertEvidenceReplacesOnSameRef(t *testing.T) {
	db := openTestDB(t)

	_, err := db.InsertEvidence([]EvidenceRow{
		{AssetID: "A", SourceType: EvidenceSourceTranscript, SourceRef: "SEG_000001",
			StartMs: 0, Text: "旧 文本"},
	})
	require.NoError(t, err)

	_, err = db.InsertEvidence([]EvidenceRow{
		{AssetID: "A", SourceType: EvidenceSourceTranscript, SourceRef: "SEG_000001",
			StartMs: 0, Text: "新 文本"},
	})
	require.NoError(t, err)

	tr, _, err := db.EvidenceCounts("A")
	require.NoError(t, err)
	assert.Equal(t, 1, tr)

	_, total, err := db.Search("A", `"新"`, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	_, total, err = db.Search("A", `"旧"`, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "old text gone from FTS via delete trigger path")
}

func TestClearEvidence(t *testing.T) {
	db := openTestDB(t)

	_, err := db.InsertEvidence([]EvidenceRow{
		{AssetID: "A", SourceType: EvidenceSourceOCR, SourceRef: "KF_000001", StartMs: 0, Text: "文字"},
	})
	require.NoError(t, err)
	require.NoError(t, db.ClearEvidence("A"))

	tr, ocr, err := db.EvidenceCounts("A")
	require.NoError(t, err)
	assert.Zero(t, tr)
	assert.Zero(t, ocr)

	_, total, err := db.Search("A", `"文字"`, 8)
	require.NoError(t, err)
	assert.Zero(t, total, "FTS rows removed by delete trigger")
}

func TestDeleteAsset(t *testing.T) {
	db := openTestDB(t)

	_, err := db.UpsertAsset("A", "url", "fp")
	require.NoError(t, err)
	_, err = db.InsertEvidence([]EvidenceRow{
		{AssetID: "A", SourceType: EvidenceSourceTranscript, SourceRef: "SEG_000001", StartMs: 0, Text: "东西"},
	})
	require.NoError(t, err)

	require.NoError(t, db.DeleteAsset("A"))
	tr, _, err := db.EvidenceCounts("A")
	require.NoError(t, err)
	assert.Zero(t, tr)
}
