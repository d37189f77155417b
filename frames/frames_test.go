package frames

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFrames(t *testing.T, dir string, contents []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i, c := range contents {
		name := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i+1))
		require.NoError(t, os.WriteFile(name, []byte(c), 0o644))
	}
}

func TestInferTsMs(t *testing.T) {
	assert.Equal(t, int64(0), InferTsMs("KF_000001", 5))
	assert.Equal(t, int64(5000), InferTsMs("KF_000002", 5))
	assert.Equal(t, int64(45000), InferTsMs("KF_000010", 5))
	assert.Equal(t, int64(0), InferTsMs("garbage", 5))
}

func TestBuildRecordsDedup(t *testing.T) {
	assetDir := t.TempDir()
	dir := filepath.Join(assetDir, DirName)
	writeFrames(t, dir, []string{"aaa", "bbb", "aaa", "ccc", "bbb"})

	records, err := BuildRecords(dir, 5, 0)
	require.NoError(t, err)
	require.Len(t, records, 5)

	byID := map[string]int{}
	for i, r := range records {
		byID[r.FrameID] = i
	}

	r1 := records[byID["KF_000001"]]
	r3 := records[byID["KF_000003"]]
	r5 := records[byID["KF_000005"]]

	assert.False(t, r1.IsDuplicate)
	require.NotNil(t, r1.Path)

	assert.True(t, r3.IsDuplicate)
	assert.Nil(t, r3.Path)
	assert.Equal(t, "KF_000001", r3.DuplicateOf)
	assert.Equal(t, r1.Hash, r3.Hash)

	assert.True(t, r5.IsDuplicate)
	assert.Equal(t, "KF_000002", r5.DuplicateOf)

	// Duplicate files are unlinked, canonical files stay.
	assert.NoFileExists(t, filepath.Join(dir, "frame_000003.png"))
	assert.NoFileExists(t, filepath.Join(dir, "frame_000005.png"))
	assert.FileExists(t, filepath.Join(dir, "frame_000001.png"))
	assert.FileExists(t, filepath.Join(dir, "frame_000004.png"))
}

func TestBuildRecordsCapKeepsEarliestByTimestamp(t *testing.T) {
	assetDir := t.TempDir()
	dir := filepath.Join(assetDir, DirName)
	writeFrames(t, dir, []string{"a", "b", "c", "d", "e"})

	records, err := BuildRecords(dir, 5, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.FrameID)
	}
	assert.Equal(t, []string{"KF_000001", "KF_000002", "KF_000003"}, ids)

	// Capped-out canonical files are removed.
	assert.NoFileExists(t, filepath.Join(dir, "frame_000004.png"))
	assert.NoFileExists(t, filepath.Join(dir, "frame_000005.png"))
}

func TestBuildRecordsCapDropsOrphanedDuplicates(t *testing.T) {
	assetDir := t.TempDir()
	dir := filepath.Join(assetDir, DirName)
	// Frame 5 duplicates frame 4; capping to 3 canonicals drops frame 4,
	// which orphans frame 5.
	writeFrames(t, dir, []string{"a", "b", "c", "d", "d"})

	records, err := BuildRecords(dir, 5, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.False(t, r.IsDuplicate)
		assert.NotEqual(t, "KF_000004", r.FrameID)
		assert.NotEqual(t, "KF_000005", r.FrameID)
	}
}

func TestBuildRecordsCapTimeStability(t *testing.T) {
	// The kept set under a cap is a prefix in time: adding later frames
	// never changes which earlier frames survive.
	assetDirA := t.TempDir()
	dirA := filepath.Join(assetDirA, DirName)
	writeFrames(t, dirA, []string{"a", "b", "c", "d"})
	recsA, err := BuildRecords(dirA, 5, 2)
	require.NoError(t, err)

	assetDirB := t.TempDir()
	dirB := filepath.Join(assetDirB, DirName)
	writeFrames(t, dirB, []string{"a", "b", "c", "d", "e", "f"})
	recsB, err := BuildRecords(dirB, 5, 2)
	require.NoError(t, err)

	require.Len(t, recsA, 2)
	require.Len(t, recsB, 2)
	for i := range recsA {
		assert.Equal(t, recsA[i].FrameID, recsB[i].FrameID)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	assetDir := t.TempDir()
	dir := filepath.Join(assetDir, DirName)
	writeFrames(t, dir, []string{"x", "y", "x"})

	records, err := BuildRecords(dir, 5, 0)
	require.NoError(t, err)

	path := filepath.Join(assetDir, FileName)
	require.NoError(t, WriteRecords(path, records))

	got, err := ReadRecords(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestBuildRecordsIdempotentOnRescan(t *testing.T) {
	// Re-running over a dir where duplicates were already unlinked yields
	// the same canonical set.
	assetDir := t.TempDir()
	dir := filepath.Join(assetDir, DirName)
	writeFrames(t, dir, []string{"a", "b", "a"})

	first, err := BuildRecords(dir, 5, 0)
	require.NoError(t, err)

	second, err := BuildRecords(dir, 5, 0)
	require.NoError(t, err)

	var firstCanonical []string
	for _, r := range first {
		if !r.IsDuplicate {
			firstCanonical = append(firstCanonical, r.FrameID)
		}
	}
	var secondCanonical []string
	for _, r := range second {
		if !r.IsDuplicate {
			secondCanonical = append(secondCanonical, r.FrameID)
		}
	}
	assert.Equal(t, firstCanonical, secondCanonical)
}
