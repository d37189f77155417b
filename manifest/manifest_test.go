package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xyri1/bili-assetizer/core"
)

func TestLoadNotIngested(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load("BV1xx411c7mD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ingested")
}

func TestRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	m := core.NewManifest("BV1xx411c7mD", "https://www.bilibili.com/video/BV1xx411c7mD")
	m.Status = core.AssetIngested
	m.Fingerprint = "deadbeef"
	require.NoError(t, core.PutStage(m, core.StageSource, core.SourceStage{
		StageMeta: core.StageMeta{Status: core.StageCompleted, UpdatedAt: core.NowUTC()},
		VideoPath: "source/video.mp4",
	}))
	require.NoError(t, s.Save(m))

	got, err := s.Load("BV1xx411c7mD")
	require.NoError(t, err)
	assert.Equal(t, core.AssetIngested, got.Status)
	assert.Equal(t, "deadbeef", got.Fingerprint)
	assert.Equal(t, core.StageCompleted, got.StageStatusOf(core.StageSource))

	src, ok, err := core.StageAs[core.SourceStage](got, core.StageSource)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "source/video.mp4", src.VideoPath)
}

func TestSaveAtomic(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	m := core.NewManifest("BV1xx411c7mD", "url")
	require.NoError(t, s.Save(m))

	// No leftover temp files in the asset dir.
	entries, err := os.ReadDir(s.AssetDir("BV1xx411c7mD"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestLoadSurvivesCrashBeforeRename(t *testing.T) {
	s := NewStore(t.TempDir())

	m := core.NewManifest("BV1xx411c7mD", "url")
	m.Status = core.AssetIngested
	require.NoError(t, s.Save(m))

	// Simulate a crash between writing the temp file and renaming it: the
	// newer state sits in a stray temp file that never got renamed.
	m.Status = core.AssetFailed
	data, err := json.Marshal(m)
	require.NoError(t, err)
	tmp, err := os.CreateTemp(s.AssetDir("BV1xx411c7mD"), ".manifest-*.json")
	require.NoError(t, err)
	_, err = tmp.Write(data)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	got, err := s.Load("BV1xx411c7mD")
	require.NoError(t, err)
	assert.Equal(t, core.AssetIngested, got.Status, "previous manifest intact")
}

func TestSaveKeepsPreviousOnOverwrite(t *testing.T) {
	s := NewStore(t.TempDir())

	m := core.NewManifest("BV1xx411c7mD", "url")
	require.NoError(t, s.Save(m))

	m.Status = core.AssetIngested
	require.NoError(t, s.Save(m))

	got, err := s.Load("BV1xx411c7mD")
	require.NoError(t, err)
	assert.Equal(t, core.AssetIngested, got.Status)
}

func TestSaveCreatesAssetDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "data"))

	m := core.NewManifest("BV1xx411c7mD", "url")
	require.NoError(t, s.Save(m))
	assert.True(t, s.Exists("BV1xx411c7mD"))
	assert.False(t, s.Exists("BV1other"))
}

func TestLoadCorruptManifest(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, os.MkdirAll(s.AssetDir("BV1xx411c7mD"), 0o755))
	require.NoError(t, os.WriteFile(s.Path("BV1xx411c7mD"), []byte("{nope"), 0o644))

	_, err := s.Load("BV1xx411c7mD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse manifest")
}
