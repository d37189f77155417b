package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	s := Default("data")

	assert.Equal(t, "data", s.DataDir)
	assert.Equal(t, filepath.Join("data", "bili_assetizer.db"), s.DBPath)
	assert.Equal(t, 5, s.FrameIntervalSec)
	assert.Equal(t, 768, s.FrameScaleWidth)
	assert.Equal(t, 30, s.BucketSec)
	assert.Equal(t, 30, s.MaxSelectFrames)
	assert.Equal(t, "chi_sim+eng", s.OCRLang)
	assert.Equal(t, 6, s.OCRPsm)
	assert.Equal(t, []int{96, 64, 48, 32}, s.AudioBitrates)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ASSETIZER_FRAME_INTERVAL_SEC", "10")
	t.Setenv("ASSETIZER_OCR_LANG", "eng")
	t.Setenv("ASSETIZER_MAX_FRAMES", "not-a-number")

	s := Load("data")

	assert.Equal(t, 10, s.FrameIntervalSec)
	assert.Equal(t, "eng", s.OCRLang)
	assert.Equal(t, 1000, s.MaxFrames, "bad value falls back to default")
}

func TestLoadDataDirFromEnv(t *testing.T) {
	t.Setenv("ASSETIZER_DATA_DIR", "/tmp/assets")

	s := Load("")
	assert.Equal(t, "/tmp/assets", s.DataDir)
	assert.Equal(t, filepath.Join("/tmp/assets", "bili_assetizer.db"), s.DBPath)
}
