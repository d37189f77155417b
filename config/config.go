// Package config builds the runtime settings for the pipeline. Settings are
// constructed once in the command layer and passed down; no package reads the
// environment on its own.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings carries every tunable the pipeline uses. Zero-config defaults
// match the documented file layout.
type Settings struct {
	// DataDir is the root under which each asset gets a directory.
	DataDir string
	// DBPath is the shared SQLite database (assets, versions, evidence).
	DBPath string

	// Frame extraction.
	FrameIntervalSec int
	FrameScaleWidth  int
	MaxFrames        int

	// Timeline and selection.
	BucketSec       int
	TopBuckets      int
	MaxSelectFrames int

	// OCR.
	OCRLang string
	OCRPsm  int

	// Transcript.
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	WhisperModel   string
	AudioBitrates  []int // kbps tiers tried until the upload limit is met
	AudioMaxBytes  int64
	TranscriptLang string

	// Download.
	UserAgent string
	Referer   string
}

// Default returns settings with every default applied, rooted at dataDir.
func Default(dataDir string) Settings {
	return Settings{
		DataDir:          dataDir,
		DBPath:           filepath.Join(dataDir, "bili_assetizer.db"),
		FrameIntervalSec: 5,
		FrameScaleWidth:  768,
		MaxFrames:        1000,
		BucketSec:        30,
		TopBuckets:       12,
		MaxSelectFrames:  30,
		OCRLang:          "chi_sim+eng",
		OCRPsm:           6,
		WhisperModel:     "whisper-1",
		AudioBitrates:    []int{96, 64, 48, 32},
		AudioMaxBytes:    25 * 1024 * 1024,
		TranscriptLang:   "zh",
		UserAgent:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		Referer:          "https://www.bilibili.com",
	}
}

// Load builds settings from defaults, a .env file if present, and the
// process environment. Environment values win over .env values because
// godotenv does not overwrite variables that are already set.
func Load(dataDir string) Settings {
	_ = godotenv.Load()

	if dataDir == "" {
		dataDir = envString("ASSETIZER_DATA_DIR", "data")
	}
	s := Default(dataDir)

	s.DBPath = envString("ASSETIZER_DB_PATH", s.DBPath)
	s.FrameIntervalSec = envInt("ASSETIZER_FRAME_INTERVAL_SEC", s.FrameIntervalSec)
	s.FrameScaleWidth = envInt("ASSETIZER_FRAME_SCALE_WIDTH", s.FrameScaleWidth)
	s.MaxFrames = envInt("ASSETIZER_MAX_FRAMES", s.MaxFrames)
	s.BucketSec = envInt("ASSETIZER_BUCKET_SEC", s.BucketSec)
	s.TopBuckets = envInt("ASSETIZER_TOP_BUCKETS", s.TopBuckets)
	s.MaxSelectFrames = envInt("ASSETIZER_MAX_SELECT_FRAMES", s.MaxSelectFrames)
	s.OCRLang = envString("ASSETIZER_OCR_LANG", s.OCRLang)
	s.OCRPsm = envInt("ASSETIZER_OCR_PSM", s.OCRPsm)
	s.OpenAIAPIKey = envString("OPENAI_API_KEY", "")
	s.OpenAIBaseURL = envString("OPENAI_BASE_URL", "")
	s.WhisperModel = envString("ASSETIZER_WHISPER_MODEL", s.WhisperModel)
	s.TranscriptLang = envString("ASSETIZER_TRANSCRIPT_LANG", s.TranscriptLang)
	s.UserAgent = envString("ASSETIZER_USER_AGENT", s.UserAgent)
	s.Referer = envString("ASSETIZER_REFERER", s.Referer)
	return s
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
