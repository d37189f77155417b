// Package source materializes an asset's video file: copy a local file,
// download and merge the DASH streams, or verify provenance only.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/bilibili"
	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/manifest"
)

// VideoRelPath is where the source video lands, relative to the asset dir.
const VideoRelPath = "source/video.mp4"

// Options selects the acquisition mode. LocalFile wins over Download; with
// neither, the stage only verifies provenance and ends in status missing.
type Options struct {
	LocalFile string
	Download  bool
	Force     bool
}

func (o Options) mode() string {
	switch {
	case o.LocalFile != "":
		return "local"
	case o.Download:
		return "download"
	default:
		return "verify"
	}
}

// Run executes the source stage for one asset.
func Run(ctx context.Context, cfg config.Settings, store *manifest.Store, client *bilibili.Client, runner *ffmpeg.Runner, assetID string, opts Options) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageSource, err.Error())
	}

	params := core.NewParams(map[string]any{
		"mode":       opts.mode(),
		"local_file": opts.LocalFile,
	})

	assetDir := store.AssetDir(assetID)
	videoPath := filepath.Join(assetDir, VideoRelPath)

	if !opts.Force && cached(m, params, videoPath) {
		log.Info("source cached", "asset", assetID)
		return core.StageResult{Stage: core.StageSource, Status: m.StageStatusOf(core.StageSource), Skipped: true}
	}

	markInProgress(m, params)
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageSource, err.Error())
	}

	var (
		status   core.StageStatus
		stageErr []string
	)
	switch opts.mode() {
	case "local":
		status, stageErr = runLocal(opts.LocalFile, videoPath)
	case "download":
		status, stageErr = runDownload(ctx, client, runner, assetDir, videoPath)
	default:
		status, stageErr = runVerify(assetDir, m)
	}

	rec := core.SourceStage{
		StageMeta: core.StageMeta{
			Status:    status,
			Params:    params,
			UpdatedAt: core.NowUTC(),
			Errors:    stageErr,
		},
	}
	if status == core.StageCompleted {
		rec.VideoPath = VideoRelPath
	}
	if err := core.PutStage(m, core.StageSource, rec); err != nil {
		return core.Fail(core.StageSource, err.Error())
	}
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageSource, err.Error())
	}

	return core.StageResult{Stage: core.StageSource, Status: status, Errors: stageErr}
}

func cached(m *core.Manifest, params core.Params, videoPath string) bool {
	status := m.StageStatusOf(core.StageSource)
	if status != core.StageCompleted && status != core.StageMissing {
		return false
	}
	if !m.StageParamsOf(core.StageSource).Equal(params) {
		return false
	}
	if status == core.StageMissing {
		return true
	}
	_, err := os.Stat(videoPath)
	return err == nil
}

func markInProgress(m *core.Manifest, params core.Params) {
	_ = core.PutStage(m, core.StageSource, core.SourceStage{
		StageMeta: core.StageMeta{
			Status:    core.StageInProgress,
			Params:    params,
			UpdatedAt: core.NowUTC(),
		},
	})
}

func runLocal(localFile, videoPath string) (core.StageStatus, []string) {
	if _, err := os.Stat(localFile); err != nil {
		return core.StageFailed, []string{fmt.Sprintf("local file not found: %s", localFile)}
	}
	if err := os.MkdirAll(filepath.Dir(videoPath), 0o755); err != nil {
		return core.StageFailed, []string{err.Error()}
	}
	if err := copyFile(localFile, videoPath); err != nil {
		return core.StageFailed, []string{fmt.Sprintf("copy local file: %v", err)}
	}
	log.Info("copied local video", "dst", videoPath)
	return core.StageCompleted, nil
}

func runDownload(ctx context.Context, client *bilibili.Client, runner *ffmpeg.Runner, assetDir, videoPath string) (core.StageStatus, []string) {
	play, err := loadPlayInfo(assetDir)
	if err != nil {
		return core.StageFailed, []string{err.Error()}
	}

	video, err := bilibili.BestStream(play.Video)
	if err != nil {
		return core.StageFailed, []string{"no video stream in playurl provenance"}
	}
	audio, err := bilibili.BestStream(play.Audio)
	if err != nil {
		return core.StageFailed, []string{"no audio stream in playurl provenance"}
	}

	if err := os.MkdirAll(filepath.Dir(videoPath), 0o755); err != nil {
		return core.StageFailed, []string{err.Error()}
	}
	videoTmp := videoPath + ".video.m4s"
	audioTmp := videoPath + ".audio.m4s"
	defer os.Remove(videoTmp)
	defer os.Remove(audioTmp)

	log.Info("downloading dash streams", "video_bw", video.Bandwidth, "audio_bw", audio.Bandwidth)
	if err := client.Download(ctx, video.BaseURL, videoTmp); err != nil {
		return core.StageFailed, []string{fmt.Sprintf("download video stream: %v", err)}
	}
	if err := client.Download(ctx, audio.BaseURL, audioTmp); err != nil {
		return core.StageFailed, []string{fmt.Sprintf("download audio stream: %v", err)}
	}

	if err := runner.Merge(ctx, videoTmp, audioTmp, videoPath); err != nil {
		return core.StageFailed, []string{fmt.Sprintf("merge streams: %v", err)}
	}
	log.Info("downloaded and merged", "dst", videoPath)
	return core.StageCompleted, nil
}

// runVerify checks that ingest's provenance files exist. The video itself is
// deliberately not materialized; the stage ends in status missing.
func runVerify(assetDir string, m *core.Manifest) (core.StageStatus, []string) {
	var errs []string
	for _, rel := range []string{m.Paths.SourceView, m.Paths.SourcePlayURL, m.Paths.Metadata} {
		if rel == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(assetDir, rel)); err != nil {
			errs = append(errs, fmt.Sprintf("provenance file missing: %s", rel))
		}
	}
	if len(errs) > 0 {
		return core.StageFailed, errs
	}
	return core.StageMissing, nil
}

func loadPlayInfo(assetDir string) (*bilibili.PlayInfo, error) {
	raw, err := os.ReadFile(filepath.Join(assetDir, "source_api", "playurl.json"))
	if err != nil {
		return nil, fmt.Errorf("playurl provenance not found; run ingest first")
	}
	var env struct {
		Data struct {
			Dash struct {
				Video []bilibili.DashStream `json:"video"`
				Audio []bilibili.DashStream `json:"audio"`
			} `json:"dash"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse playurl provenance: %w", err)
	}
	return &bilibili.PlayInfo{Video: env.Data.Dash.Video, Audio: env.Data.Dash.Audio}, nil
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
