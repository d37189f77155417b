package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/bilibili"
	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/pipeline"
	"github.com/Xyri1/bili-assetizer/storage"
	"github.com/Xyri1/bili-assetizer/transcript"
)

// app wires the shared dependencies once per command invocation.
type app struct {
	cfg   config.Settings
	store *manifest.Store
}

func newApp(cmd *cli.Command) *app {
	cfg := config.Load(cmd.String("data-dir"))
	return &app{
		cfg:   cfg,
		store: manifest.NewStore(cfg.DataDir),
	}
}

func (a *app) openDB() (*storage.DB, error) {
	return storage.Open(a.cfg.DBPath)
}

func (a *app) client() *bilibili.Client {
	return bilibili.NewClient(a.cfg.UserAgent, a.cfg.Referer)
}

func (a *app) provider() (transcript.Provider, error) {
	return transcript.NewWhisperProvider(a.cfg.OpenAIAPIKey, a.cfg.OpenAIBaseURL, a.cfg.WhisperModel)
}

func (a *app) pipeline(db *storage.DB, runner *ffmpeg.Runner) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Cfg:      a.cfg,
		Store:    a.store,
		DB:       db,
		Client:   a.client(),
		Runner:   runner,
		Provider: a.provider,
	}
}

// stageErr converts a stage result into the command's exit error. Stage
// failures already carry their messages; the error keeps exit codes honest.
func stageErr(r core.StageResult) error {
	printStageResult(r)
	if r.Completed() {
		return nil
	}
	return fmt.Errorf("stage %s failed", r.Stage)
}
