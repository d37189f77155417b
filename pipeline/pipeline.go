// Package pipeline runs the extract stages in order for one asset,
// honoring caches, an optional stop stage, and halting on the first
// failure.
package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/bilibili"
	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/evidence"
	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/frames"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/ocr"
	"github.com/Xyri1/bili-assetizer/selection"
	"github.com/Xyri1/bili-assetizer/source"
	"github.com/Xyri1/bili-assetizer/storage"
	"github.com/Xyri1/bili-assetizer/timeline"
	"github.com/Xyri1/bili-assetizer/transcript"
)

// Options controls a full pipeline run.
type Options struct {
	// Until stops the pipeline after the named stage completes.
	Until string
	// LocalFile, Download, and TesseractCmd pass through to their stages.
	LocalFile    string
	Download     bool
	TesseractCmd string
	Force        bool
}

// Pipeline holds the shared dependencies the stages draw on. Provider is
// built lazily so runs that stop before the transcript stage need no ASR
// credentials.
type Pipeline struct {
	Cfg      config.Settings
	Store    *manifest.Store
	DB       *storage.DB
	Client   *bilibili.Client
	Runner   *ffmpeg.Runner
	Provider func() (transcript.Provider, error)
}

// Run executes every stage in order for the asset, stopping after
// opts.Until when set and halting at the first stage that neither
// completes nor reports a legitimate missing artifact.
func (p *Pipeline) Run(ctx context.Context, assetID string, opts Options) core.PipelineResult {
	result := core.PipelineResult{AssetID: assetID}

	if opts.Until != "" && !slices.Contains(core.PipelineStages, opts.Until) {
		result.Halted = true
		result.Stages = append(result.Stages, core.Fail("pipeline", fmt.Sprintf("unknown stage: %s", opts.Until)))
		return result
	}

	for i, stage := range core.PipelineStages {
		log.Info("stage starting", "asset", assetID, "stage", stage, "step", fmt.Sprintf("%d/%d", i+1, len(core.PipelineStages)))

		sr := p.runStage(ctx, stage, assetID, opts)
		result.Stages = append(result.Stages, sr)

		if !sr.Completed() {
			log.Error("stage failed, halting", "asset", assetID, "stage", stage, "errors", sr.Errors)
			result.Halted = true
			return result
		}
		if stage == opts.Until {
			return result
		}
	}
	return result
}

func (p *Pipeline) runStage(ctx context.Context, stage, assetID string, opts Options) core.StageResult {
	switch stage {
	case core.StageSource:
		return source.Run(ctx, p.Cfg, p.Store, p.Client, p.Runner, assetID, source.Options{
			LocalFile: opts.LocalFile,
			Download:  opts.Download,
			Force:     opts.Force,
		})
	case core.StageFrames:
		return frames.Run(ctx, p.Cfg, p.Store, p.Runner, assetID, frames.Options{Force: opts.Force})
	case core.StageTimeline:
		return timeline.Run(ctx, p.Cfg, p.Store, assetID, timeline.Options{Force: opts.Force})
	case core.StageSelect:
		return selection.Run(ctx, p.Cfg, p.Store, assetID, selection.Options{Force: opts.Force})
	case core.StageOCR:
		return ocr.Run(ctx, p.Cfg, p.Store, assetID, ocr.Options{TesseractCmd: opts.TesseractCmd, Force: opts.Force})
	case core.StageOCRNormalize:
		return ocr.RunNormalize(ctx, p.Cfg, p.Store, assetID, opts.Force)
	case core.StageTranscript:
		provider, err := p.Provider()
		if err != nil {
			return core.Fail(core.StageTranscript, err.Error())
		}
		return transcript.Run(ctx, p.Cfg, p.Store, p.Runner, provider, assetID, transcript.Options{Force: opts.Force})
	case core.StageIndex:
		return evidence.RunIndex(p.Store, p.DB, assetID, opts.Force)
	default:
		return core.Fail(stage, fmt.Sprintf("unknown stage: %s", stage))
	}
}
