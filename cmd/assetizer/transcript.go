package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/transcript"
)

func extractTranscriptCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract-transcript",
		Usage:     "Extract ASR-ready audio and transcribe it into timestamped segments",
		ArgsUsage: "<asset-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Redo the stage even if cached",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			assetID, err := oneAssetArg(cmd)
			if err != nil {
				return err
			}

			a := newApp(cmd)
			runner, err := ffmpeg.NewRunner()
			if err != nil {
				return err
			}
			provider, err := a.provider()
			if err != nil {
				return err
			}

			return stageErr(transcript.Run(ctx, a.cfg, a.store, runner, provider, assetID, transcript.Options{
				Force: cmd.Bool("force"),
			}))
		},
	}
}
