package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/frames"
)

func extractFramesCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract-frames",
		Usage:     "Extract frames at a fixed interval and dedup exact repeats",
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

			return stageErr(frames.Run(ctx, a.cfg, a.store, runner, assetID, frames.Options{
				Force: cmd.Bool("force"),
			}))
		},
	}
}
