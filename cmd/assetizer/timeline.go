package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/selection"
	"github.com/Xyri1/bili-assetizer/timeline"
)

func extractTimelineCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract-timeline",
		Usage:     "Score frames for information density and bucket them into windows",
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
			return stageErr(timeline.Run(ctx, a.cfg, a.store, assetID, timeline.Options{
				Force: cmd.Bool("force"),
			}))
		},
	}
}

func extractSelectCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract-select",
		Usage:     "Pick the final keyframes from the top timeline buckets",
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
			return stageErr(selection.Run(ctx, a.cfg, a.store, assetID, selection.Options{
				Force: cmd.Bool("force"),
			}))
		},
	}
}
