package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/source"
)

func extractSourceCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract-source",
		Usage:     "Materialize the asset's video: local file, DASH download, or provenance check",
		ArgsUsage: "<asset-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "local-file",
				Usage: "Copy this file instead of downloading",
			},
			&cli.BoolFlag{
				Name:  "no-download",
				Usage: "Skip the download; only verify ingest provenance",
			},
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

			opts := source.Options{
				LocalFile: cmd.String("local-file"),
				Download:  !cmd.Bool("no-download"),
				Force:     cmd.Bool("force"),
			}
			return stageErr(source.Run(ctx, a.cfg, a.store, a.client(), runner, assetID, opts))
		},
	}
}

func oneAssetArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one asset id")
	}
	return cmd.Args().First(), nil
}
