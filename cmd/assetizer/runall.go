package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/ffmpeg"
	"github.com/Xyri1/bili-assetizer/pipeline"
)

func runAllCmd() *cli.Command {
	return &cli.Command{
		Name:      "run-all",
		Usage:     "Run every extract stage in order, through the evidence index",
		ArgsUsage: "<asset-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "until",
				Usage: "Stop after this stage (source, frames, timeline, select, ocr, ocr_normalize, transcript, index)",
			},
			&cli.StringFlag{
				Name:  "local-file",
				Usage: "Use this file as the source video instead of downloading",
			},
			&cli.BoolFlag{
				Name:  "no-download",
				Usage: "Skip the download; the source stage only verifies provenance",
			},
			&cli.StringFlag{
				Name:  "tesseract-cmd",
				Usage: "Path to the tesseract binary (default: search PATH)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Redo every stage even if cached",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			assetID, err := oneAssetArg(cmd)
			if err != nil {
				return err
			}

			a := newApp(cmd)
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			runner, err := ffmpeg.NewRunner()
			if err != nil {
				return err
			}

			result := a.pipeline(db, runner).Run(ctx, assetID, pipeline.Options{
				Until:        cmd.String("until"),
				LocalFile:    cmd.String("local-file"),
				Download:     !cmd.Bool("no-download") && cmd.String("local-file") == "",
				TesseractCmd: cmd.String("tesseract-cmd"),
				Force:        cmd.Bool("force"),
			})

			printPipelineResult(result)
			if result.Halted {
				return fmt.Errorf("pipeline halted")
			}
			return nil
		},
	}
}
