package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/ocr"
)

func extractOcrCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract-ocr",
		Usage:     "Run Tesseract over the selected keyframes",
		ArgsUsage: "<asset-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tesseract-cmd",
				Usage: "Path to the tesseract binary (default: search PATH)",
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
			return stageErr(ocr.Run(ctx, a.cfg, a.store, assetID, ocr.Options{
				TesseractCmd: cmd.String("tesseract-cmd"),
				Force:        cmd.Bool("force"),
			}))
		},
	}
}

func ocrNormalizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "ocr-normalize",
		Usage:     "Verify the structured OCR output and record its counts",
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
			return stageErr(ocr.RunNormalize(ctx, a.cfg, a.store, assetID, cmd.Bool("force")))
		},
	}
}
