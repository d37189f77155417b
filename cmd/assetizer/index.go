package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/evidence"
)

func indexCmd() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Load transcript and OCR text into the full-text evidence index",
		ArgsUsage: "<asset-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Clear the asset's evidence rows and re-index",
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

			return stageErr(evidence.RunIndex(a.store, db, assetID, cmd.Bool("force")))
		},
	}
}
