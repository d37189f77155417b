package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/ingest"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Register a Bilibili video: fetch metadata, write the manifest, record the asset",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Re-ingest even if the source fingerprint is unchanged",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one video URL")
			}

			a := newApp(cmd)
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := ingest.Run(ctx, a.cfg, a.store, db, a.client(), cmd.Args().First(), cmd.Bool("force"))
			if err != nil {
				return err
			}

			printKV("asset", res.AssetID)
			printKV("title", res.Title)
			printKV("fingerprint", res.Fingerprint)
			if res.Skipped {
				fmt.Println(labelStyle.Render("unchanged, skipped (use --force to re-ingest)"))
			} else {
				printKV("version", res.VersionID)
			}
			return nil
		},
	}
}
