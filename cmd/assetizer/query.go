package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/evidence"
)

func queryCmd() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Search an asset's evidence index and print ranked, cited hits",
		ArgsUsage: "<asset-id> <query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Maximum number of hits",
				Value: 8,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw result as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("expected <asset-id> <query>")
			}
			assetID, query := cmd.Args().Get(0), cmd.Args().Get(1)

			a := newApp(cmd)
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := evidence.Query(db, assetID, query, int(cmd.Int("top-k")))
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("%d of %d hits for %q", len(result.Hits), result.Total, result.Query)))
			for _, h := range result.Hits {
				fmt.Printf("%s %s\n", okStyle.Render(h.Citation), labelStyle.Render(fmt.Sprintf("score=%.2f", h.Score)))
				fmt.Println(indent(h.Snippet))
			}
			return nil
		},
	}
}

func evidenceCmd() *cli.Command {
	return &cli.Command{
		Name:      "evidence",
		Usage:     "Search and resolve hits to their full source records as a JSON evidence pack",
		ArgsUsage: "<asset-id> <query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Maximum number of hits",
				Value: 8,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("expected <asset-id> <query>")
			}
			assetID, query := cmd.Args().Get(0), cmd.Args().Get(1)

			a := newApp(cmd)
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			pack, err := evidence.Gather(a.store, db, assetID, query, int(cmd.Int("top-k")))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pack)
		},
	}
}
