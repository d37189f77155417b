package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/clean"
)

func cleanCmd() *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Delete an asset's files and database rows; with --all, every asset",
		ArgsUsage: "[asset-id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Delete every asset under the data dir",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Skip the confirmation prompt",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			all := cmd.Bool("all")
			if all == (cmd.Args().Len() == 1) {
				return fmt.Errorf("pass exactly one asset id, or --all")
			}

			a := newApp(cmd)
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			target := "asset " + cmd.Args().First()
			if all {
				ids, err := clean.ListAssets(a.cfg.DataDir)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Println("nothing to clean")
					return nil
				}
				target = fmt.Sprintf("%d assets", len(ids))
			}

			if !cmd.Bool("yes") && !confirm(fmt.Sprintf("Delete %s? [y/N] ", target)) {
				fmt.Println("aborted")
				return nil
			}

			var result clean.Result
			if all {
				result = clean.All(a.cfg.DataDir, db, nil)
			} else {
				result = clean.Asset(a.cfg.DataDir, db, cmd.Args().First())
			}

			for _, p := range result.DeletedPaths {
				fmt.Println(labelStyle.Render("deleted " + p))
			}
			fmt.Println(titleStyle.Render(fmt.Sprintf("%d cleaned", result.DeletedCount)))
			for _, e := range result.Errors {
				fmt.Fprintln(os.Stderr, failStyle.Render(e))
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("clean finished with %d errors", len(result.Errors))
			}
			return nil
		},
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
