package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/Xyri1/bili-assetizer/core"
)

type artifact struct {
	path   string
	exists bool
}

// stageArtifacts pulls the file and directory pointers out of every stage
// record, relative to the asset dir, and checks whether each exists.
func stageArtifacts(m *core.Manifest, assetDir string) []artifact {
	seen := map[string]bool{}
	var out []artifact
	for _, raw := range m.Stages {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		for key, v := range fields {
			rel, ok := v.(string)
			if !ok || rel == "" || seen[rel] {
				continue
			}
			if !strings.HasSuffix(key, "_file") && !strings.HasSuffix(key, "_dir") && !strings.HasSuffix(key, "_path") {
				continue
			}
			seen[rel] = true
			_, err := os.Stat(filepath.Join(assetDir, rel))
			out = append(out, artifact{path: rel, exists: err == nil})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func showCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Summarize an asset's manifest: status, stages, and evidence counts",
		ArgsUsage: "<asset-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full manifest as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			assetID, err := oneAssetArg(cmd)
			if err != nil {
				return err
			}

			a := newApp(cmd)
			m, err := a.store.Load(assetID)
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}

			fmt.Println(titleStyle.Render(m.AssetID))
			printKV("status", string(m.Status))
			printKV("source", m.SourceURL)
			printKV("updated", m.UpdatedAt)
			if m.Fingerprint != "" {
				printKV("fingerprint", m.Fingerprint[:12])
			}

			fmt.Println()
			for _, stage := range core.PipelineStages {
				status := m.StageStatusOf(stage)
				line := fmt.Sprintf("  %-14s %s", stage, statusStyle(status).Render(string(status)))
				fmt.Println(line)
			}

			if artifacts := stageArtifacts(m, a.store.AssetDir(assetID)); len(artifacts) > 0 {
				fmt.Println()
				for _, art := range artifacts {
					marker := okStyle.Render("✓")
					if !art.exists {
						marker = failStyle.Render("✗")
					}
					fmt.Printf("  %s %s\n", marker, art.path)
				}
			}

			if db, err := a.openDB(); err == nil {
				defer db.Close()
				if tr, oc, err := db.EvidenceCounts(assetID); err == nil && tr+oc > 0 {
					fmt.Println()
					printKV("evidence", fmt.Sprintf("%d transcript, %d ocr", tr, oc))
				}
			}

			for _, e := range m.Errors {
				fmt.Fprintln(os.Stderr, failStyle.Render(fmt.Sprintf("  %s: %s", e.Stage, e.Message)))
			}
			return nil
		},
	}
}
