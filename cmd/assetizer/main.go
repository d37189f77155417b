package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	root := &cli.Command{
		Name:  "assetizer",
		Usage: "Turn Bilibili videos into a queryable knowledge base of transcripts and keyframes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Root directory for asset data (default: $ASSETIZER_DATA_DIR or ./data)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, err := log.ParseLevel(cmd.String("log"))
			if err != nil {
				return ctx, err
			}
			log.SetLevel(level)
			return ctx, nil
		},
		Commands: []*cli.Command{
			ingestCmd(),
			extractSourceCmd(),
			extractFramesCmd(),
			extractTimelineCmd(),
			extractSelectCmd(),
			extractOcrCmd(),
			ocrNormalizeCmd(),
			extractTranscriptCmd(),
			runAllCmd(),
			indexCmd(),
			queryCmd(),
			evidenceCmd(),
			showCmd(),
			cleanCmd(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
