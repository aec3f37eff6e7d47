package main

import (
	"fmt"
	"os"

	"github.com/dtnitsch/archive-downloader/internal/download"
	"github.com/dtnitsch/archive-downloader/internal/history"
	"github.com/dtnitsch/archive-downloader/internal/list"
	"github.com/dtnitsch/archive-downloader/models"
	"github.com/urfave/cli/v2"
)

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "url",
			Value: models.DefaultSourceURL,
			Usage: "Archive index page to download from",
		},
		&cli.StringSliceFlag{
			Name:    "types",
			Aliases: []string{"t"},
			Usage:   "Only download these file extensions (e.g. -t iso -t bin, or -t iso,bin)",
		},
		&cli.BoolFlag{
			Name:  "skip-thumbs",
			Usage: "Skip thumbnail images (*_thumb.* files)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: models.DefaultTimeout,
			Usage: "Per-request HTTP timeout",
		},
		&cli.StringFlag{
			Name:  "user-agent",
			Value: models.DefaultUserAgent,
			Usage: "User-Agent header sent with every request",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML file with default settings; explicit flags override it",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Only log errors and hide progress bars",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

func historyDBFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "history-db",
		EnvVars: []string{"ADL_HISTORY_DB"},
		Usage:   "SQLite file recording every run and file outcome (disabled when empty)",
	}
}

func downloadFlags() []cli.Flag {
	return append(sourceFlags(),
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   models.DefaultOutputDir,
			Usage:   "Output directory for downloaded files",
		},
		&cli.BoolFlag{
			Name:  "no-resume",
			Usage: "Restart partially downloaded files from scratch",
		},
		historyDBFlag(),
	)
}

func main() {
	app := &cli.App{
		Name:  "adl",
		Usage: "Download every file listed on an archive index page",
		Description: `Examples:
   adl                                  # download everything
   adl download -t iso                  # only ISO files
   adl download -t jpg --skip-thumbs    # cover images without thumbnails
   adl download -o /data/pack -t iso,bin
   adl list -t xml,torrent --format yaml`,
		Flags:  downloadFlags(),
		Action: download.DownloadAction,
		Commands: []*cli.Command{
			{
				Name:   "download",
				Usage:  "Download all matching files, resuming partial ones",
				Flags:  downloadFlags(),
				Action: download.DownloadAction,
			},
			{
				Name:  "list",
				Usage: "Print the files a download would fetch",
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:  "format",
						Value: "text",
						Usage: "Output format: text, json or yaml",
					},
				),
				Action: list.ListAction,
			},
			{
				Name:      "history",
				Usage:     "Show recorded runs, or one run's files",
				ArgsUsage: "[run-id]",
				Flags: []cli.Flag{
					historyDBFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum number of runs to list",
					},
					&cli.StringFlag{
						Name:  "format",
						Value: "text",
						Usage: "Output format: text, json or yaml",
					},
				},
				Action: history.HistoryAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
