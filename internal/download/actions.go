package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtnitsch/archive-downloader/internal/common"
	"github.com/dtnitsch/archive-downloader/pkg/db"
	"github.com/dtnitsch/archive-downloader/pkg/downloader"
	"github.com/dtnitsch/archive-downloader/pkg/fetcher"
	"github.com/dtnitsch/archive-downloader/pkg/lister"
	"github.com/dtnitsch/archive-downloader/pkg/storage"
	"github.com/urfave/cli/v2"
)

func DownloadAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg, err := common.ConfigFromContext(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	common.PrintBanner(os.Stdout, "Archive Downloader", cfg)

	store, err := storage.New(cfg.OutputDir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	f := fetcher.NewFetcher(cfg.Timeout, cfg.UserAgent)
	d := downloader.NewDownloader(f, store, logger)
	d.Resume = cfg.Resume
	if !c.Bool("quiet") {
		d.Progress = downloader.BarProgress(os.Stderr)
	}

	runner := NewRunner(lister.New(f, cfg), d, cfg, os.Stdout, logger)
	if cfg.HistoryDB != "" {
		database, err := db.Open(cfg.HistoryDB)
		if err != nil {
			logger.Warn("History disabled, failed to open database", "path", cfg.HistoryDB, "error", err)
		} else {
			defer database.Close()
			runner.History = database
		}
	}

	logger.Info("Starting run", "url", cfg.SourceURL, "output", cfg.OutputDir, "types", cfg.ExtensionList(),
		"skip_thumbs", cfg.SkipThumbnails, "resume", cfg.Resume, "timeout", cfg.Timeout)

	summary, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return cli.Exit("\nDownload cancelled by user", 1)
		}
		return cli.Exit(fmt.Sprintf("\n\nError: %v", err), 1)
	}

	logger.Info("Run finished", "successful", summary.Successful, "failed", summary.Failed, "total", summary.Total)
	return nil
}
