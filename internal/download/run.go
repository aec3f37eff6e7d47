package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dtnitsch/archive-downloader/models"
	"github.com/dtnitsch/archive-downloader/pkg/db"
	"github.com/fatih/color"
)

// Lister produces the ordered file list for a run.
type Lister interface {
	List(ctx context.Context) ([]models.FileEntry, error)
}

// Fetcher downloads one entry. A non-nil error means the run was cancelled.
type Fetcher interface {
	Download(ctx context.Context, entry models.FileEntry) (models.DownloadOutcome, error)
}

// Summary holds the final counts of a run. Remaining counts entries not
// finished, including one interrupted mid-transfer.
type Summary struct {
	Successful int
	Failed     int
	Total      int
	Remaining  int
	Cancelled  bool
}

// Runner lists once and then downloads every entry in order, one at a time.
type Runner struct {
	lister  Lister
	fetcher Fetcher
	cfg     *models.Config
	out     io.Writer
	logger  *slog.Logger

	// History is optional; when set every run and file outcome is recorded.
	History *db.DB
}

func NewRunner(l Lister, f Fetcher, cfg *models.Config, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{lister: l, fetcher: f, cfg: cfg, out: out, logger: logger}
}

var (
	okMark   = color.New(color.FgGreen)
	failMark = color.New(color.FgRed)
	warnMark = color.New(color.FgYellow)
)

// Run executes the batch. A listing failure is returned before any file is
// attempted. Cancellation stops the batch and is returned along with the
// counts so far; per-file failures are only counted.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	fmt.Fprintf(r.out, "Fetching file list from %s...\n", r.cfg.SourceURL)
	entries, err := r.lister.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	fmt.Fprintf(r.out, "Found %d files to download\n", len(entries))

	summary := Summary{Total: len(entries)}
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "No files found to download!")
		return summary, nil
	}

	runID := r.startRun(len(entries))
	outDir, err := filepath.Abs(r.cfg.OutputDir)
	if err != nil {
		outDir = r.cfg.OutputDir
	}
	fmt.Fprintf(r.out, "\nStarting download to: %s\n", outDir)

	var runErr error
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		fmt.Fprintf(r.out, "\n[%d/%d] Downloading: %s\n", i+1, len(entries), entry.Filename)
		outcome, err := r.fetcher.Download(ctx, entry)
		if err != nil {
			warnMark.Fprintf(r.out, "\n⚠ Download interrupted for %s\n", entry.Filename)
			r.recordFile(runID, i+1, outcome, true)
			runErr = err
			break
		}

		switch {
		case outcome.Skipped:
			summary.Successful++
			okMark.Fprintf(r.out, "✓ %s already downloaded\n", entry.Filename)
		case outcome.Succeeded:
			summary.Successful++
			okMark.Fprintf(r.out, "✓ %s downloaded successfully\n", entry.Filename)
		default:
			summary.Failed++
			failMark.Fprintf(r.out, "✗ Error downloading %s: %s\n", entry.Filename, outcome.Error)
		}
		r.recordFile(runID, i+1, outcome, false)
	}

	summary.Remaining = summary.Total - summary.Successful - summary.Failed
	if runErr != nil {
		summary.Cancelled = true
		r.finishRun(runID, summary)
		warnMark.Fprintln(r.out, "\n\n⚠ Download interrupted by user")
		fmt.Fprintf(r.out, "Downloaded: %d, Failed: %d, Remaining: %d (including the interrupted file)\n", summary.Successful, summary.Failed, summary.Remaining)
		return summary, fmt.Errorf("download interrupted: %w", runErr)
	}

	r.finishRun(runID, summary)
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(r.out, "\n%s\n", rule)
	fmt.Fprintln(r.out, "Download complete!")
	fmt.Fprintf(r.out, "Successful: %d\n", summary.Successful)
	fmt.Fprintf(r.out, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(r.out, "Total: %d\n", summary.Total)
	fmt.Fprintln(r.out, rule)
	return summary, nil
}

// History writes are best effort; a broken database never fails a download.
func (r *Runner) startRun(total int) int64 {
	if r.History == nil {
		return 0
	}
	runID, err := r.History.CreateRun(r.cfg, total)
	if err != nil {
		r.logger.Warn("Failed to record run in history", "error", err)
		return 0
	}
	r.logger.Debug("Recording run", "run_id", runID, "db", r.History.Path())
	return runID
}

func (r *Runner) recordFile(runID int64, position int, outcome models.DownloadOutcome, cancelled bool) {
	if r.History == nil || runID == 0 {
		return
	}
	if err := r.History.InsertRunFile(runID, position, outcome, cancelled); err != nil {
		r.logger.Warn("Failed to record file outcome", "run_id", runID, "file", outcome.Filename, "error", err)
	}
}

func (r *Runner) finishRun(runID int64, s Summary) {
	if r.History == nil || runID == 0 {
		return
	}
	if err := r.History.FinishRun(runID, s.Successful, s.Failed, s.Cancelled); err != nil {
		r.logger.Warn("Failed to update run stats", "run_id", runID, "error", err)
	}
}
