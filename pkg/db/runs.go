package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dtnitsch/archive-downloader/models"
)

// Run status values stored in run_files.status.
const (
	StatusSuccess   = "success"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run represents one download invocation
type Run struct {
	RunID        int64      `json:"run_id" yaml:"run_id"`
	SourceURL    string     `json:"source_url" yaml:"source_url"`
	OutputDir    string     `json:"output_dir" yaml:"output_dir"`
	Extensions   string     `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	SkipThumbs   bool       `json:"skip_thumbs" yaml:"skip_thumbs"`
	StartedAt    time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	TotalCount   int        `json:"total" yaml:"total"`
	SuccessCount int        `json:"successful" yaml:"successful"`
	FailedCount  int        `json:"failed" yaml:"failed"`
	Cancelled    bool       `json:"cancelled" yaml:"cancelled"`
}

// RunFile is the recorded outcome of one file within a run
type RunFile struct {
	Position     int    `json:"position" yaml:"position"`
	Filename     string `json:"filename" yaml:"filename"`
	URL          string `json:"url" yaml:"url"`
	Status       string `json:"status" yaml:"status"`
	Resumed      bool   `json:"resumed" yaml:"resumed"`
	BytesWritten int64  `json:"bytes_written" yaml:"bytes_written"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CreateRun inserts a new run for cfg and returns its ID.
func (db *DB) CreateRun(cfg *models.Config, total int) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (source_url, output_dir, extensions, skip_thumbs, total_count)
		VALUES (?, ?, ?, ?, ?)
	`, cfg.SourceURL, cfg.OutputDir, strings.Join(cfg.ExtensionList(), ","), cfg.SkipThumbnails, total)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// InsertRunFile records the outcome of the file at position (1-based).
func (db *DB) InsertRunFile(runID int64, position int, outcome models.DownloadOutcome, cancelled bool) error {
	_, err := db.Exec(`
		INSERT INTO run_files (run_id, position, filename, url, status, resumed, bytes_written, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, position, outcome.Filename, outcome.URL, OutcomeStatus(outcome, cancelled),
		outcome.Resumed, outcome.BytesWritten, outcome.Error)
	if err != nil {
		return fmt.Errorf("failed to insert run file: %w", err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (db *DB) FinishRun(runID int64, successCount, failedCount int, cancelled bool) error {
	_, err := db.Exec(`
		UPDATE runs
		SET success_count = ?, failed_count = ?, cancelled = ?, finished_at = ?
		WHERE run_id = ?
	`, successCount, failedCount, cancelled, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

const runColumns = `run_id, source_url, output_dir, extensions, skip_thumbs, started_at,
	finished_at, total_count, success_count, failed_count, cancelled`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var extensions sql.NullString
	var finished sql.NullTime
	err := row.Scan(&r.RunID, &r.SourceURL, &r.OutputDir, &extensions, &r.SkipThumbs, &r.StartedAt,
		&finished, &r.TotalCount, &r.SuccessCount, &r.FailedCount, &r.Cancelled)
	if err != nil {
		return r, err
	}
	r.Extensions = extensions.String
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY run_id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunByID retrieves a run by its ID
func (db *DB) GetRunByID(runID int64) (*Run, error) {
	r, err := scanRun(db.QueryRow("SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// GetRunFiles returns the files of a run in download order.
func (db *DB) GetRunFiles(runID int64) ([]RunFile, error) {
	rows, err := db.Query(`
		SELECT position, filename, url, status, resumed, bytes_written, error_message
		FROM run_files
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run files: %w", err)
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var f RunFile
		var errMsg sql.NullString
		if err := rows.Scan(&f.Position, &f.Filename, &f.URL, &f.Status, &f.Resumed, &f.BytesWritten, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		f.Error = errMsg.String
		files = append(files, f)
	}
	return files, rows.Err()
}

// OutcomeStatus maps an outcome to its stored status string.
func OutcomeStatus(outcome models.DownloadOutcome, cancelled bool) string {
	switch {
	case cancelled:
		return StatusCancelled
	case outcome.Skipped:
		return StatusSkipped
	case outcome.Succeeded:
		return StatusSuccess
	default:
		return StatusFailed
	}
}
