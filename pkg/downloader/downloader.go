// Package downloader streams a single listed file to disk, resuming from a
// partial file when the server honors byte ranges.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dtnitsch/archive-downloader/models"
	"github.com/dtnitsch/archive-downloader/pkg/fetcher"
	"github.com/dtnitsch/archive-downloader/pkg/storage"
)

const ChunkSize = 8192

// Downloader fetches entries into a Storage one at a time.
type Downloader struct {
	Resume   bool
	Progress ProgressFunc

	fetcher *fetcher.Fetcher
	storage *storage.Storage
	logger  *slog.Logger
}

func NewDownloader(f *fetcher.Fetcher, s *storage.Storage, logger *slog.Logger) *Downloader {
	return &Downloader{
		Resume:   true,
		Progress: NoProgress(),
		fetcher:  f,
		storage:  s,
		logger:   logger,
	}
}

// Fetch downloads entry and reports whether it succeeded. Transport and disk
// failures are logged and reported as false; the returned error is non-nil
// only when ctx was cancelled.
func (d *Downloader) Fetch(ctx context.Context, entry models.FileEntry) (bool, error) {
	outcome, err := d.Download(ctx, entry)
	return outcome.Succeeded, err
}

// Download is Fetch with the full outcome of the attempt.
func (d *Downloader) Download(ctx context.Context, entry models.FileEntry) (models.DownloadOutcome, error) {
	outcome := models.DownloadOutcome{Filename: entry.Filename, URL: entry.URL}
	logger := d.logger.With("file", entry.Filename, "url", entry.URL)

	existing, err := d.storage.ExistingSize(entry.Filename)
	if err != nil {
		return d.fail(ctx, logger, outcome, fmt.Errorf("failed to stat target: %w", err))
	}
	var offset int64
	if d.Resume && existing > 0 {
		offset = existing
	}

	resp, err := d.fetcher.Get(ctx, entry.URL, offset)
	if err != nil {
		return d.fail(ctx, logger, outcome, err)
	}

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		resp.Body.Close()
		if size, ok := completeLength(resp.Header.Get("Content-Range")); ok && offset > 0 && size == offset {
			logger.Info("File already downloaded", "size", offset)
			outcome.Succeeded, outcome.Skipped = true, true
			return outcome, nil
		}
		logger.Info("Resume not supported, starting fresh", "offset", offset)
		offset = 0
		resp, err = d.fetcher.Get(ctx, entry.URL, 0)
		if err != nil {
			return d.fail(ctx, logger, outcome, err)
		}
	}
	defer resp.Body.Close()

	var total int64 = -1
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		if start, ok := contentRangeStart(resp.Header.Get("Content-Range")); ok && start != offset {
			if start != 0 {
				return d.fail(ctx, logger, outcome, fmt.Errorf("unexpected content range %q for offset %d", resp.Header.Get("Content-Range"), offset))
			}
			// The body starts at byte 0 despite the requested offset.
			logger.Warn("Server returned range from start, restarting download", "offset", offset)
			offset = 0
		}
		if resp.ContentLength >= 0 {
			total = resp.ContentLength + offset
		}
		if offset > 0 {
			logger.Info("Resuming download", "offset", offset)
			outcome.Resumed = true
		}
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		total = resp.ContentLength
		if offset > 0 && total >= 0 && offset >= total {
			break
		}
		if offset > 0 {
			// The range header was ignored and the body starts at byte 0.
			logger.Warn("Server ignored range request, restarting download", "offset", offset, "status_code", resp.StatusCode)
			offset = 0
		}
	default:
		return d.fail(ctx, logger, outcome, fmt.Errorf("unexpected status: %s", resp.Status))
	}

	if offset > 0 && total >= 0 && offset >= total {
		logger.Info("File already downloaded", "size", offset)
		outcome.Succeeded, outcome.Skipped = true, true
		return outcome, nil
	}

	file, err := d.storage.Open(entry.Filename, offset > 0)
	if err != nil {
		return d.fail(ctx, logger, outcome, err)
	}

	bar := d.Progress(entry.Filename, total, offset)
	written, copyErr := copyChunks(ctx, file, resp.Body, bar)
	_ = bar.Finish()
	closeErr := file.Close()
	outcome.BytesWritten = written

	if copyErr != nil {
		return d.fail(ctx, logger, outcome, copyErr)
	}
	if closeErr != nil {
		return d.fail(ctx, logger, outcome, fmt.Errorf("error closing file: %w", closeErr))
	}

	logger.Info("Download complete", "bytes", written, "resumed", outcome.Resumed)
	outcome.Succeeded = true
	return outcome, nil
}

// fail records err on the outcome. Cancellation is returned to the caller,
// anything else is swallowed after logging.
func (d *Downloader) fail(ctx context.Context, logger *slog.Logger, outcome models.DownloadOutcome, err error) (models.DownloadOutcome, error) {
	outcome.Succeeded = false
	outcome.Error = err.Error()
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn("Download interrupted", "bytes", outcome.BytesWritten)
		return outcome, ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return outcome, err
	}
	logger.Error("Error downloading file", "error", err)
	return outcome, nil
}

// copyChunks streams src to dst in ChunkSize pieces, checking ctx between
// chunks so an interrupt leaves a valid partial file behind.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, bar Progress) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("failed to write file: %w", err)
			}
			written += int64(n)
			_ = bar.Add64(int64(n))
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("failed to read response body: %w", readErr)
		}
	}
}

// completeLength extracts N from a "bytes */N" Content-Range header.
func completeLength(contentRange string) (int64, bool) {
	rest, ok := strings.CutPrefix(contentRange, "bytes */")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// contentRangeStart extracts S from a "bytes S-E/N" Content-Range header.
func contentRangeStart(contentRange string) (int64, bool) {
	rest, ok := strings.CutPrefix(contentRange, "bytes ")
	if !ok {
		return 0, false
	}
	first, _, ok := strings.Cut(strings.TrimSpace(rest), "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
