package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/archive-downloader/models"
	"github.com/dtnitsch/archive-downloader/pkg/db"
	"github.com/dtnitsch/archive-downloader/pkg/downloader"
	"github.com/dtnitsch/archive-downloader/pkg/fetcher"
	"github.com/dtnitsch/archive-downloader/pkg/lister"
	"github.com/dtnitsch/archive-downloader/pkg/storage"
)

type stubLister struct {
	entries []models.FileEntry
	err     error
}

func (l stubLister) List(context.Context) ([]models.FileEntry, error) {
	return l.entries, l.err
}

// stubFetcher answers from a per-file script; unknown files succeed.
type stubFetcher struct {
	results map[string]error // nil = success, errTransport = failure, other = returned error
	calls   []string
	onCall  func(name string)
}

var errTransport = errors.New("connection reset by peer")

func (f *stubFetcher) Download(ctx context.Context, e models.FileEntry) (models.DownloadOutcome, error) {
	f.calls = append(f.calls, e.Filename)
	if f.onCall != nil {
		f.onCall(e.Filename)
	}
	outcome := models.DownloadOutcome{Filename: e.Filename, URL: e.URL}
	err := f.results[e.Filename]
	switch {
	case err == nil:
		outcome.Succeeded = true
		return outcome, nil
	case errors.Is(err, errTransport):
		outcome.Error = err.Error()
		return outcome, nil
	default:
		return outcome, err
	}
}

func entries(names ...string) []models.FileEntry {
	out := make([]models.FileEntry, len(names))
	for i, n := range names {
		out[i] = models.FileEntry{Filename: n, URL: "https://archive.example/" + n}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(outDir string) *models.Config {
	cfg := models.DefaultConfig()
	cfg.OutputDir = outDir
	return cfg
}

func TestRunCountsOutcomes(t *testing.T) {
	f := &stubFetcher{results: map[string]error{"b.iso": errTransport}}
	var out bytes.Buffer
	r := NewRunner(stubLister{entries: entries("a.iso", "b.iso", "c.iso")}, f, testConfig(t.TempDir()), &out, testLogger())

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := Summary{Successful: 2, Failed: 1, Total: 3}
	if summary != want {
		t.Errorf("Run() summary = %+v, want %+v", summary, want)
	}
	if strings.Join(f.calls, ",") != "a.iso,b.iso,c.iso" {
		t.Errorf("fetch order = %v, want listing order", f.calls)
	}
	for _, line := range []string{"Successful: 2", "Failed: 1", "Total: 3", "[2/3] Downloading: b.iso"} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("output missing %q", line)
		}
	}
}

func TestRunListingErrorIsFatal(t *testing.T) {
	listErr := &fetcher.FetchError{URL: "https://archive.example/", StatusCode: http.StatusNotFound}
	f := &stubFetcher{}
	var out bytes.Buffer
	r := NewRunner(stubLister{err: listErr}, f, testConfig(t.TempDir()), &out, testLogger())

	_, err := r.Run(context.Background())
	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Run() error = %v, want *fetcher.FetchError", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("fetcher called %d times after listing failure", len(f.calls))
	}
	if strings.Contains(out.String(), "Total:") {
		t.Error("summary printed after listing failure")
	}
}

func TestRunCancelledDuringFile(t *testing.T) {
	f := &stubFetcher{results: map[string]error{"b.iso": context.Canceled}}
	var out bytes.Buffer
	r := NewRunner(stubLister{entries: entries("a.iso", "b.iso", "c.iso")}, f, testConfig(t.TempDir()), &out, testLogger())

	summary, err := r.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	want := Summary{Successful: 1, Failed: 0, Total: 3, Remaining: 2, Cancelled: true}
	if summary != want {
		t.Errorf("Run() summary = %+v, want %+v", summary, want)
	}
	if len(f.calls) != 2 {
		t.Errorf("fetcher called %d times, want 2", len(f.calls))
	}
	if !strings.Contains(out.String(), "Remaining: 2 (including the interrupted file)") {
		t.Errorf("output missing remaining count:\n%s", out.String())
	}
}

func TestRunCancelledBetweenFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &stubFetcher{onCall: func(name string) {
		if name == "a.iso" {
			cancel()
		}
	}}
	r := NewRunner(stubLister{entries: entries("a.iso", "b.iso", "c.iso")}, f, testConfig(t.TempDir()), io.Discard, testLogger())

	summary, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("fetcher called %d times, want 1", len(f.calls))
	}
	if summary.Successful != 1 || summary.Remaining != 2 {
		t.Errorf("Run() summary = %+v, want 1 successful and 2 remaining", summary)
	}
}

func TestRunEmptyListing(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(stubLister{}, &stubFetcher{}, testConfig(t.TempDir()), &out, testLogger())

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("summary.Total = %d, want 0", summary.Total)
	}
	if !strings.Contains(out.String(), "No files found") {
		t.Error("output missing empty listing notice")
	}
}

func TestRunRecordsHistory(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	defer database.Close()

	f := &stubFetcher{results: map[string]error{"b.iso": errTransport}}
	r := NewRunner(stubLister{entries: entries("a.iso", "b.iso")}, f, testConfig(t.TempDir()), io.Discard, testLogger())
	r.History = database

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	runs, err := database.ListRuns(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns() = %v, %v; want one run", runs, err)
	}
	if runs[0].SuccessCount != 1 || runs[0].FailedCount != 1 || runs[0].TotalCount != 2 {
		t.Errorf("run = %+v, want 1 success, 1 failed, 2 total", runs[0])
	}
	files, err := database.GetRunFiles(runs[0].RunID)
	if err != nil || len(files) != 2 {
		t.Fatalf("GetRunFiles() = %v, %v; want two files", files, err)
	}
	if files[1].Status != db.StatusFailed {
		t.Errorf("files[1].Status = %q, want %q", files[1].Status, db.StatusFailed)
	}
}

// TestRunEndToEnd wires the real lister and downloader against a test
// archive where the second file's connection drops.
func TestRunEndToEnd(t *testing.T) {
	files := map[string][]byte{
		"a.iso": bytes.Repeat([]byte("a"), 3000),
		"c.iso": bytes.Repeat([]byte("c"), 1200),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/pack/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/pack/")
		switch {
		case name == "":
			fmt.Fprint(w, `<a href="?C=N">Name</a><a href="../">Parent</a>`+
				`<a href="a.iso">a.iso</a><a href="b.iso">b.iso</a><a href="b_thumb.jpg">thumb</a><a href="c.iso">c.iso</a>`)
		case name == "b.iso":
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
		default:
			data, ok := files[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(filepath.Join(t.TempDir(), "nested", "downloads"))
	cfg.SourceURL = srv.URL + "/pack/"
	cfg.SetExtensions([]string{"iso"})
	cfg.SkipThumbnails = true

	store, err := storage.New(cfg.OutputDir)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	f := fetcher.NewFetcher(5*time.Second, "adl-test")
	d := downloader.NewDownloader(f, store, testLogger())
	r := NewRunner(lister.New(f, cfg), d, cfg, io.Discard, testLogger())

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := Summary{Successful: 2, Failed: 1, Total: 3}
	if summary != want {
		t.Errorf("Run() summary = %+v, want %+v", summary, want)
	}
	for name, data := range files {
		stats, err := store.GetFileStats(name)
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if stats.SizeBytes != int64(len(data)) {
			t.Errorf("%s size = %d, want %d", name, stats.SizeBytes, len(data))
		}
	}
}
