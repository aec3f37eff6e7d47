package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtnitsch/archive-downloader/models"
	"github.com/urfave/cli/v2"
)

// runWithFlags parses args through a cli.App carrying the download flags and
// returns the resulting config.
func runWithFlags(t *testing.T, args ...string) (*models.Config, error) {
	t.Helper()
	var cfg *models.Config
	var cfgErr error
	app := &cli.App{
		Name: "adl-test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: models.DefaultSourceURL},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: models.DefaultOutputDir},
			&cli.StringSliceFlag{Name: "types", Aliases: []string{"t"}},
			&cli.BoolFlag{Name: "skip-thumbs"},
			&cli.BoolFlag{Name: "no-resume"},
			&cli.DurationFlag{Name: "timeout", Value: models.DefaultTimeout},
			&cli.StringFlag{Name: "user-agent", Value: models.DefaultUserAgent},
			&cli.StringFlag{Name: "config"},
			&cli.StringFlag{Name: "history-db"},
		},
		Action: func(c *cli.Context) error {
			cfg, cfgErr = ConfigFromContext(c)
			return nil
		},
	}
	if err := app.Run(append([]string{"adl-test"}, args...)); err != nil {
		t.Fatalf("app.Run() error = %v", err)
	}
	return cfg, cfgErr
}

func TestConfigFromContextDefaults(t *testing.T) {
	cfg, err := runWithFlags(t)
	if err != nil {
		t.Fatalf("ConfigFromContext() error = %v", err)
	}
	if cfg.SourceURL != models.DefaultSourceURL || cfg.OutputDir != models.DefaultOutputDir {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if !cfg.Resume || cfg.SkipThumbnails || len(cfg.AllowedExtensions) != 0 {
		t.Errorf("unexpected defaults: resume=%v skip=%v exts=%v", cfg.Resume, cfg.SkipThumbnails, cfg.AllowedExtensions)
	}
}

func TestConfigFromContextFlags(t *testing.T) {
	cfg, err := runWithFlags(t,
		"--url", " https://archive.example/download/x/ ",
		"-o", "out",
		"-t", "ISO", "-t", ".bin,jpg",
		"--skip-thumbs", "--no-resume", "--timeout", "5s")
	if err != nil {
		t.Fatalf("ConfigFromContext() error = %v", err)
	}
	if cfg.SourceURL != "https://archive.example/download/x/" {
		t.Errorf("SourceURL = %q", cfg.SourceURL)
	}
	if cfg.OutputDir != "out" {
		t.Errorf("OutputDir = %q, want out", cfg.OutputDir)
	}
	for _, ext := range []string{"iso", "bin", "jpg"} {
		if !cfg.AllowedExtensions[ext] {
			t.Errorf("AllowedExtensions missing %q: %v", ext, cfg.AllowedExtensions)
		}
	}
	if !cfg.SkipThumbnails || cfg.Resume || cfg.Timeout != 5*time.Second {
		t.Errorf("skip=%v resume=%v timeout=%v", cfg.SkipThumbnails, cfg.Resume, cfg.Timeout)
	}
}

func TestConfigFromContextFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adl.yaml")
	if err := os.WriteFile(path, []byte("output: from-file\ntypes: [xml]\nskip_thumbs: true\nresume: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := runWithFlags(t, "--config", path, "-o", "from-flag")
	if err != nil {
		t.Fatalf("ConfigFromContext() error = %v", err)
	}
	if cfg.OutputDir != "from-flag" {
		t.Errorf("OutputDir = %q, want flag to override file", cfg.OutputDir)
	}
	if !cfg.AllowedExtensions["xml"] || !cfg.SkipThumbnails {
		t.Errorf("file values lost: %+v", cfg)
	}
}

func TestConfigFromContextInvalidURL(t *testing.T) {
	if _, err := runWithFlags(t, "--url", "ftp://archive.example/"); err == nil {
		t.Error("ConfigFromContext() error = nil, want scheme error")
	}
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  https://example.com/a/  ", "https://example.com/a/"},
		{`"https://example.com/a/"`, "https://example.com/a/"},
		{"<https://example.com>", "https://example.com"},
	}
	for _, tt := range tests {
		if got := SanitizeURL(tt.in); got != tt.want {
			t.Errorf("SanitizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
