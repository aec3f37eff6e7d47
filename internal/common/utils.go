package common

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/dtnitsch/archive-downloader/models"
	"github.com/urfave/cli/v2"
)

// NewLogger returns the JSON stderr logger used by every command.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// ConfigFromContext builds the run configuration: defaults, then the YAML
// file given by --config, then any flag set explicitly on the command line.
func ConfigFromContext(c *cli.Context) (*models.Config, error) {
	cfg := models.DefaultConfig()
	if c.IsSet("config") {
		loaded, err := models.LoadConfig(c.String("config"))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("url") {
		cfg.SourceURL = SanitizeURL(c.String("url"))
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}
	if c.IsSet("types") {
		cfg.SetExtensions(c.StringSlice("types"))
	}
	if c.IsSet("skip-thumbs") {
		cfg.SkipThumbnails = c.Bool("skip-thumbs")
	}
	if c.IsSet("no-resume") {
		cfg.Resume = !c.Bool("no-resume")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}
	if c.IsSet("history-db") {
		cfg.HistoryDB = c.String("history-db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateURL(cfg.SourceURL); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SanitizeURL trims whitespace and stray quotes left over from copy-paste.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)
	for _, char := range []string{"\"", "'", "<", ">"} {
		cleaned = strings.TrimPrefix(cleaned, char)
		cleaned = strings.TrimSuffix(cleaned, char)
	}
	return strings.TrimSpace(cleaned)
}

// ValidateURL rejects anything that is not an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return nil
}

// PrintBanner writes the run header shown before listing starts.
func PrintBanner(w io.Writer, title string, cfg *models.Config) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Source: %s\n", cfg.SourceURL)
	fmt.Fprintf(w, "Output: %s\n", cfg.OutputDir)
	if len(cfg.AllowedExtensions) > 0 {
		fmt.Fprintf(w, "File types: %s\n", strings.Join(cfg.ExtensionList(), ", "))
	}
	if cfg.SkipThumbnails {
		fmt.Fprintln(w, "Skipping thumbnail images")
	}
	if !cfg.Resume {
		fmt.Fprintln(w, "Resume disabled")
	}
	fmt.Fprintln(w, rule)
}
