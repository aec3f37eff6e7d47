package list

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dtnitsch/archive-downloader/internal/common"
	"github.com/dtnitsch/archive-downloader/models"
	"github.com/dtnitsch/archive-downloader/pkg/fetcher"
	"github.com/dtnitsch/archive-downloader/pkg/lister"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Output is the machine-readable shape of a listing.
type Output struct {
	Source     string             `json:"source" yaml:"source"`
	Extensions []string           `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	SkipThumbs bool               `json:"skip_thumbs" yaml:"skip_thumbs"`
	Count      int                `json:"count" yaml:"count"`
	Files      []models.FileEntry `json:"files" yaml:"files"`
}

// ListAction prints what a download run would fetch without writing files.
func ListAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg, err := common.ConfigFromContext(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	f := fetcher.NewFetcher(cfg.Timeout, cfg.UserAgent)
	entries, err := lister.List(c.Context, f, cfg)
	if err != nil {
		logger.Error("failed to list files", "url", cfg.SourceURL, "error", err)
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	out := Output{
		Source:     cfg.SourceURL,
		Extensions: cfg.ExtensionList(),
		SkipThumbs: cfg.SkipThumbnails,
		Count:      len(entries),
		Files:      entries,
	}
	if err := Write(os.Stdout, out, c.String("format")); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}

// Write renders out as text, json or yaml.
func Write(w io.Writer, out Output, format string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal listing: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal listing: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "", "text":
		for i, e := range out.Files {
			fmt.Fprintf(w, "%4d  %s\n      %s\n", i+1, e.Filename, e.URL)
		}
		_, err := fmt.Fprintf(w, "\nFound %d files\n", out.Count)
		return err
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
