// Package lister turns an archive index page into an ordered list of files.
package lister

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/archive-downloader/models"
	"github.com/dtnitsch/archive-downloader/pkg/fetcher"
	"github.com/dtnitsch/archive-downloader/pkg/storage"
)

const (
	// ParentDirHref is the index page's link back to the parent directory.
	ParentDirHref = "../"
	// ViewContentsTag marks "expand archive contents" links, which are not files.
	ViewContentsTag = "View Contents"
	// ThumbnailMarker appears in the names of derived preview images.
	ThumbnailMarker = "_thumb."
)

// Lister binds the shared client handle to a run configuration.
type Lister struct {
	fetcher *fetcher.Fetcher
	cfg     *models.Config
}

func New(f *fetcher.Fetcher, cfg *models.Config) *Lister {
	return &Lister{fetcher: f, cfg: cfg}
}

func (l *Lister) List(ctx context.Context) ([]models.FileEntry, error) {
	return List(ctx, l.fetcher, l.cfg)
}

// List fetches cfg.SourceURL and returns the files it links to, filtered by
// cfg. A page that cannot be retrieved yields a *fetcher.FetchError.
func List(ctx context.Context, f *fetcher.Fetcher, cfg *models.Config) ([]models.FileEntry, error) {
	doc, err := f.GetHTML(ctx, cfg.SourceURL)
	if err != nil {
		return nil, err
	}
	return Extract(doc, cfg.SourceURL, cfg)
}

// Extract applies the link filters to an already parsed index page.
// Entries keep the order in which their anchors appear.
func Extract(doc *goquery.Document, sourceURL string, cfg *models.Config) ([]models.FileEntry, error) {
	base, err := url.Parse(strings.TrimRight(sourceURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", sourceURL, err)
	}

	files := []models.FileEntry{}
	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if skipHref(href) {
			return
		}
		if strings.Contains(s.Text(), ViewContentsTag) {
			return
		}

		filename, err := url.PathUnescape(href)
		if err != nil {
			filename = href
		}
		// Files land directly in the output directory; nested or
		// escaping names have nowhere to go.
		if !storage.ValidName(filename) {
			return
		}

		if cfg.SkipThumbnails && strings.Contains(filename, ThumbnailMarker) {
			return
		}
		if len(cfg.AllowedExtensions) > 0 && !cfg.AllowedExtensions[Extension(filename)] {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		files = append(files, models.FileEntry{
			Filename: filename,
			URL:      base.ResolveReference(ref).String(),
		})
	})

	return files, nil
}

func skipHref(href string) bool {
	return href == "" || strings.HasPrefix(href, "?") || href == ParentDirHref
}

// Extension returns the lower-cased extension of filename without the dot,
// or "" when there is none.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
}
