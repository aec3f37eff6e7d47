package models

// FileEntry is one downloadable file found on an index page.
type FileEntry struct {
	Filename string `json:"filename" yaml:"filename"` // URL-decoded href
	URL      string `json:"url" yaml:"url"`           // absolute
}

// DownloadOutcome records what happened to a single FileEntry.
type DownloadOutcome struct {
	Filename     string
	URL          string
	Succeeded    bool
	Skipped      bool // already complete on disk
	Resumed      bool
	BytesWritten int64
	Error        string
}
