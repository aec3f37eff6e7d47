package downloader

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

const maxDescriptionLen = 50

// Progress is advanced by the number of bytes written for every chunk.
type Progress interface {
	Add64(n int64) error
	Finish() error
}

// ProgressFunc builds the indicator for one file. total is -1 when the size
// is unknown; initial is the resume offset already on disk.
type ProgressFunc func(description string, total, initial int64) Progress

// BarProgress renders a byte progress bar to w.
func BarProgress(w io.Writer) ProgressFunc {
	return func(description string, total, initial int64) Progress {
		bar := progressbar.NewOptions64(
			total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(truncateDescription(description)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(w, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		)
		if initial > 0 {
			_ = bar.Set64(initial)
		}
		return bar
	}
}

// NoProgress discards progress updates.
func NoProgress() ProgressFunc {
	return func(string, int64, int64) Progress {
		return nopProgress{}
	}
}

type nopProgress struct{}

func (nopProgress) Add64(int64) error { return nil }
func (nopProgress) Finish() error     { return nil }

func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= maxDescriptionLen {
		return s
	}
	return string(r[:maxDescriptionLen])
}
