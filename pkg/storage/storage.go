package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsafeName is returned for names that would leave the output directory
// or create a subdirectory in it.
var ErrUnsafeName = errors.New("unsafe file name")

// ValidName reports whether name is a plain file name that stays directly
// inside the output directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.IsLocal(name)
}

// Storage is the output directory. Partially written files in it double as
// resume checkpoints.
type Storage struct {
	dir string
}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

// New creates the output directory, including parents, if it is absent.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the output directory path.
func (s *Storage) Dir() string {
	return s.dir
}

// Path returns the location of filename directly inside the output directory.
// It does not validate filename; Open and GetFileStats do.
func (s *Storage) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

func (s *Storage) resolve(filename string) (string, error) {
	if !ValidName(filename) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, filename)
	}
	return s.Path(filename), nil
}

// ExistingSize returns the size of filename, or 0 if it does not exist.
func (s *Storage) ExistingSize(filename string) (int64, error) {
	stats, err := s.GetFileStats(filename)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return stats.SizeBytes, nil
}

// Open opens filename for writing, appending when resuming and truncating
// otherwise.
func (s *Storage) Open(filename string, appendMode bool) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	target, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(target, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	return f, nil
}

func (s *Storage) HasFile(filename string) bool {
	_, err := s.GetFileStats(filename)
	return err == nil
}

// GetFileStats returns metadata about a file using os.Stat (no I/O overhead).
func (s *Storage) GetFileStats(filename string) (*FileStats, error) {
	target, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}

	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}
