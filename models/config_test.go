package models

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeExtensions(t *testing.T) {
	tests := []struct {
		name  string
		types []string
		want  []string
	}{
		{name: "empty", types: nil, want: []string{}},
		{name: "dots and case", types: []string{".ISO", "Bin"}, want: []string{"bin", "iso"}},
		{name: "comma separated", types: []string{"iso, jpg", ".xml"}, want: []string{"iso", "jpg", "xml"}},
		{name: "blank entries dropped", types: []string{"", " , ."}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SetExtensions(tt.types)
			if got := cfg.ExtensionList(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtensionList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adl.yaml")
	content := `url: https://archive.example/download/other/
output: /tmp/iso
types: [ISO, .bin]
skip_thumbs: true
resume: false
timeout: 45s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.SourceURL != "https://archive.example/download/other/" {
		t.Errorf("SourceURL = %q", cfg.SourceURL)
	}
	if !cfg.AllowedExtensions["iso"] || !cfg.AllowedExtensions["bin"] || len(cfg.AllowedExtensions) != 2 {
		t.Errorf("AllowedExtensions = %v, want iso and bin", cfg.AllowedExtensions)
	}
	if !cfg.SkipThumbnails || cfg.Resume {
		t.Errorf("SkipThumbnails=%v Resume=%v, want true false", cfg.SkipThumbnails, cfg.Resume)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", cfg.UserAgent)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadConfig() error = nil, want error")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{SourceURL: "https://archive.example/"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.OutputDir != DefaultOutputDir || cfg.Timeout != DefaultTimeout || cfg.UserAgent != DefaultUserAgent {
		t.Errorf("Validate() did not fill defaults: %+v", cfg)
	}
	if cfg.AllowedExtensions == nil {
		t.Error("AllowedExtensions = nil after Validate")
	}

	if err := (&Config{}).Validate(); err == nil {
		t.Error("Validate() with empty url error = nil, want error")
	}
}
