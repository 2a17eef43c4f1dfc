// Package local implements a content store that writes one flat file per URL.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/sitecrawler/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the directory files are written into.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes fetched content to BaseDir using storage.FileName.
type Store struct {
	baseDir string
}

// New creates the base directory if needed and verifies it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory %s is not a directory", cfg.BaseDir)
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// Path returns where Save writes name.
func (s *Store) Path(name, contentType string) (string, error) {
	file := storage.FileName(name, contentType)
	if strings.TrimSpace(file) == "" || file == "." || file == ".." || strings.ContainsRune(file, filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q for %q", file, name)
	}
	full := filepath.Join(s.baseDir, file)
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected for %q", name)
	}
	return full, nil
}

// Save writes data, replacing any existing file of the same name.
func (s *Store) Save(_ context.Context, name string, data []byte, contentType string) error {
	full, err := s.Path(name, contentType)
	if err != nil {
		return err
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", full, err)
	}
	return nil
}
