package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalSink writes artifacts under a base directory, preserving the
// relative layout (documents/<year>/, invoices/<year>/).
type LocalSink struct {
	baseDir string
}

// NewLocalSink creates a local filesystem sink rooted at baseDir.
func NewLocalSink(baseDir string) (*LocalSink, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalSink{baseDir: baseDir}, nil
}

func (s *LocalSink) Name() string { return "local" }

// Store writes data below the base directory. Paths must stay inside it.
func (s *LocalSink) Store(_ context.Context, relPath string, data []byte) error {
	if strings.Contains(relPath, "..") {
		return fmt.Errorf("refusing backup path %q", relPath)
	}
	dest := filepath.Join(s.baseDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	return nil
}
