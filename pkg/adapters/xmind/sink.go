package xmind

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/s3conform/internal/logging"
	"github.com/aretw0/s3conform/pkg/domain"
)

// Sink implements ports.ReportSink by writing an archive to disk.
type Sink struct {
	path    string
	creator string
	version string
	logger  *slog.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithCreator sets the creator recorded in metadata.json.
func WithCreator(name, version string) SinkOption {
	return func(s *Sink) {
		s.creator = name
		s.version = version
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSink creates a sink writing next to path (see DetermineFilePath).
func NewSink(path string, opts ...SinkOption) *Sink {
	s := &Sink{
		path:    path,
		creator: "s3conform",
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write stores the sheets in a fresh archive and returns its path.
func (s *Sink) Write(ctx context.Context, sheets []*domain.Sheet) (string, error) {
	path, err := DetermineFilePath(s.path)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := s.encode(f, sheets); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "xmind report written", "path", path, "sheets", len(sheets))
	return path, nil
}

// Encode writes the archive to w.
func Encode(w io.Writer, sheets []*domain.Sheet) error {
	return NewSink("").encode(w, sheets)
}

func (s *Sink) encode(w io.Writer, sheets []*domain.Sheet) error {
	content := make([]*sheet, 0, len(sheets))
	for _, sh := range sheets {
		content = append(content, toWire(sh))
	}

	zw := zip.NewWriter(w)
	entries := []struct {
		name string
		v    any
	}{
		{contentEntry, content},
		{manifestEntry, map[string]any{"file-entries": map[string]any{contentEntry: map[string]any{}, metadataEntry: map[string]any{}}}},
		{metadataEntry, map[string]any{"creator": map[string]any{"name": s.creator, "version": s.version}}},
	}
	for _, e := range entries {
		ew, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		if err := json.NewEncoder(ew).Encode(e.v); err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.name, err)
		}
	}
	return zw.Close()
}
