package xmind

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is used when the configured path names a directory only.
const DefaultFileName = "aws_tests.xmind"

// DetermineFilePath returns an absolute path for a new report. An existing
// file is never overwritten: "_1", "_2", ... is appended to the base name
// until a free name is found. Missing directories are created.
func DetermineFilePath(path string) (string, error) {
	dir, file := filepath.Split(path)
	if file == "" {
		file = DefaultFileName
	}
	if dir == "" {
		dir = "."
	}
	ext := filepath.Ext(file)
	if ext == "" {
		ext = ".xmind"
		file += ext
	}
	base := strings.TrimSuffix(file, ext)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	candidate := filepath.Join(abs, file)
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = filepath.Join(abs, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
}
