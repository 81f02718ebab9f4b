package xmind

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/s3conform/pkg/domain"
)

// ReadFile decodes every sheet of the archive at path.
func ReadFile(path string) ([]*domain.Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	sheets, err := Decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sheets, nil
}

// Decode reads the sheets stored in content.json.
func Decode(r io.ReaderAt, size int64) ([]*domain.Sheet, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("not an xmind archive: %w", err)
	}
	f, err := zr.Open(contentEntry)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", contentEntry, err)
	}
	defer f.Close()

	var content []*sheet
	if err := json.NewDecoder(f).Decode(&content); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", contentEntry, err)
	}
	out := make([]*domain.Sheet, 0, len(content))
	for _, s := range content {
		if s == nil || s.RootTopic == nil {
			continue
		}
		out = append(out, fromWire(s))
	}
	return out, nil
}
