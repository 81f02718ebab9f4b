package xmind_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/s3conform/pkg/adapters/xmind"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSheets() []*domain.Sheet {
	return []*domain.Sheet{{
		Title: "s3",
		Root: &domain.TopicNode{
			Title: "S3-Tests",
			Notes: "### Suite Summary ###",
			Children: []*domain.TopicNode{{
				Title:  domain.BucketSkipped,
				Folded: true,
				Style:  map[string]string{"svg:fill": "#D0D0D0"},
				Children: []*domain.TopicNode{{
					Title:   "CreateBucket",
					Labels:  []string{"admin-200"},
					Markers: []string{"symbol-exclam"},
					Notes:   `{"operation": "CreateBucket"}`,
				}},
			}},
		},
	}}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, xmind.Encode(&buf, sampleSheets()))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"content.json", "manifest.json", "metadata.json"}, names)

	sheets, err := xmind.Decode(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, sampleSheets()[0], sheets[0])
}

func TestDecode_Invalid(t *testing.T) {
	_, err := xmind.Decode(bytes.NewReader([]byte("nope")), 4)
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("other.json")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = xmind.Decode(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.ErrorContains(t, err, "content.json")
}

func TestDetermineFilePath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "reports", "run.xmind")

	first, err := xmind.DetermineFilePath(target)
	require.NoError(t, err)
	assert.Equal(t, target, first)
	require.NoError(t, os.WriteFile(first, nil, 0o644))

	second, err := xmind.DetermineFilePath(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "run_1.xmind"), second)
	require.NoError(t, os.WriteFile(second, nil, 0o644))

	third, err := xmind.DetermineFilePath(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "run_2.xmind"), third)

	noExt, err := xmind.DetermineFilePath(filepath.Join(dir, "plain"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plain.xmind"), noExt)
}

func TestSink_WriteNeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xmind")
	sink := xmind.NewSink(path, xmind.WithCreator("tests", "1"))

	first, err := sink.Write(context.Background(), sampleSheets())
	require.NoError(t, err)
	second, err := sink.Write(context.Background(), sampleSheets())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	sheets, err := xmind.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "S3-Tests", sheets[0].Root.Title)
}
