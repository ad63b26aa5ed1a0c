package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "videos")
	fs, err := NewFS(dir)
	require.NoError(t, err)

	ok, err := fs.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = fs.Open(ctx, 1)
	assert.ErrorIs(t, err, ErrNoData)

	payload := []byte("first payload")
	require.NoError(t, fs.Save(ctx, 1, "video/mp4", bytes.NewReader(payload), int64(len(payload))))

	ok, err = fs.Exists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	replacement := []byte("second")
	require.NoError(t, fs.Save(ctx, 1, "video/mp4", bytes.NewReader(replacement), int64(len(replacement))))

	body, ct, err := fs.Open(ctx, 1)
	require.NoError(t, err)
	defer body.Close()
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, replacement, got)
	assert.Empty(t, ct)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary upload files are cleaned up")
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestFSSaveFailureLeavesNoPayload(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)

	err = fs.Save(ctx, 3, "", brokenReader{}, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	ok, err := fs.Exists(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVideoKey(t *testing.T) {
	assert.Equal(t, "videos/42/data", VideoKey(42))
}
