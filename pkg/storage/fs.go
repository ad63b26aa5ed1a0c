package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// ErrNoData is returned by Open when a video has no stored payload.
var ErrNoData = errors.New("no video data")

// FS stores video payloads as files under a base directory: {dir}/video{id}.mpg.
type FS struct {
	dir string
}

// NewFS returns a filesystem payload store rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FS{dir: dir}, nil
}

func (s *FS) path(id int64) string {
	return filepath.Join(s.dir, "video"+strconv.FormatInt(id, 10)+".mpg")
}

// Save copies r into the video's file. The file is written under a temporary
// name and renamed, so readers never see a partial payload.
func (s *FS) Save(_ context.Context, id int64, _ string, r io.Reader, _ int64) error {
	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("copy video data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return fmt.Errorf("rename video data: %w", err)
	}
	return nil
}

// Exists reports whether the video's file exists.
func (s *FS) Exists(_ context.Context, id int64) (bool, error) {
	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Open opens the video's file. The content type is not tracked on disk.
func (s *FS) Open(_ context.Context, id int64) (io.ReadCloser, string, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNoData
		}
		return nil, "", err
	}
	return f, "", nil
}
