package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

// gzipMagic prefixes every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// FileStore keeps the snapshot in a single file.
//
// The file is a JSON object mapping project IDs to entry arrays. Saves go to
// a temp file in the same directory which is synced and renamed over the
// target, so a crash leaves either the old or the new snapshot.
type FileStore struct {
	path     string
	compress bool
	logger   *zap.Logger
}

// NewFileStore creates a FileStore writing to path. A leading "~/" is
// expanded to the user's home directory.
func NewFileStore(path string, compress bool, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file path required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Clean(expanded))
	if err != nil {
		return nil, fmt.Errorf("resolving snapshot path: %w", err)
	}

	return &FileStore{path: abs, compress: compress, logger: logger}, nil
}

// Path returns the absolute snapshot path.
func (f *FileStore) Path() string {
	return f.path
}

// SaveSnapshot atomically replaces the snapshot file.
func (f *FileStore) SaveSnapshot(ctx context.Context, snap vectorstore.Snapshot) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := f.encode(tmp, snap); err != nil {
		cleanup()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing snapshot: %w", err)
	}

	// Persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		if err := d.Sync(); err != nil {
			f.logger.Debug("directory sync failed", zap.String("dir", dir), zap.Error(err))
		}
		d.Close()
	}

	f.logger.Debug("snapshot saved",
		zap.String("path", f.path),
		zap.Int("vectors", snap.Count()),
		zap.Bool("compressed", f.compress),
	)
	return nil
}

func (f *FileStore) encode(w io.Writer, snap vectorstore.Snapshot) error {
	if snap == nil {
		snap = vectorstore.Snapshot{}
	}
	if !f.compress {
		return json.NewEncoder(w).Encode(snap)
	}

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// LoadSnapshot reads the snapshot file. Compressed and plain files are both
// accepted regardless of the compress setting.
func (f *FileStore) LoadSnapshot(ctx context.Context) (vectorstore.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.logger.Info("no snapshot found, starting empty", zap.String("path", f.path))
		return vectorstore.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return vectorstore.Snapshot{}, nil
	}

	var r io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening compressed snapshot: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var snap vectorstore.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap == nil {
		snap = vectorstore.Snapshot{}
	}
	return snap, nil
}

// Close is a no-op; no file handle is held between saves.
func (f *FileStore) Close() error {
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
