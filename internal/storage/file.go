package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/fabler/pkg/storage"
)

const (
	DefaultSaveDir = ".saves"
	saveExt        = ".json"
)

// FileStore writes each save to <dir>/<name>.json.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

var _ storage.Storage = (*FileStore)(nil)

func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		dir = DefaultSaveDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+saveExt)
}

func (f *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("save directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("save directory %s is not a directory", f.dir)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}

// SaveSession writes through a temp file and a rename so a crash never
// leaves a truncated save behind.
func (f *FileStore) SaveSession(ctx context.Context, name string, data []byte) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		f.logger.Error("Failed to save session", "name", name, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (f *FileStore) LoadSession(ctx context.Context, name string) ([]byte, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, storage.ErrNotFound
	}
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}

func (f *FileStore) DeleteSession(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return storage.ErrNotFound
	}
	if err := os.Remove(f.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (f *FileStore) ListSessions(ctx context.Context) ([]storage.SaveInfo, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]storage.SaveInfo, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), saveExt)
		if !ok || e.IsDir() || storage.ValidateName(name) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			f.logger.Warn("Skipping unreadable save", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, storage.SaveInfo{
			Name:      name,
			Size:      int(info.Size()),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	storage.SortSaves(out)
	return out, nil
}
