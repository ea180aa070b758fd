package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

var _ Store = (*FileStore)(nil)

// FileStore keeps one file per key under Dir. Saves go through a temp file
// and a rename so a crash leaves either the old or the new value.
type FileStore struct {
	Dir   string
	retry retrier
}

func NewFileStore(dir string, r retrier) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("storage: workdir %s: %w", dir, err)
	}
	return &FileStore{Dir: dir, retry: r}, nil
}

func (fs *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(fs.Dir, key), nil
}

func (fs *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	p, err := fs.path(key)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = fs.retry.do(ctx, "load", func(context.Context) error {
		var rerr error
		data, rerr = os.ReadFile(p)
		return rerr
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

func (fs *FileStore) Save(ctx context.Context, key string, data []byte) error {
	p, err := fs.path(key)
	if err != nil {
		return err
	}
	return fs.retry.do(ctx, "save", func(context.Context) error {
		return writeAtomic(p, data)
	})
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, fileMode); err != nil {
		return err
	}
	return os.Rename(name, path)
}

func (fs *FileStore) Delete(ctx context.Context, key string) error {
	p, err := fs.path(key)
	if err != nil {
		return err
	}
	err = fs.retry.do(ctx, "delete", func(context.Context) error { return os.Remove(p) })
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (fs *FileStore) Close() error { return nil }
