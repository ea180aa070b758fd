package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("storage: key not found")
	ErrUnknownBackend = errors.New("storage: unknown backend")
	ErrClosed         = errors.New("storage: store is closed")
)

// Store keeps opaque blobs by key. Save replaces the whole value.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Backend int

const (
	File Backend = iota + 1
	Memory
	Redis
)

func (b Backend) String() string {
	switch b {
	case File:
		return "file"
	case Memory:
		return "memory"
	case Redis:
		return "redis"
	default:
		return "unknown"
	}
}

func ParseBackend(s string) (Backend, error) {
	switch s {
	case "file", "":
		return File, nil
	case "memory":
		return Memory, nil
	case "redis":
		return Redis, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownBackend, s)
	}
}

type Options struct {
	Backend Backend
	Workdir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	// MaxRetries bounds retries of transient I/O failures. Zero disables them.
	MaxRetries uint64
	RetryBase  time.Duration
}

func New(opts Options) (Store, error) {
	switch opts.Backend {
	case File:
		return NewFileStore(opts.Workdir, opts.retrier())
	case Memory:
		return NewMemoryStore(), nil
	case Redis:
		return NewRedisStore(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

func (o Options) retrier() retrier {
	base := o.RetryBase
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	return retrier{max: o.MaxRetries, base: base}
}
