package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "snap", []byte("one")))
	got, err := s.Load(ctx, "snap")
	require.NoError(t, err)
	require.Equal(t, []byte("one"), got)

	require.NoError(t, s.Save(ctx, "snap", []byte("two")))
	got, err = s.Load(ctx, "snap")
	require.NoError(t, err)
	require.Equal(t, []byte("two"), got)

	require.NoError(t, s.Delete(ctx, "snap"))
	_, err = s.Load(ctx, "snap")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, "snap"))
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := New(Options{Backend: File, Workdir: dir})
	require.NoError(t, err)
	exerciseStore(t, s)

	fs := s.(*FileStore)
	require.NoError(t, fs.Save(context.Background(), "a", []byte("x")))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger")

	_, err = fs.Load(context.Background(), "../escape")
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s, err := New(Options{Backend: Memory})
	require.NoError(t, err)
	exerciseStore(t, s)

	require.NoError(t, s.Close())
	_, err = s.Load(context.Background(), "x")
	require.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Save(context.Background(), "k", buf))
	buf[0] = 'z'
	got, err := s.Load(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestParseBackend(t *testing.T) {
	for _, b := range []Backend{File, Memory, Redis} {
		got, err := ParseBackend(b.String())
		require.NoError(t, err)
		require.Equal(t, b, got)
	}
	_, err := ParseBackend("tape")
	require.ErrorIs(t, err, ErrUnknownBackend)

	_, err = New(Options{})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

// fakeRedis serves commands from a map and can fail the first few calls.
type fakeRedis struct {
	data     map[string][]byte
	failures int
	calls    int
	closed   bool
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string][]byte{}} }

func (f *fakeRedis) fail() error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset by peer")
	}
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if err := f.fail(); err != nil {
		return redis.NewStringResult("", err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if err := f.fail(); err != nil {
		return redis.NewStatusResult("", err)
	}
	f.data[key] = append([]byte(nil), value.([]byte)...)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if err := f.fail(); err != nil {
		return redis.NewIntResult(0, err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	fake := newFakeRedis()
	s := NewRedisStoreWithClient(fake, Options{KeyPrefix: "novarel:"})
	exerciseStore(t, s)

	require.NoError(t, s.Save(context.Background(), "snap", []byte("v")))
	require.Contains(t, fake.data, "novarel:snap")

	require.NoError(t, s.Close())
	require.True(t, fake.closed)
}

func TestRedisStore_RetriesTransientErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.failures = 2
	s := NewRedisStoreWithClient(fake, Options{MaxRetries: 3, RetryBase: time.Millisecond})

	require.NoError(t, s.Save(context.Background(), "k", []byte("v")))
	require.Equal(t, 3, fake.calls)

	fake.failures = 10
	err := s.Save(context.Background(), "k", []byte("w"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")
}

func TestRedisStore_NotFoundIsNotRetried(t *testing.T) {
	fake := newFakeRedis()
	s := NewRedisStoreWithClient(fake, Options{MaxRetries: 5, RetryBase: time.Millisecond})
	_, err := s.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, fake.calls)
}
