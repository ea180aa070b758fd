package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/novarel/internal/storage"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "novarel", cfg.AppName)
	require.Equal(t, "file", cfg.Storage.Backend)
	require.Equal(t, "novarel.snap", cfg.Storage.Snapshot)
	require.Equal(t, "novarel.yaml", cfg.Storage.Script)
	require.Equal(t, uint64(3), cfg.Redis.MaxRetries)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novarel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_name: shop
storage:
  backend: redis
  workdir: /tmp/shop
redis:
  addr: cache:6380
  db: 2
  key_prefix: "shop:"
log:
  level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "shop", cfg.AppName)
	require.Equal(t, "novarel.snap", cfg.Storage.Snapshot)

	opts, err := cfg.StoreOptions()
	require.NoError(t, err)
	require.Equal(t, storage.Redis, opts.Backend)
	require.Equal(t, "cache:6380", opts.RedisAddr)
	require.Equal(t, 2, opts.RedisDB)
	require.Equal(t, "shop:", opts.KeyPrefix)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("NOVAREL_STORAGE_BACKEND", "memory")
	t.Setenv("NOVAREL_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("NOVAREL_STORAGE_BACKEND", "tape")
	_, err = LoadConfig("")
	require.ErrorIs(t, err, storage.ErrUnknownBackend)
}
