package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/tuannm99/novarel/internal/storage"
)

type NovarelConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Backend  string `mapstructure:"backend"`
		Workdir  string `mapstructure:"workdir"`
		Snapshot string `mapstructure:"snapshot"`
		Script   string `mapstructure:"script"`
	} `mapstructure:"storage"`

	Redis struct {
		Addr       string `mapstructure:"addr"`
		Password   string `mapstructure:"password"`
		DB         int    `mapstructure:"db"`
		KeyPrefix  string `mapstructure:"key_prefix"`
		MaxRetries uint64 `mapstructure:"max_retries"`
	} `mapstructure:"redis"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "novarel")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.snapshot", "novarel.snap")
	v.SetDefault("storage.script", "novarel.yaml")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "novarel:")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads path as YAML over the defaults. NOVAREL_* environment
// variables override both. An empty path yields the defaults.
func LoadConfig(path string) (*NovarelConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("novarel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovarelConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := storage.ParseBackend(cfg.Storage.Backend); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// StoreOptions maps the storage and redis sections onto store options.
func (c *NovarelConfig) StoreOptions() (storage.Options, error) {
	b, err := storage.ParseBackend(c.Storage.Backend)
	if err != nil {
		return storage.Options{}, err
	}
	return storage.Options{
		Backend:       b,
		Workdir:       c.Storage.Workdir,
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		KeyPrefix:     c.Redis.KeyPrefix,
		MaxRetries:    c.Redis.MaxRetries,
	}, nil
}
