package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	jimmy "github.com/st-keller/jimmy-client"
	"github.com/st-keller/jimmy-client/cache"
)

const (
	defaultBaseURL        = "https://askjimmy.example.com"
	defaultCache          = cache.KindFile
	defaultLogLevel       = "info"
	defaultRequestTimeout = time.Duration(0) // no timeout
)

// appConfig is the effective CLI configuration.
type appConfig struct {
	BaseURL        string        `mapstructure:"base-url" yaml:"base-url"`
	CertPath       string        `mapstructure:"cert" yaml:"cert,omitempty"`
	KeyPath        string        `mapstructure:"key" yaml:"key,omitempty"`
	CAPath         string        `mapstructure:"ca" yaml:"ca,omitempty"`
	RequestTimeout time.Duration `mapstructure:"request-timeout" yaml:"-"` // see MarshalYAML
	Cache          string        `mapstructure:"cache" yaml:"cache"`
	CachePath      string        `mapstructure:"cache-path" yaml:"cache-path,omitempty"`
	RedisURL       string        `mapstructure:"redis-url" yaml:"redis-url,omitempty"`
	RedisKey       string        `mapstructure:"redis-key" yaml:"redis-key,omitempty"`
	LogFile        string        `mapstructure:"log-file" yaml:"log-file,omitempty"`
	LogLevel       string        `mapstructure:"log-level" yaml:"log-level"`
	Plain          bool          `mapstructure:"plain" yaml:"plain"`
	ConfigPath     string        `mapstructure:"-" yaml:"-"` // not from config file
}

// defaultConfigPath is $HOME/.config/jimmy/config.yaml.
func defaultConfigPath(home string) string {
	return filepath.Join(home, ".config", "jimmy", "config.yaml")
}

// defaultCachePath is $HOME/.cache/jimmy/questions.json.
func defaultCachePath(home string) string {
	return filepath.Join(home, ".cache", "jimmy", "questions.json")
}

// loadConfig merges defaults, the config file, JIMMY_* env vars and flags,
// in increasing precedence.
func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("JIMMY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("base-url", defaultBaseURL)
	v.SetDefault("cert", "")
	v.SetDefault("key", "")
	v.SetDefault("ca", "")
	v.SetDefault("request-timeout", defaultRequestTimeout)
	v.SetDefault("cache", defaultCache)
	v.SetDefault("cache-path", defaultCachePath(home))
	v.SetDefault("redis-url", "")
	v.SetDefault("redis-key", cache.DefaultRedisKey)
	v.SetDefault("log-file", "")
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("plain", false)

	if flags != nil {
		for _, key := range configKeys {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, fmt.Errorf("binding flag %s: %w", key, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(defaultConfigPath(home))
	}

	fileRead := true
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		fileRead = false
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if fileRead {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.CachePath, &cfg.CertPath, &cfg.KeyPath, &cfg.CAPath, &cfg.LogFile} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configKeys are the keys that may also be set by a flag of the same name.
var configKeys = []string{
	"base-url", "cert", "key", "ca", "request-timeout",
	"cache", "cache-path", "redis-url", "redis-key",
	"log-file", "log-level", "plain",
}

// MarshalYAML prints the timeout as a duration string.
func (c appConfig) MarshalYAML() (interface{}, error) {
	type plain appConfig
	return struct {
		plain          `yaml:",inline"`
		RequestTimeout string `yaml:"request-timeout"`
	}{plain(c), c.RequestTimeout.String()}, nil
}

func (c appConfig) validate() error {
	switch c.Cache {
	case cache.KindMemory, cache.KindFile, cache.KindRedis:
	default:
		return fmt.Errorf("invalid cache: %q (want memory, file or redis)", c.Cache)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("invalid request-timeout: %s", c.RequestTimeout)
	}
	return nil
}

func (c appConfig) cacheOptions() cache.Options {
	return cache.Options{
		Kind:     c.Cache,
		Path:     c.CachePath,
		RedisURL: c.RedisURL,
		RedisKey: c.RedisKey,
	}
}

// clientConfig maps the CLI config onto the library config.
func (c appConfig) clientConfig(store cache.Store, logger *slog.Logger) jimmy.Config {
	return jimmy.Config{
		BaseURL:        c.BaseURL,
		ClientName:     "jimmy-cli",
		Version:        version,
		CertPath:       c.CertPath,
		KeyPath:        c.KeyPath,
		CAPath:         c.CAPath,
		RequestTimeout: c.RequestTimeout,
		Cache:          store,
		Logger:         logger,
	}
}

// openCache opens the configured question-text cache.
func (c appConfig) openCache(ctx context.Context) (cache.Store, error) {
	store, err := cache.Open(ctx, c.cacheOptions())
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", c.Cache, err)
	}
	return store, nil
}
