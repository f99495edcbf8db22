// Package config loads Chronicle daemon configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config keys. Values can come from config.yaml, environment variables with
// the CHRONICLE_ prefix, or defaults.
const (
	keyDataDir       = "data_dir"
	keyLogLevel      = "log_level"
	keyRemoteBaseURL = "remote.base_url"
	keyRemoteAccess  = "remote.access_key"
	keyRemoteSecret  = "remote.secret_key"
	keyRemoteWSURL   = "remote.ws_url"
	keySyncInterval  = "sync.interval"
	keyQueueInterval = "sync.queue_interval"
	keyQueueMaxSize  = "sync.queue_max_size"
	keyQueueRetries  = "sync.queue_max_retries"
)

// Remote holds remote record store connection settings.
type Remote struct {
	BaseURL   string
	AccessKey string
	SecretKey string
	WSURL     string // change-notification endpoint; empty disables the subscriber
}

// Sync holds reconciliation scheduling settings.
type Sync struct {
	Interval      time.Duration
	QueueInterval time.Duration
	QueueMaxSize  int
	QueueRetries  int
}

// Config is the resolved daemon configuration.
type Config struct {
	DataDir  string
	LogLevel string
	Remote   Remote
	Sync     Sync
}

// Load reads configuration from configDir/config.yaml. A missing config
// file is not an error; defaults and environment variables apply.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("CHRONICLE")
	v.AutomaticEnv()

	v.SetDefault(keyDataDir, "./data")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keySyncInterval, 15*time.Minute)
	v.SetDefault(keyQueueInterval, time.Minute)
	v.SetDefault(keyQueueMaxSize, 1000)
	v.SetDefault(keyQueueRetries, 3)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		DataDir:  v.GetString(keyDataDir),
		LogLevel: v.GetString(keyLogLevel),
		Remote: Remote{
			BaseURL:   v.GetString(keyRemoteBaseURL),
			AccessKey: v.GetString(keyRemoteAccess),
			SecretKey: v.GetString(keyRemoteSecret),
			WSURL:     v.GetString(keyRemoteWSURL),
		},
		Sync: Sync{
			Interval:      v.GetDuration(keySyncInterval),
			QueueInterval: v.GetDuration(keyQueueInterval),
			QueueMaxSize:  v.GetInt(keyQueueMaxSize),
			QueueRetries:  v.GetInt(keyQueueRetries),
		},
	}

	if cfg.Sync.Interval <= 0 {
		return nil, fmt.Errorf("sync.interval must be positive, got %s", cfg.Sync.Interval)
	}

	return cfg, nil
}
