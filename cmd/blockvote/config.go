package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/transport"
)

// Configuration keys, shared by flags, the config file and BLOCKVOTE_*
// environment variables.
const (
	keyHost          = "host"
	keyBasePort      = "base-port"
	keyPortCount     = "port-count"
	keyStreamOffset  = "stream-offset"
	keyKeyLength     = "key-length"
	keySettleDelay   = "settle-delay"
	keyBatchInterval = "batch-interval"
	keyHTTPTimeout   = "http-timeout"
	keyLogLevel      = "log-level"
	keyLogJSON       = "log-json"
	keyLogFile       = "log-file"
	keyArchive       = "archive"
)

// defaultLogFile receives dashboard logs so they don't draw over the screen.
const defaultLogFile = "~/.blockvote/dashboard.log"

// Config holds the resolved client configuration.
type Config struct {
	Host          string        // Host running the cluster (--host)
	BasePort      int           // First scanned port (--base-port)
	PortCount     int           // Number of scanned ports (--port-count)
	StreamOffset  int           // Snapshot stream port offset (--stream-offset)
	KeyLength     int           // Expected signing key length (--key-length)
	SettleDelay   time.Duration // Refresh flag hold time (--settle-delay)
	BatchInterval time.Duration // Spacing of batch ballots (--batch-interval)
	HTTPTimeout   time.Duration // Per-request HTTP timeout, 0 for none (--http-timeout)
	LogLevel      string        // zap level name (--log-level)
	LogJSON       bool          // JSON log encoding (--log-json)
	LogFile       string        // Dashboard log destination (--log-file)
	Archive       string        // bbolt archive path, empty when disabled (--archive)
}

// setDefaults registers the default of every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault(keyHost, transport.DefaultHost)
	v.SetDefault(keyBasePort, registry.DefaultBasePort)
	v.SetDefault(keyPortCount, registry.DefaultCount)
	v.SetDefault(keyStreamOffset, transport.DefaultStreamOffset)
	v.SetDefault(keyKeyLength, ballot.DefaultKeyLength)
	v.SetDefault(keySettleDelay, registry.DefaultSettleDelay)
	v.SetDefault(keyBatchInterval, ballot.DefaultInterval)
	v.SetDefault(keyHTTPTimeout, time.Duration(0))
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogJSON, false)
	v.SetDefault(keyLogFile, defaultLogFile)
	v.SetDefault(keyArchive, "")
}

// LoadConfig resolves the configuration from v and validates it.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:          strings.TrimSpace(v.GetString(keyHost)),
		BasePort:      v.GetInt(keyBasePort),
		PortCount:     v.GetInt(keyPortCount),
		StreamOffset:  v.GetInt(keyStreamOffset),
		KeyLength:     v.GetInt(keyKeyLength),
		SettleDelay:   v.GetDuration(keySettleDelay),
		BatchInterval: v.GetDuration(keyBatchInterval),
		HTTPTimeout:   v.GetDuration(keyHTTPTimeout),
		LogLevel:      v.GetString(keyLogLevel),
		LogJSON:       v.GetBool(keyLogJSON),
		LogFile:       v.GetString(keyLogFile),
		Archive:       v.GetString(keyArchive),
	}

	var err error
	if cfg.LogFile, err = homedir.Expand(cfg.LogFile); err != nil {
		return nil, fmt.Errorf("invalid log file: %w", err)
	}
	if cfg.Archive, err = homedir.Expand(cfg.Archive); err != nil {
		return nil, fmt.Errorf("invalid archive path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every field is usable.
// Returns an error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Host == "" {
		errs = append(errs, "host must not be empty")
	}
	if err := c.Registry(nil).Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.StreamOffset <= 0 {
		errs = append(errs, "stream offset must be positive")
	} else if c.BasePort+c.PortCount-1+c.StreamOffset > 65535 {
		errs = append(errs, "stream ports exceed 65535")
	}
	if c.KeyLength <= 0 {
		errs = append(errs, "key length must be positive")
	}
	if c.BatchInterval < 0 {
		errs = append(errs, "batch interval must not be negative")
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, "http timeout must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.LogLevel))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Registry returns the port range configuration.
func (c *Config) Registry(logger *zap.Logger) registry.Config {
	return registry.Config{
		BasePort:    c.BasePort,
		Count:       c.PortCount,
		SettleDelay: c.SettleDelay,
		Logger:      logger,
	}
}

// Transport returns the options used to reach nodes.
func (c *Config) Transport(logger *zap.Logger) transport.Options {
	return transport.Options{
		Host:         c.Host,
		StreamOffset: c.StreamOffset,
		HTTPTimeout:  c.HTTPTimeout,
		Logger:       logger,
	}
}

// CasterOptions returns the ballot options matching the configuration.
func (c *Config) CasterOptions(logger *zap.Logger) []ballot.Option {
	return []ballot.Option{
		ballot.WithLogger(logger),
		ballot.WithInterval(c.BatchInterval),
		ballot.WithKeyLength(c.KeyLength),
	}
}
