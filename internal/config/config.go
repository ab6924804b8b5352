// Package config loads tempo settings from ~/.tempo/config.yaml and TEMPO_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appDir    = ".tempo"
	fileName  = "config.yaml"
	envPrefix = "TEMPO"
)

type Config struct {
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Client       ClientConfig       `yaml:"client" mapstructure:"client"`
	Connectivity ConnectivityConfig `yaml:"connectivity" mapstructure:"connectivity"`
	Unload       UnloadConfig       `yaml:"unload" mapstructure:"unload"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr" mapstructure:"addr"`
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

type ClientConfig struct {
	StoreURL string        `yaml:"store_url" mapstructure:"store_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type ConnectivityConfig struct {
	ProbeInterval  time.Duration `yaml:"probe_interval" mapstructure:"probe_interval"`
	BackoffInitial time.Duration `yaml:"backoff_initial" mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max" mapstructure:"backoff_max"`
}

type UnloadConfig struct {
	LedgerPath     string        `yaml:"ledger_path" mapstructure:"ledger_path"`
	LedgerAllKinds bool          `yaml:"ledger_all_kinds" mapstructure:"ledger_all_kinds"`
	BeaconGrace    time.Duration `yaml:"beacon_grace" mapstructure:"beacon_grace"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Dir is the per-user state directory, ~/.tempo.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appDir
	}
	return filepath.Join(home, appDir)
}

// DefaultPath is the config file location used when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), fileName)
}

func Default() Config {
	dir := Dir()
	return Config{
		Server: ServerConfig{
			Addr:   "127.0.0.1:7420",
			DBPath: filepath.Join(dir, "tempo.db"),
		},
		Client: ClientConfig{
			StoreURL: "http://127.0.0.1:7420",
			Timeout:  5 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval:  30 * time.Second,
			BackoffInitial: time.Second,
			BackoffMax:     60 * time.Second,
		},
		Unload: UnloadConfig{
			LedgerPath:  filepath.Join(dir, "local.yaml"),
			BeaconGrace: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.db_path", cfg.Server.DBPath)
	v.SetDefault("client.store_url", cfg.Client.StoreURL)
	v.SetDefault("client.timeout", cfg.Client.Timeout)
	v.SetDefault("connectivity.probe_interval", cfg.Connectivity.ProbeInterval)
	v.SetDefault("connectivity.backoff_initial", cfg.Connectivity.BackoffInitial)
	v.SetDefault("connectivity.backoff_max", cfg.Connectivity.BackoffMax)
	v.SetDefault("unload.ledger_path", cfg.Unload.LedgerPath)
	v.SetDefault("unload.ledger_all_kinds", cfg.Unload.LedgerAllKinds)
	v.SetDefault("unload.beacon_grace", cfg.Unload.BeaconGrace)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// Load merges defaults, the YAML file at path and TEMPO_* environment
// variables, in increasing priority. An empty path means DefaultPath; a
// missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("checking config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Server.DBPath = expandHome(cfg.Server.DBPath)
	cfg.Unload.LedgerPath = expandHome(cfg.Unload.LedgerPath)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive, got %s", c.Client.Timeout)
	}
	if c.Connectivity.BackoffInitial <= 0 || c.Connectivity.BackoffMax < c.Connectivity.BackoffInitial {
		return fmt.Errorf("connectivity backoff must satisfy 0 < initial <= max, got %s..%s",
			c.Connectivity.BackoffInitial, c.Connectivity.BackoffMax)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a config level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
