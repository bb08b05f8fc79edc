// Package config parses SDK configuration from the init string, DATENLORD_*
// environment variables and an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/datenlord/datenlord_sdk_go/internal/logging"
)

// EnvPrefix is the prefix of environment variables read by Parse.
const EnvPrefix = "DATENLORD"

// Backend selection modes.
const (
	ModeAuto   = "auto"
	ModeHTTP   = "http"
	ModeMem    = "mem"
	ModeLocal  = "local"
	ModeSQLite = "sqlite"
)

var modes = []string{ModeAuto, ModeHTTP, ModeMem, ModeLocal, ModeSQLite}

// Config is the resolved SDK configuration.
type Config struct {
	Mode       string        `mapstructure:"mode" toml:"mode" json:"mode" jsonschema:"enum=auto,enum=http,enum=mem,enum=local,enum=sqlite,default=auto"`
	Endpoint   string        `mapstructure:"endpoint" toml:"endpoint" json:"endpoint,omitempty" jsonschema:"description=Base URL of the filesystem service"`
	Root       string        `mapstructure:"root" toml:"root" json:"root,omitempty" jsonschema:"description=Host directory backing the local mode"`
	DBPath     string        `mapstructure:"db_path" toml:"db_path" json:"db_path,omitempty" jsonschema:"description=SQLite database file backing the sqlite mode"`
	Seed       string        `mapstructure:"seed" toml:"seed" json:"seed,omitempty" jsonschema:"description=JSON seed file applied to the mem mode"`
	Token      string        `mapstructure:"token" toml:"token" json:"token,omitempty"`
	Name       string        `mapstructure:"name" toml:"name" json:"name,omitempty"`
	Timeout    time.Duration `mapstructure:"timeout" toml:"timeout" json:"timeout,omitempty"`
	Retry      RetryConfig   `mapstructure:"retry" toml:"retry" json:"retry"`
	Log        LogConfig     `mapstructure:"log" toml:"log" json:"log"`
	ConfigFile string        `mapstructure:"config_file" toml:"-" json:"-"`
}

// RetryConfig mirrors httpx.RetryPolicy.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" toml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay" toml:"base_delay" json:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay" toml:"max_delay" json:"max_delay"`
	Jitter     float64       `mapstructure:"jitter" toml:"jitter" json:"jitter" jsonschema:"minimum=0,maximum=1"`
}

// LogConfig selects the level and encoding of SDK logs.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level" json:"level" jsonschema:"default=warn"`
	Format string `mapstructure:"format" toml:"format" json:"format" jsonschema:"enum=console,enum=json,default=console"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Mode:    ModeAuto,
		Timeout: 30 * time.Second,
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  250 * time.Millisecond,
			MaxDelay:   2 * time.Second,
			Jitter:     0.25,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

var knownKeys = []string{
	"mode", "endpoint", "root", "db_path", "seed", "token", "name", "timeout",
	"retry.max_retries", "retry.base_delay", "retry.max_delay", "retry.jitter",
	"log.level", "log.format", "config_file",
}

var aliases = map[string]string{
	"log_level":   "log.level",
	"log_format":  "log.format",
	"level":       "log.level",
	"max_retries": "retry.max_retries",
	"base_delay":  "retry.base_delay",
	"max_delay":   "retry.max_delay",
	"jitter":      "retry.jitter",
	"db":          "db_path",
	"url":         "endpoint",
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("mode", d.Mode)
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("root", d.Root)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("token", d.Token)
	v.SetDefault("name", d.Name)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.jitter", d.Retry.Jitter)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("config_file", "")
}

// Parse resolves the configuration string s. Precedence, lowest first:
// defaults, the TOML file named by config_file, DATENLORD_* environment, and
// the entries of s.
func Parse(s string) (*Config, error) {
	entries, err := ParseString(s)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := v.GetString("config_file")
	if f, ok := entries["config_file"]; ok {
		file = f
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
		for _, key := range v.AllKeys() {
			if !slices.Contains(knownKeys, key) {
				return nil, fmt.Errorf("config: %s: unknown key %q", file, key)
			}
		}
	}

	for key, value := range entries {
		v.Set(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseString splits a configuration string into canonical key/value pairs.
// Entries are separated by ';', ',' or whitespace. A bare URL sets endpoint,
// a bare *.toml path sets config_file and any other bare word sets name.
func ParseString(s string) (map[string]string, error) {
	out := make(map[string]string)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			switch {
			case strings.HasPrefix(field, "http://"), strings.HasPrefix(field, "https://"):
				out["endpoint"] = field
			case strings.HasSuffix(strings.ToLower(field), ".toml"):
				out["config_file"] = field
			default:
				out["name"] = field
			}
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if canonical, ok := aliases[key]; ok {
			key = canonical
		}
		if key == "" {
			return nil, fmt.Errorf("config: entry %q has no key", field)
		}
		if !slices.Contains(knownKeys, key) {
			return nil, fmt.Errorf("config: unknown key %q", key)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// Validate checks field values after parsing.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(modes, c.Mode) {
		errs = append(errs, fmt.Errorf("mode must be one of %s, got %q", strings.Join(modes, ", "), c.Mode))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry.max_retries must not be negative"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter must be within [0,1], got %v", c.Retry.Jitter))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Logging converts the log section into a logging.Config.
func (c *Config) Logging() logging.Config {
	return c.Log.logging()
}

func (l LogConfig) logging() logging.Config {
	out := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(l.Level); err == nil {
		out.Level = lvl
	}
	if l.Format != "" {
		out.Format = l.Format
	}
	return out
}
