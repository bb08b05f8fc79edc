package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/invopop/jsonschema"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/datenlord/datenlord_sdk_go/internal/logging"
)

// ServerEnvPrefix is the prefix of environment variables read by the sandbox.
const ServerEnvPrefix = "DATENLORD_SANDBOX"

var serverBackends = []string{ModeMem, ModeLocal, ModeSQLite}

// ServerConfig configures datenlord-sandbox.
type ServerConfig struct {
	Addr    string        `mapstructure:"addr" toml:"addr" json:"addr" jsonschema:"description=Listen address,default=127.0.0.1:8765"`
	Backend string        `mapstructure:"backend" toml:"backend" json:"backend" jsonschema:"enum=mem,enum=local,enum=sqlite,default=mem"`
	Root    string        `mapstructure:"root" toml:"root" json:"root,omitempty" jsonschema:"description=Host directory served by the local backend"`
	DBPath  string        `mapstructure:"db_path" toml:"db_path" json:"db_path,omitempty" jsonschema:"description=Database file used by the sqlite backend"`
	Seed    string        `mapstructure:"seed" toml:"seed" json:"seed,omitempty" jsonschema:"description=JSON seed file applied on start"`
	Token   string        `mapstructure:"token" toml:"token" json:"token,omitempty" jsonschema:"description=Shared secret expected in X-Service-Token"`
	Latency time.Duration `mapstructure:"latency" toml:"latency" json:"latency,omitempty" jsonschema:"description=Artificial delay in nanoseconds added to every operation"`
	Fail    string        `mapstructure:"fail" toml:"fail" json:"fail,omitempty" jsonschema:"description=Failure injection given as rate=R and code=STATUS joined by a comma"`
	Log     LogConfig     `mapstructure:"log" toml:"log" json:"log"`
}

// DefaultServer returns the sandbox defaults.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Addr:    "127.0.0.1:8765",
		Backend: ModeMem,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the sandbox configuration.
func (c *ServerConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if !slices.Contains(serverBackends, c.Backend) {
		errs = append(errs, fmt.Errorf("backend must be one of %s, got %q", strings.Join(serverBackends, ", "), c.Backend))
	}
	if c.Backend == ModeLocal && c.Root == "" {
		errs = append(errs, errors.New("backend local requires root"))
	}
	if c.Backend == ModeSQLite && c.DBPath == "" {
		errs = append(errs, errors.New("backend sqlite requires db_path"))
	}
	if c.Latency < 0 {
		errs = append(errs, errors.New("latency must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Logging converts the log section into a logging.Config.
func (c *ServerConfig) Logging() logging.Config {
	return c.Log.logging()
}

// ServerLoader reads ServerConfig from defaults, DATENLORD_SANDBOX_* variables,
// an optional TOML file and any flags bound through Viper.
type ServerLoader struct {
	v    *viper.Viper
	file string

	mu       sync.Mutex
	watching bool
}

// NewServerLoader prepares a loader. An empty file skips the TOML source.
func NewServerLoader(file string) *ServerLoader {
	v := viper.New()
	d := DefaultServer()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("root", d.Root)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("token", d.Token)
	v.SetDefault("latency", d.Latency)
	v.SetDefault("fail", d.Fail)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(ServerEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
	}
	return &ServerLoader{v: v, file: file}
}

// Viper exposes the underlying instance so commands can bind flags.
func (l *ServerLoader) Viper() *viper.Viper {
	return l.v
}

// File returns the TOML file the loader reads, if any.
func (l *ServerLoader) File() string {
	return l.file
}

// Load reads the file (when configured) and returns the validated config.
func (l *ServerLoader) Load() (*ServerConfig, error) {
	if l.file != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.file, err)
		}
	}
	return l.decode()
}

func (l *ServerLoader) decode() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch re-reads the file on every change and hands the result to onChange.
// It is a no-op without a file.
func (l *ServerLoader) Watch(onChange func(*ServerConfig, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == "" || l.watching {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		onChange(l.decode())
	})
	l.v.WatchConfig()
	l.watching = true
}

// Schema returns the JSON schema of ServerConfig.
func Schema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	schema := r.Reflect(&ServerConfig{})
	schema.ID = "https://github.com/datenlord/datenlord_sdk_go/sandbox.schema.json"
	schema.Title = "DatenLord sandbox configuration"
	schema.Description = "Configuration of the datenlord-sandbox filesystem service"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("config: marshal schema: %w", err)
	}
	return data, nil
}

// DefaultTOML renders DefaultServer as a TOML document.
func DefaultTOML() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(DefaultServer()); err != nil {
		return nil, fmt.Errorf("config: encode defaults: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefault writes DefaultTOML to path. An existing file is kept unless
// force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists", path)
		}
	}
	data, err := DefaultTOML()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
