// Package config loads settings for the DiaryX processes.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML or TOML file, and environment variables. The environment names match
// the ones the service has always used (PORT, DB_PATH, SUPABASE_URL,
// SUPABASE_KEY), so a deployment that only sets those keeps working.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Backend selection values.
const (
	BackendAuto     = "auto"
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// EnvConfigPath names the environment variable holding a config file path.
const EnvConfigPath = "DIARYX_CONFIG"

// Config is the full process configuration.
type Config struct {
	// Port is the TCP port the API listens on.
	Port string `yaml:"port" toml:"port"`

	// Backend is "sqlite", "supabase", or "auto" (supabase when a URL is set).
	Backend string `yaml:"backend" toml:"backend"`

	// DBPath is the SQLite file used by the sqlite backend.
	DBPath string `yaml:"db_path" toml:"db_path"`

	Supabase SupabaseConfig `yaml:"supabase" toml:"supabase"`
	CORS     CORSConfig     `yaml:"cors" toml:"cors"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// SupabaseConfig locates the hosted table.
type SupabaseConfig struct {
	URL   string `yaml:"url" toml:"url"`
	Key   string `yaml:"key" toml:"key"`
	Table string `yaml:"table" toml:"table"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" toml:"level"`
	// Format is text or json.
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:    "8000",
		Backend: BackendAuto,
		DBPath:  "diaryx.db",
		Supabase: SupabaseConfig{
			Table: "time_entries",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"https://*.railway.app",
				"https://*.up.railway.app",
				"*",
			},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration and validates it.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg, err := Read(path, getenv)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read builds a Config from defaults, the file at path (or $DIARYX_CONFIG
// when path is empty), and the environment as seen through getenv. The
// result is not validated, so callers can fill gaps before calling Validate.
func Read(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path == "" {
		path = getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg, getenv)
	cfg.ResolveBackend()
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported extension (use .yaml, .yml or .toml)", path)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, name string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Port, "PORT")
	set(&cfg.DBPath, "DB_PATH")
	set(&cfg.Backend, "DIARYX_BACKEND")
	set(&cfg.Supabase.URL, "SUPABASE_URL")
	set(&cfg.Supabase.Key, "SUPABASE_KEY")
	set(&cfg.Supabase.Table, "SUPABASE_TABLE")
	set(&cfg.Log.Level, "LOG_LEVEL")
	set(&cfg.Log.Format, "LOG_FORMAT")

	if v := getenv("DIARYX_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
}

// ResolveBackend turns "auto" into a concrete backend: supabase when a URL
// is configured, sqlite otherwise.
func (c *Config) ResolveBackend() {
	c.Backend = strings.ToLower(c.Backend)
	if c.Backend == "" || c.Backend == BackendAuto {
		c.Backend = BackendSQLite
		if c.Supabase.URL != "" {
			c.Backend = BackendSupabase
		}
	}
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return errors.New("sqlite backend requires db_path")
		}
	case BackendSupabase:
		if c.Supabase.URL == "" {
			return errors.New("supabase backend requires SUPABASE_URL")
		}
		if c.Supabase.Key == "" {
			return errors.New("supabase backend requires SUPABASE_KEY")
		}
	default:
		return fmt.Errorf("unknown backend %q (use sqlite, supabase or auto)", c.Backend)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (use text or json)", c.Log.Format)
	}
	return nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	return ":" + c.Port
}

// NewLogger builds the structured logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
