package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "diaryx.db", cfg.DBPath)
	assert.Equal(t, "time_entries", cfg.Supabase.Table)
	assert.Contains(t, cfg.CORS.AllowedOrigins, "*")
}

func TestLoadEnvSelectsSupabase(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{
		"PORT":         "9090",
		"SUPABASE_URL": "https://abc.supabase.co",
		"SUPABASE_KEY": "secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendSupabase, cfg.Backend)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "secret", cfg.Supabase.Key)
}

func TestLoadSupabaseNeedsKey(t *testing.T) {
	_, err := Load("", envMap(map[string]string{"SUPABASE_URL": "https://abc.supabase.co"}))
	assert.ErrorContains(t, err, "SUPABASE_KEY")

	cfg, err := Read("", envMap(map[string]string{"SUPABASE_URL": "https://abc.supabase.co"}))
	require.NoError(t, err, "Read does not validate")
	assert.Equal(t, BackendSupabase, cfg.Backend)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "diaryx.yaml", `
port: "7000"
backend: sqlite
db_path: /tmp/entries.db
cors:
  allowed_origins: ["https://app.example.com"]
log:
  level: debug
  format: json
`)
	cfg, err := Load(path, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "/tmp/entries.db", cfg.DBPath)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "diaryx.toml", `
backend = "supabase"

[supabase]
url = "https://xyz.supabase.co"
key = "from-file"
table = "entries"
`)
	cfg, err := Load(path, envMap(map[string]string{"SUPABASE_KEY": "from-env"}))
	require.NoError(t, err)
	assert.Equal(t, BackendSupabase, cfg.Backend)
	assert.Equal(t, "entries", cfg.Supabase.Table)
	assert.Equal(t, "from-env", cfg.Supabase.Key, "environment overrides the file")
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "c.yml", "port: \"1234\"\n")
	cfg, err := Load("", envMap(map[string]string{EnvConfigPath: path}))
	require.NoError(t, err)
	assert.Equal(t, "1234", cfg.Port)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		env  map[string]string
		want string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.yaml"), want: "reading config"},
		{name: "bad extension", path: writeFile(t, "c.ini", "x=1"), want: "unsupported extension"},
		{name: "bad yaml", path: writeFile(t, "c.yaml", "port: [1"), want: "parsing config"},
		{name: "bad port", env: map[string]string{"PORT": "eighty"}, want: "invalid port"},
		{name: "bad backend", env: map[string]string{"DIARYX_BACKEND": "oracle"}, want: "unknown backend"},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}, want: "invalid log level"},
		{name: "bad format", env: map[string]string{"LOG_FORMAT": "xml"}, want: "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, envMap(tt.env))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{"DIARYX_CORS_ORIGINS": " https://a.example , ,https://b.example"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.True(t, LogConfig{}.NewLogger(&buf).Enabled(context.Background(), slog.LevelInfo))
}
