package main

import (
	"bytes"
	"net/http"
	"path/filepath"
	"testing"

	"diaryx/internal/postgresttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears the variables checkdb reads so the host environment does
// not leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"DIARYX_CONFIG", "DIARYX_BACKEND", "DB_PATH", "SUPABASE_URL", "SUPABASE_KEY", "SUPABASE_TABLE"} {
		t.Setenv(name, "")
	}
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestRun_SQLiteSuccess(t *testing.T) {
	envFile := isolate(t)
	dbPath := filepath.Join(t.TempDir(), "check.db")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	args := []string{"--env-file", envFile, "--backend", "sqlite", "--db", dbPath}
	err := run(args, stdin, stdout, stderr)
	require.NoError(t, err)

	output := stdout.String()
	assert.Contains(t, output, "Checking sqlite backend")
	assert.Contains(t, output, "Inserted test entry (id 1)")
	assert.Contains(t, output, "Read test entry 1")
	assert.Contains(t, output, "Deleted test entry 1")
	assert.Contains(t, output, "All checks passed")
	assert.NotContains(t, output, "✗")
	assert.FileExists(t, dbPath)
}

func TestRun_EnvVarSelectsDB(t *testing.T) {
	envFile := isolate(t)
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("DB_PATH", dbPath)

	err := run([]string{"--env-file", envFile}, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
}

func TestRun_SupabaseWithKeyFlag(t *testing.T) {
	envFile := isolate(t)
	srv := postgresttest.NewServer("anon-key")
	defer srv.Close()

	stdout := new(bytes.Buffer)
	args := []string{"--env-file", envFile, "--url", srv.URL, "--key", "anon-key"}
	err := run(args, new(bytes.Buffer), stdout, new(bytes.Buffer))
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Checking supabase backend")
	assert.Contains(t, stdout.String(), "All checks passed")
	assert.NotContains(t, stdout.String(), "Supabase key:")
	assert.Empty(t, srv.Rows("time_entries"), "test entry is removed")
}

func TestRun_SupabasePromptsForKey(t *testing.T) {
	envFile := isolate(t)
	srv := postgresttest.NewServer("typed-key")
	defer srv.Close()

	stdout := new(bytes.Buffer)
	stdin := bytes.NewBufferString("typed-key\n")

	args := []string{"--env-file", envFile, "--backend", "supabase", "--url", srv.URL}
	err := run(args, stdin, stdout, new(bytes.Buffer))
	require.NoError(t, err)

	output := stdout.String()
	assert.Contains(t, output, "Supabase key: ")
	assert.Contains(t, output, "All checks passed")
}

func TestRun_SupabaseEmptyKey(t *testing.T) {
	envFile := isolate(t)

	args := []string{"--env-file", envFile, "--url", "https://example.supabase.co"}
	err := run(args, bytes.NewBufferString("\n"), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key cannot be empty")
}

func TestRun_SupabaseWrongKey(t *testing.T) {
	envFile := isolate(t)
	srv := postgresttest.NewServer("right-key")
	defer srv.Close()

	stdout := new(bytes.Buffer)
	args := []string{"--env-file", envFile, "--url", srv.URL, "--key", "wrong-key"}
	err := run(args, new(bytes.Buffer), stdout, new(bytes.Buffer))
	require.ErrorIs(t, err, errCheckFailed)

	assert.Contains(t, stdout.String(), "✗ Insert test entry")
	assert.NotContains(t, stdout.String(), "All checks passed")
}

func TestRun_SupabaseInsertFails(t *testing.T) {
	envFile := isolate(t)
	srv := postgresttest.NewServer("k")
	defer srv.Close()
	srv.FailNext(http.StatusBadRequest, "23514", "violates check constraint")

	stdout := new(bytes.Buffer)
	args := []string{"--env-file", envFile, "--url", srv.URL, "--key", "k"}
	err := run(args, new(bytes.Buffer), stdout, new(bytes.Buffer))
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, stdout.String(), "violates check constraint")
}

func TestRun_InvalidDBPath(t *testing.T) {
	envFile := isolate(t)
	tmpDir := t.TempDir()

	args := []string{"--env-file", envFile, "--backend", "sqlite", "--db", tmpDir}
	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err, "expected error for invalid db path")
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestRun_UnknownBackend(t *testing.T) {
	envFile := isolate(t)

	err := run([]string{"--env-file", envFile, "--backend", "oracle"}, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestRun_InvalidFlag(t *testing.T) {
	err := run([]string{"--invalid"}, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err, "expected error for invalid flag")
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRun_RejectsArguments(t *testing.T) {
	err := run([]string{"extra"}, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
}

func TestRun_Help(t *testing.T) {
	stdout := new(bytes.Buffer)
	err := run([]string{"--help"}, new(bytes.Buffer), stdout, new(bytes.Buffer))
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "checkdb")
}
