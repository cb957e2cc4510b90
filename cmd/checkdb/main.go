// Command checkdb verifies that the configured storage backend accepts a
// full insert, read and delete round trip.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"diaryx/internal/config"
	"diaryx/internal/models"
	"diaryx/internal/storage"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	testUserID = "test_user"
	testNotes  = "Test entry"
)

// errCheckFailed is returned once a failing step has been reported.
var errCheckFailed = errors.New("database check failed")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	envFile    string
	backend    string
	dbPath     string
	url        string
	key        string
	timeout    time.Duration
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options

	cmd := &cobra.Command{
		Use:   "checkdb",
		Short: "Check that the time-entries store is reachable and writable",
		Long: `Open the configured store and run a round trip against it:

  1. insert a 30 minute test entry for user "test_user"
  2. read it back by id
  3. delete it

Settings come from the same config file and environment variables as the
server. Flags override both. With the supabase backend and no key
configured, the key is prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return check(cmd.Context(), opts, stdin, stdout)
		},
	}
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML or TOML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&opts.backend, "backend", "", "storage backend: sqlite or supabase")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path")
	flags.StringVar(&opts.url, "url", "", "Supabase project URL")
	flags.StringVar(&opts.key, "key", "", "Supabase API key (prompted for when omitted)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall time limit")

	return cmd.ExecuteContext(context.Background())
}

func check(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", opts.envFile, err)
	}

	getenv := withOverrides(os.Getenv, map[string]string{
		"DIARYX_BACKEND": opts.backend,
		"DB_PATH":        opts.dbPath,
		"SUPABASE_URL":   opts.url,
		"SUPABASE_KEY":   opts.key,
	})
	cfg, err := config.Read(opts.configPath, getenv)
	if err != nil {
		return err
	}

	if cfg.Backend == config.BackendSupabase && cfg.Supabase.Key == "" {
		fmt.Fprint(stdout, "Supabase key: ")
		key, err := readKey(stdin)
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		fmt.Fprintln(stdout)
		if strings.TrimSpace(key) == "" {
			return errors.New("key cannot be empty")
		}
		cfg.Supabase.Key = strings.TrimSpace(key)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := storage.Open(storage.Options{
		Backend:     cfg.Backend,
		DBPath:      cfg.DBPath,
		SupabaseURL: cfg.Supabase.URL,
		SupabaseKey: cfg.Supabase.Key,
		Table:       cfg.Supabase.Table,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	r := newReport(stdout)
	r.title(fmt.Sprintf("Checking %s backend", cfg.Backend))
	if err := roundTrip(ctx, store, r); err != nil {
		return err
	}
	r.done("All checks passed")
	return nil
}

// roundTrip inserts, reads back and deletes one entry, reporting each step.
func roundTrip(ctx context.Context, store storage.Store, r *report) error {
	date := models.NewTimestamp(time.Now())
	notes := testNotes
	created, err := store.CreateEntry(ctx, models.TimeEntryCreate{
		Date:            &date,
		DurationMinutes: 30,
		Notes:           &notes,
	}, testUserID)
	if err != nil {
		r.fail("Insert test entry", err)
		return errCheckFailed
	}
	r.pass(fmt.Sprintf("Inserted test entry (id %d)", created.ID))

	got, err := store.GetEntry(ctx, created.ID, testUserID)
	if err == nil && (got.Notes == nil || *got.Notes != testNotes || got.DurationMinutes != 30) {
		err = fmt.Errorf("entry %d came back with different contents", created.ID)
	}
	if err != nil {
		r.fail("Read test entry", err)
		return errCheckFailed
	}
	r.pass(fmt.Sprintf("Read test entry %d", got.ID))

	if err := store.DeleteEntry(ctx, created.ID, testUserID); err != nil {
		r.fail("Delete test entry", err)
		return errCheckFailed
	}
	r.pass(fmt.Sprintf("Deleted test entry %d", created.ID))
	return nil
}

type report struct {
	w        io.Writer
	titleSty lipgloss.Style
	passSty  lipgloss.Style
	failSty  lipgloss.Style
	hintSty  lipgloss.Style
}

func newReport(w io.Writer) *report {
	renderer := lipgloss.NewRenderer(w)
	return &report{
		w:        w,
		titleSty: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		passSty:  renderer.NewStyle().Foreground(lipgloss.Color("10")),
		failSty:  renderer.NewStyle().Foreground(lipgloss.Color("9")),
		hintSty:  renderer.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (r *report) title(s string) {
	fmt.Fprintln(r.w, r.titleSty.Render(s))
}

func (r *report) pass(s string) {
	fmt.Fprintf(r.w, "%s %s\n", r.passSty.Render("✓"), s)
}

func (r *report) fail(step string, err error) {
	fmt.Fprintf(r.w, "%s %s\n", r.failSty.Render("✗"), step)
	fmt.Fprintln(r.w, r.hintSty.Render("  "+err.Error()))
}

func (r *report) done(s string) {
	fmt.Fprintln(r.w, r.passSty.Render(s))
}

func withOverrides(getenv func(string) string, values map[string]string) func(string) string {
	return func(key string) string {
		if v := values[key]; v != "" {
			return v
		}
		return getenv(key)
	}
}

func readKey(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
