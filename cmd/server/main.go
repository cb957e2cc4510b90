// Command server runs the DiaryX time-entries API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"diaryx/internal/config"
	"diaryx/internal/handlers"
	"diaryx/internal/server"
	"diaryx/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML or TOML config file (default $DIARYX_CONFIG)")
	port := fs.StringP("port", "p", "", "listen port (overrides $PORT)")
	envFile := fs.String("env-file", ".env", "dotenv file loaded before reading the environment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Variables already set in the environment win over the file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", *envFile, err)
	}

	cfg, err := config.Load(*configPath, overrideEnv(os.Getenv, "PORT", *port))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := cfg.Log.NewLogger(os.Stderr)

	store, err := storage.Open(storage.Options{
		Backend:     cfg.Backend,
		DBPath:      cfg.DBPath,
		SupabaseURL: cfg.Supabase.URL,
		SupabaseKey: cfg.Supabase.Key,
		Table:       cfg.Supabase.Table,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()
	logger.Info("storage ready", "backend", cfg.Backend)

	h := handlers.NewHandlers(store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Address: cfg.Addr(),
		Handler: setupRouter(h, logger, cfg.CORS.AllowedOrigins),
		Logger:  logger,
	})
	return srv.Serve(ctx)
}

// setupRouter registers every route and wraps the mux in the middleware
// chain. Request ids are assigned first so later layers can log them.
func setupRouter(h *handlers.Handlers, logger *slog.Logger, origins []string) http.Handler {
	mux := http.NewServeMux()
	h.Routes(mux)

	return handlers.Chain(mux,
		handlers.RequestID,
		handlers.Logging(logger),
		handlers.Recover(logger),
		handlers.CORS(origins),
	)
}

// overrideEnv returns getenv with name replaced by value when value is set.
func overrideEnv(getenv func(string) string, name, value string) func(string) string {
	if value == "" {
		return getenv
	}
	return func(key string) string {
		if key == name {
			return value
		}
		return getenv(key)
	}
}
