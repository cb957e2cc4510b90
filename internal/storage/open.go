package storage

import (
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend     string
	DBPath      string
	SupabaseURL string
	SupabaseKey string
	Table       string
}

// Open builds the Store named by opts.Backend. The handle is meant to be
// created once per process and shared by every request.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite:
		db, err := NewDB(opts.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", opts.DBPath, err)
		}
		return db, nil
	case BackendSupabase:
		client, err := NewSupabaseClient(opts.SupabaseURL, opts.SupabaseKey)
		if err != nil {
			return nil, err
		}
		return NewSupabaseStore(client, opts.Table), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
