package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	BackendLevelDB  = "leveldb"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options selects and locates a backend. File backends live under DataDir;
// PostgreSQL is reached through DSN.
type Options struct {
	Backend string
	DataDir string
	DSN     string
}

// Open opens the configured backend. An empty backend selects LevelDB.
func Open(opts Options) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendLevelDB:
		return NewLevelDB(opts.DataDir)
	case BackendBolt:
		return NewBoltDB(filepath.Join(opts.DataDir, "stakevault.db"))
	case BackendSQLite:
		return NewSQLiteDB(filepath.Join(opts.DataDir, "stakevault.sqlite"))
	case BackendPostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, fmt.Errorf("storage: postgres backend requires a DSN")
		}
		return NewPostgresDB(opts.DSN)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}
