package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/connection"
)

// OpenSQLite opens a local results database.
// dbPath: database file path, or ":memory:" for a private in-memory database.
// The pool holds a single connection so an in-memory database is shared by every statement.
func OpenSQLite(ctx context.Context, dbPath string) (*DB, error) {
	backend := connection.Backend{Type: connection.DatabaseTypeSQLite, Path: dbPath}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn, err := backend.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// An in-memory database disappears with its last connection.
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{DB: db, Dialect: dialects[connection.DatabaseTypeSQLite], backend: backend}, nil
}
