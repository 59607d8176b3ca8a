// Package database opens the results database and hides the SQL differences
// between the supported backends.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/connection"
)

// CatalogTable records the schema variant of every table created by tunedb.
const CatalogTable = "tunedb_tables"

// DB is an open results database together with its dialect.
type DB struct {
	*sql.DB
	Dialect *Dialect

	backend connection.Backend
	tunnel  *connection.SSHTunnel
}

// Open connects to the configured backend, through an SSH tunnel when enabled.
// The pool holds a single connection: commands run their queries sequentially.
func Open(ctx context.Context, backend connection.Backend, tunnel connection.SSHTunnelConfig) (*DB, error) {
	if backend.Type == connection.DatabaseTypeSQLite {
		return OpenSQLite(ctx, backend.Path)
	}

	dialect, err := DialectFor(backend.Type)
	if err != nil {
		return nil, err
	}

	var sshTunnel *connection.SSHTunnel
	target := backend
	if tunnel.Enabled {
		sshTunnel, err = connection.NewSSHTunnel(ctx, tunnel, backend.Host, backend.Port)
		if err != nil {
			return nil, fmt.Errorf("open ssh tunnel: %w", err)
		}
		target = backend.WithEndpoint("127.0.0.1", sshTunnel.LocalPort())
	}

	closeTunnel := func() {
		if sshTunnel != nil {
			sshTunnel.Close()
		}
	}

	dsn, err := target.DSN()
	if err != nil {
		closeTunnel()
		return nil, err
	}

	slog.Debug("Database: Opening connection", "op", "db_open", "backend", backend.Redact(), "ssh", tunnel.Enabled)

	db, err := sql.Open(backend.Type.DriverName(), dsn)
	if err != nil {
		closeTunnel()
		return nil, fmt.Errorf("open %s: %w", backend.Type, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		closeTunnel()
		return nil, fmt.Errorf("connect to %s: %w", backend.Redact(), err)
	}

	return &DB{DB: db, Dialect: dialect, backend: backend, tunnel: sshTunnel}, nil
}

// Backend returns the backend parameters the database was opened with.
func (db *DB) Backend() connection.Backend {
	return db.backend
}

// Close closes the connection pool and the tunnel, if any.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.tunnel != nil {
		err = errors.Join(err, db.tunnel.Close())
	}
	return err
}
