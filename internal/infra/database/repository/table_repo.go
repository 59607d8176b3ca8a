// Package repository provides the SQL implementations of the use case repositories.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/whhaicheng/dedisp-tunedb/internal/app/usecase"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
	"github.com/whhaicheng/dedisp-tunedb/internal/infra/database"
)

// SQLTableRepository implements usecase.TableRepository on any supported backend.
type SQLTableRepository struct {
	db *database.DB
}

// NewSQLTableRepository creates a new table repository.
func NewSQLTableRepository(db *database.DB) *SQLTableRepository {
	return &SQLTableRepository{db: db}
}

// Create creates the results table and registers its variant.
func (r *SQLTableRepository) Create(ctx context.Context, table string, v *schema.Variant) error {
	d := r.db.Dialect
	if table == database.CatalogTable {
		return fmt.Errorf("create table %s: %w", table, database.ErrTableExists)
	}

	ddl, err := d.CreateTableSQL(table, v)
	if err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	if err := r.ensureCatalog(ctx); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, d.Classify(err))
	}

	q := d.NewQuery().Write("DELETE FROM ", d.MustQuote(database.CatalogTable), " WHERE ", d.MustQuote("name"), " = ").Arg(table)
	if _, err := r.db.ExecContext(ctx, q.SQL(), q.Args()...); err != nil {
		return fmt.Errorf("clear catalog entry %s: %w", table, err)
	}

	q = d.NewQuery().Write("INSERT INTO ", d.MustQuote(database.CatalogTable),
		" (", d.MustQuote("name"), ", ", d.MustQuote("variant"), ") VALUES (").Arg(table).Write(", ").Arg(v.Name).Write(")")
	if _, err := r.db.ExecContext(ctx, q.SQL(), q.Args()...); err != nil {
		return fmt.Errorf("register table %s: %w", table, err)
	}

	slog.Info("Table: Created", "op", "table_create", "table", table, "variant", v.Name)
	return nil
}

// ensureCatalog creates the catalog table unless it exists.
func (r *SQLTableRepository) ensureCatalog(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, r.db.Dialect.CreateCatalogSQL())
	if err == nil {
		return nil
	}
	if err := r.db.Dialect.Classify(err); errors.Is(err, database.ErrTableExists) {
		return nil
	}
	return fmt.Errorf("create catalog: %w", err)
}

// Drop drops the table and its catalog entry.
func (r *SQLTableRepository) Drop(ctx context.Context, table string) error {
	d := r.db.Dialect
	name, err := d.Quote(table)
	if err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	if table == database.CatalogTable {
		return fmt.Errorf("drop table %s: %w", table, database.ErrTableNotFound)
	}

	_, dropErr := r.db.ExecContext(ctx, "DROP TABLE "+name)
	dropErr = d.Classify(dropErr)

	// A stale catalog row is removed even when the table is already gone.
	if dropErr == nil || errors.Is(dropErr, database.ErrTableNotFound) {
		q := d.NewQuery().Write("DELETE FROM ", d.MustQuote(database.CatalogTable), " WHERE ", d.MustQuote("name"), " = ").Arg(table)
		if _, err := r.db.ExecContext(ctx, q.SQL(), q.Args()...); err != nil && !errors.Is(d.Classify(err), database.ErrTableNotFound) {
			return fmt.Errorf("unregister table %s: %w", table, err)
		}
	}

	if dropErr != nil {
		return fmt.Errorf("drop table %s: %w", table, dropErr)
	}

	slog.Info("Table: Dropped", "op", "table_drop", "table", table)
	return nil
}

// List returns the results tables, ascending.
func (r *SQLTableRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.ListTablesSQL())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if name == database.CatalogTable {
			continue
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	sort.Strings(tables)
	return tables, nil
}

// Variant looks the table up in the catalog.
func (r *SQLTableRepository) Variant(ctx context.Context, table string) (*schema.Variant, bool, error) {
	d := r.db.Dialect
	q := d.NewQuery().Write("SELECT ", d.MustQuote("variant"), " FROM ", d.MustQuote(database.CatalogTable),
		" WHERE ", d.MustQuote("name"), " = ").Arg(table)

	var name string
	err := r.db.QueryRowContext(ctx, q.SQL(), q.Args()...).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		if errors.Is(d.Classify(err), database.ErrTableNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("look up variant of %s: %w", table, err)
	}

	v, err := schema.Lookup(name)
	if err != nil {
		return nil, false, fmt.Errorf("catalog entry of %s: %w", table, err)
	}
	return v, true, nil
}

// NewInserter prepares the INSERT statement of v.
func (r *SQLTableRepository) NewInserter(ctx context.Context, table string, v *schema.Variant) (usecase.RowInserter, error) {
	query, err := r.db.Dialect.InsertSQL(table, v)
	if err != nil {
		return nil, fmt.Errorf("build insert for %s: %w", table, err)
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare insert into %s: %w", table, r.db.Dialect.Classify(err))
	}
	return &sqlInserter{stmt: stmt, dialect: r.db.Dialect}, nil
}

type sqlInserter struct {
	stmt    *sql.Stmt
	dialect *database.Dialect
}

func (i *sqlInserter) Insert(ctx context.Context, values []any) error {
	if _, err := i.stmt.ExecContext(ctx, values...); err != nil {
		return fmt.Errorf("insert row: %w", i.dialect.Classify(err))
	}
	return nil
}

func (i *sqlInserter) Close() error {
	return i.stmt.Close()
}
