package database

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/connection"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/scenario"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
)

// ErrInvalidIdentifier is returned for table or column names that cannot be
// used unquoted in every supported backend.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// maxIdentifierLength is the smallest limit among the backends (MySQL).
const maxIdentifierLength = 64

// ValidateIdentifier checks that name is a plain SQL identifier.
func ValidateIdentifier(name string) error {
	if len(name) > maxIdentifierLength || !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// Dialect holds the SQL differences between the supported backends.
type Dialect struct {
	Type connection.DatabaseType

	placeholder   func(n int) string
	openQuote     string
	closeQuote    string
	autoIncrement string
	intType       string
	boolType      string
	floatType     string
	stringType    string
	stddevPop     string
	listTables    string
}

var dialects = map[connection.DatabaseType]*Dialect{
	connection.DatabaseTypeMySQL: {
		Type:          connection.DatabaseTypeMySQL,
		placeholder:   func(int) string { return "?" },
		openQuote:     "`",
		closeQuote:    "`",
		autoIncrement: "INTEGER NOT NULL AUTO_INCREMENT PRIMARY KEY",
		intType:       "BIGINT",
		boolType:      "TINYINT",
		floatType:     "DOUBLE",
		stringType:    "VARCHAR",
		stddevPop:     "STDDEV_POP",
		listTables:    "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'",
	},
	connection.DatabaseTypePostgreSQL: {
		Type:          connection.DatabaseTypePostgreSQL,
		placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
		openQuote:     `"`,
		closeQuote:    `"`,
		autoIncrement: "SERIAL PRIMARY KEY",
		intType:       "BIGINT",
		boolType:      "SMALLINT",
		floatType:     "DOUBLE PRECISION",
		stringType:    "VARCHAR",
		stddevPop:     "STDDEV_POP",
		listTables:    "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema()",
	},
	connection.DatabaseTypeSQLServer: {
		Type:          connection.DatabaseTypeSQLServer,
		placeholder:   func(n int) string { return "@p" + strconv.Itoa(n) },
		openQuote:     "[",
		closeQuote:    "]",
		autoIncrement: "INT IDENTITY(1,1) PRIMARY KEY",
		intType:       "BIGINT",
		boolType:      "SMALLINT",
		floatType:     "FLOAT",
		stringType:    "NVARCHAR",
		stddevPop:     "STDEVP",
		listTables:    "SELECT name FROM sys.tables",
	},
	connection.DatabaseTypeOracle: {
		Type:          connection.DatabaseTypeOracle,
		placeholder:   func(n int) string { return ":" + strconv.Itoa(n) },
		openQuote:     `"`,
		closeQuote:    `"`,
		autoIncrement: "NUMBER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
		intType:       "NUMBER(19)",
		boolType:      "NUMBER(1)",
		floatType:     "BINARY_DOUBLE",
		stringType:    "VARCHAR2",
		stddevPop:     "STDDEV_POP",
		listTables:    "SELECT table_name FROM user_tables",
	},
	connection.DatabaseTypeSQLite: {
		Type:          connection.DatabaseTypeSQLite,
		placeholder:   func(int) string { return "?" },
		openQuote:     `"`,
		closeQuote:    `"`,
		autoIncrement: "INTEGER PRIMARY KEY AUTOINCREMENT",
		intType:       "INTEGER",
		boolType:      "INTEGER",
		floatType:     "REAL",
		stringType:    "VARCHAR",
		listTables:    "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'",
	},
}

// DialectFor returns the dialect of a backend type.
func DialectFor(t connection.DatabaseType) (*Dialect, error) {
	d, ok := dialects[t]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %q", t)
	}
	return d, nil
}

// Placeholder returns the bind parameter marker for the n-th argument (1-based).
func (d *Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

// Quote validates and quotes an identifier.
func (d *Dialect) Quote(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return d.openQuote + name + d.closeQuote, nil
}

// MustQuote quotes a name that is known to be valid, such as a variant column.
func (d *Dialect) MustQuote(name string) string {
	q, err := d.Quote(name)
	if err != nil {
		panic(err)
	}
	return q
}

// HasStdDevPop reports whether the backend has a population stddev aggregate.
func (d *Dialect) HasStdDevPop() bool {
	return d.stddevPop != ""
}

// StdDevPop returns the population stddev aggregate function name.
func (d *Dialect) StdDevPop() string {
	return d.stddevPop
}

// ListTablesSQL returns a query producing one table name per row.
func (d *Dialect) ListTablesSQL() string {
	return d.listTables
}

// CreateTableSQL returns the DDL of a results table of variant v.
// Every numeric column is NOT NULL and non-negative, booleans are 0 or 1.
func (d *Dialect) CreateTableSQL(table string, v *schema.Variant) (string, error) {
	name, err := d.Quote(table)
	if err != nil {
		return "", err
	}

	defs := []string{d.MustQuote(schema.ColumnID) + " " + d.autoIncrement}
	for _, c := range v.Columns {
		col := d.MustQuote(c.Name)
		switch c.Type {
		case schema.TypeBool:
			defs = append(defs, fmt.Sprintf("%s %s NOT NULL CHECK (%s IN (0, 1))", col, d.boolType, col))
		case schema.TypeFloat:
			defs = append(defs, fmt.Sprintf("%s %s NOT NULL CHECK (%s >= 0)", col, d.floatType, col))
		default:
			defs = append(defs, fmt.Sprintf("%s %s NOT NULL CHECK (%s >= 0)", col, d.intType, col))
		}
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", ")), nil
}

// CreateCatalogSQL returns the DDL of the table recording each table's variant.
func (d *Dialect) CreateCatalogSQL() string {
	return fmt.Sprintf("CREATE TABLE %s (%s %s(%d) NOT NULL PRIMARY KEY, %s %s(16) NOT NULL)",
		d.MustQuote(CatalogTable),
		d.MustQuote("name"), d.stringType, maxIdentifierLength,
		d.MustQuote("variant"), d.stringType)
}

// InsertSQL returns a parameterized INSERT of all input columns of v.
func (d *Dialect) InsertSQL(table string, v *schema.Variant) (string, error) {
	name, err := d.Quote(table)
	if err != nil {
		return "", err
	}

	cols := make([]string, len(v.Columns))
	marks := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		cols[i] = d.MustQuote(c.Name)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(cols, ", "), strings.Join(marks, ", ")), nil
}

// Query accumulates SQL text and bind arguments, numbering placeholders in
// the dialect's style.
type Query struct {
	dialect *Dialect
	sb      strings.Builder
	args    []any
}

// NewQuery starts an empty query.
func (d *Dialect) NewQuery() *Query {
	return &Query{dialect: d}
}

// Write appends SQL text.
func (q *Query) Write(parts ...string) *Query {
	for _, p := range parts {
		q.sb.WriteString(p)
	}
	return q
}

// Arg appends a bind parameter.
func (q *Query) Arg(v any) *Query {
	q.args = append(q.args, v)
	q.sb.WriteString(q.dialect.Placeholder(len(q.args)))
	return q
}

// Where appends " WHERE p1 AND p2 ..." for a non-empty filter.
func (q *Query) Where(filter scenario.Filter) error {
	if len(filter) == 0 {
		return nil
	}
	q.Write(" WHERE ")
	return q.And(filter)
}

// And appends the predicates of filter joined by AND, without a leading keyword.
func (q *Query) And(filter scenario.Filter) error {
	for i, p := range filter {
		col, err := q.dialect.Quote(p.Column)
		if err != nil {
			return err
		}
		if p.Op != scenario.OpEqual {
			return fmt.Errorf("unsupported operator %q", p.Op)
		}
		if i > 0 {
			q.Write(" AND ")
		}
		q.Write(col, " ", string(p.Op), " ").Arg(p.Value)
	}
	return nil
}

// SQL returns the accumulated statement.
func (q *Query) SQL() string {
	return q.sb.String()
}

// Args returns the accumulated bind arguments.
func (q *Query) Args() []any {
	return q.args
}
