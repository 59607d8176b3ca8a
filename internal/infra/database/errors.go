package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/connection"
)

var (
	// ErrTableExists is returned when creating a table that already exists.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound is returned when a statement references a missing table.
	ErrTableNotFound = errors.New("table does not exist")
)

// Server error codes that mean "exists" or "missing".
const (
	mysqlTableExists  = 1050
	mysqlUnknownTable = 1051
	mysqlNoSuchTable  = 1146

	pqDuplicateTable = "42P07"
	pqUndefinedTable = "42P01"

	mssqlObjectExists    = 2714
	mssqlCannotDropTable = 3701
	mssqlInvalidObject   = 208

	oracleNameInUse      = "ORA-00955"
	oracleTableNotExists = "ORA-00942"

	sqliteAlreadyExists = "already exists"
	sqliteNoSuchTable   = "no such table"
)

// Classify wraps err with ErrTableExists or ErrTableNotFound when the
// backend reports one of those conditions. Other errors are returned unchanged.
func (d *Dialect) Classify(err error) error {
	if err == nil {
		return nil
	}
	switch d.kind(err) {
	case kindExists:
		return fmt.Errorf("%w: %v", ErrTableExists, err)
	case kindMissing:
		return fmt.Errorf("%w: %v", ErrTableNotFound, err)
	default:
		return err
	}
}

type errorKind int

const (
	kindOther errorKind = iota
	kindExists
	kindMissing
)

func (d *Dialect) kind(err error) errorKind {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlTableExists:
			return kindExists
		case mysqlUnknownTable, mysqlNoSuchTable:
			return kindMissing
		}
		return kindOther
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqDuplicateTable:
			return kindExists
		case pqUndefinedTable:
			return kindMissing
		}
		return kindOther
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case mssqlObjectExists:
			return kindExists
		case mssqlCannotDropTable, mssqlInvalidObject:
			return kindMissing
		}
		return kindOther
	}

	// go-ora and modernc sqlite only expose the server message.
	msg := err.Error()
	switch d.Type {
	case connection.DatabaseTypeOracle:
		if strings.Contains(msg, oracleNameInUse) {
			return kindExists
		}
		if strings.Contains(msg, oracleTableNotExists) {
			return kindMissing
		}
	case connection.DatabaseTypeSQLite:
		if strings.Contains(msg, sqliteNoSuchTable) {
			return kindMissing
		}
		if strings.Contains(msg, sqliteAlreadyExists) {
			return kindExists
		}
	}
	return kindOther
}
