// Package connection describes the database holding the tuning results and
// how to reach it.
package connection

import (
	"fmt"
	"strings"
)

// DatabaseType represents the type of database.
type DatabaseType string

const (
	DatabaseTypeMySQL      DatabaseType = "mysql"
	DatabaseTypeOracle     DatabaseType = "oracle"
	DatabaseTypeSQLServer  DatabaseType = "sqlserver"
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
	DatabaseTypeSQLite     DatabaseType = "sqlite"
)

// DatabaseTypes lists the supported backends.
var DatabaseTypes = []DatabaseType{
	DatabaseTypeMySQL,
	DatabaseTypePostgreSQL,
	DatabaseTypeSQLServer,
	DatabaseTypeOracle,
	DatabaseTypeSQLite,
}

// Valid reports whether t is a supported backend.
func (t DatabaseType) Valid() bool {
	for _, known := range DatabaseTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DriverName returns the database/sql driver name registered for t.
func (t DatabaseType) DriverName() string {
	switch t {
	case DatabaseTypePostgreSQL:
		return "postgres"
	default:
		return string(t)
	}
}

// DefaultPort returns the conventional port of t, or 0 for file databases.
func (t DatabaseType) DefaultPort() int {
	switch t {
	case DatabaseTypeMySQL:
		return 3306
	case DatabaseTypePostgreSQL:
		return 5432
	case DatabaseTypeSQLServer:
		return 1433
	case DatabaseTypeOracle:
		return 1521
	default:
		return 0
	}
}

// Backend holds the parameters of the results database.
type Backend struct {
	Type     DatabaseType `json:"type" toml:"type" yaml:"type"`
	Host     string       `json:"host" toml:"host" yaml:"host"`
	Port     int          `json:"port" toml:"port" yaml:"port"`
	User     string       `json:"user" toml:"user" yaml:"user"`
	Password string       `json:"password" toml:"password" yaml:"password"`
	Database string       `json:"database" toml:"database" yaml:"database"`

	// SSLMode is backend specific: disabled/preferred/required for MySQL,
	// disable/allow/prefer/require/verify-ca/verify-full for PostgreSQL.
	SSLMode string `json:"ssl_mode" toml:"ssl_mode" yaml:"ssl_mode"`

	// Path is the database file of the sqlite backend. ":memory:" is allowed.
	Path string `json:"path" toml:"path" yaml:"path"`

	// ServiceName is the Oracle service. Database is used when empty.
	ServiceName string `json:"service_name" toml:"service_name" yaml:"service_name"`

	TrustServerCertificate bool `json:"trust_server_certificate" toml:"trust_server_certificate" yaml:"trust_server_certificate"`

	// QueryTimeout bounds a whole command, in seconds. Zero means no timeout.
	QueryTimeout int `json:"query_timeout" toml:"query_timeout" yaml:"query_timeout"`
}

// Remote reports whether the backend is reached over the network.
func (b Backend) Remote() bool {
	return b.Type != DatabaseTypeSQLite
}

// WithEndpoint returns a copy of b pointing at host:port, used when the
// connection goes through a tunnel.
func (b Backend) WithEndpoint(host string, port int) Backend {
	b.Host = host
	b.Port = port
	return b
}

// DSN generates the driver connection string, including the password.
func (b Backend) DSN() (string, error) {
	switch b.Type {
	case DatabaseTypeMySQL:
		return mysqlDSN(b), nil
	case DatabaseTypePostgreSQL:
		return postgresDSN(b), nil
	case DatabaseTypeSQLServer:
		return sqlserverDSN(b), nil
	case DatabaseTypeOracle:
		return oracleDSN(b), nil
	case DatabaseTypeSQLite:
		return sqliteDSN(b), nil
	default:
		return "", fmt.Errorf("unsupported database type: %q", b.Type)
	}
}

// Redact returns a connection description without credentials.
// Format: "type (***@host:port/database)" or "sqlite (path)".
func (b Backend) Redact() string {
	if b.Type == DatabaseTypeSQLite {
		return fmt.Sprintf("sqlite (%s)", b.Path)
	}
	database := b.Database
	if b.Type == DatabaseTypeOracle && b.ServiceName != "" {
		database = b.ServiceName
	}
	return fmt.Sprintf("%s (***@%s:%d/%s)", b.Type, b.Host, b.Port, database)
}

// Validate validates the backend parameters.
// Returns a MultiValidationError listing every invalid field.
func (b Backend) Validate() error {
	if !b.Type.Valid() {
		names := make([]string, len(DatabaseTypes))
		for i, t := range DatabaseTypes {
			names[i] = string(t)
		}
		return &MultiValidationError{Errors: []error{&ValidationError{
			Field:   "type",
			Message: "type must be one of: " + strings.Join(names, ", "),
			Value:   string(b.Type),
		}}}
	}

	var errs []error
	if b.Type == DatabaseTypeSQLite {
		if err := ValidateRequired("path", b.Path); err != nil {
			errs = append(errs, err)
		}
	} else {
		if err := ValidateRequired("host", b.Host); err != nil {
			errs = append(errs, err)
		}
		if err := ValidateRequired("user", b.User); err != nil {
			errs = append(errs, err)
		}
		if err := ValidatePort(b.Port); err != nil {
			errs = append(errs, err)
		}
	}

	switch b.Type {
	case DatabaseTypeMySQL:
		errs = append(errs, validateMySQL(b)...)
	case DatabaseTypePostgreSQL:
		errs = append(errs, validatePostgres(b)...)
	case DatabaseTypeSQLServer:
		errs = append(errs, validateSQLServer(b)...)
	case DatabaseTypeOracle:
		errs = append(errs, validateOracle(b)...)
	}

	if b.QueryTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "query_timeout",
			Message: "query_timeout must not be negative",
			Value:   b.QueryTimeout,
		})
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

// ValidatePort validates that a port number is in valid range (1-65535).
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{
			Field:   "port",
			Message: "port must be between 1 and 65535",
			Value:   port,
		}
	}
	return nil
}

// ValidateRequired validates that a required string field is not empty.
func ValidateRequired(fieldName, value string) error {
	if value == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: fieldName + " is required",
		}
	}
	return nil
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Value)
	}
	return e.Message
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []error
}

func (e *MultiValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *MultiValidationError) Unwrap() []error {
	return e.Errors
}
