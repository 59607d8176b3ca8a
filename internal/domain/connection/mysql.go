package connection

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// mysqlDSN builds the DSN with the driver's own config type.
// Parameters are interpolated client side so floats are sent as text
// literals and stored exactly as written in the result files.
func mysqlDSN(b Backend) string {
	cfg := mysql.NewConfig()
	cfg.User = b.User
	cfg.Passwd = b.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
	cfg.DBName = b.Database
	cfg.InterpolateParams = true

	switch b.SSLMode {
	case "disabled":
		cfg.TLSConfig = "false"
	case "preferred":
		cfg.TLSConfig = "preferred"
	case "required":
		cfg.TLSConfig = "true"
	}

	return cfg.FormatDSN()
}

func validateMySQL(b Backend) []error {
	var errs []error
	if err := ValidateRequired("database", b.Database); err != nil {
		errs = append(errs, err)
	}
	switch b.SSLMode {
	case "", "disabled", "preferred", "required":
	default:
		errs = append(errs, &ValidationError{
			Field:   "ssl_mode",
			Message: "ssl_mode must be one of: disabled, preferred, required",
			Value:   b.SSLMode,
		})
	}
	return errs
}
