package connection

import (
	"fmt"
	"strings"
)

var postgresSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// postgresDSN generates a lib/pq keyword/value connection string.
// Format: host=h port=p dbname=d user=u password=pw sslmode=m
func postgresDSN(b Backend) string {
	sslMode := b.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	params := []string{
		"host=" + pqQuote(b.Host),
		fmt.Sprintf("port=%d", b.Port),
		"user=" + pqQuote(b.User),
		"sslmode=" + sslMode,
	}
	if b.Password != "" {
		params = append(params, "password="+pqQuote(b.Password))
	}
	if b.Database != "" {
		params = append(params, "dbname="+pqQuote(b.Database))
	}
	return strings.Join(params, " ")
}

// pqQuote quotes a value for the keyword/value format.
func pqQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func validatePostgres(b Backend) []error {
	if b.SSLMode != "" && !postgresSSLModes[b.SSLMode] {
		return []error{&ValidationError{
			Field:   "ssl_mode",
			Message: "ssl_mode must be one of: disable, allow, prefer, require, verify-ca, verify-full",
			Value:   b.SSLMode,
		}}
	}
	return nil
}
