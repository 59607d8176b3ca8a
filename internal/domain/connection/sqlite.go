package connection

import "strings"

// sqliteDSN returns the modernc.org/sqlite DSN for the database file.
// WAL and a busy timeout let a report wait for a concurrent load instead of
// failing with SQLITE_BUSY.
func sqliteDSN(b Backend) string {
	if b.Path == ":memory:" || strings.HasPrefix(b.Path, "file:") {
		return b.Path
	}
	return "file:" + b.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
