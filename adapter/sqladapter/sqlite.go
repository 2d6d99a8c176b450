package sqladapter

import (
	// Registers the bundled, cgo-free SQLite driver under the name
	// "sqlite".
	_ "modernc.org/sqlite"
)

// OpenSQLite opens a SQLite-backed adapter with the bundled driver.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(dsn string) (*Adapter, error) {
	return Open("sqlite", dsn)
}
