// Package sqlitetest opens throwaway databases for tests.
package sqlitetest

import (
	"path/filepath"
	"testing"

	"github.com/dfryer1193/storefront/shared/db/sqlite"
)

// OpenMemory connects a migrated in-memory database and closes it when the
// test finishes.
func OpenMemory(t testing.TB) *sqlite.SQLiteDB {
	t.Helper()
	database := sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(sqlite.MemoryPath))
	if err := database.Connect(); err != nil {
		t.Fatalf("sqlitetest.OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// OpenFile connects a migrated database file under t.TempDir, for tests that
// need several pooled connections.
func OpenFile(t testing.TB) *sqlite.SQLiteDB {
	t.Helper()
	database := sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(filepath.Join(t.TempDir(), "test.db")))
	if err := database.Connect(); err != nil {
		t.Fatalf("sqlitetest.OpenFile: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
