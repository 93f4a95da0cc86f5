package sqlite

import (
	"path/filepath"
	"testing"
)

func connectTemp(t *testing.T) *SQLiteDB {
	t.Helper()
	database := NewSQLiteDB(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestRunMigrations(t *testing.T) {
	database := connectTemp(t)
	db := database.DB()

	for _, table := range []string{"schema_migrations", "documents", "jobs"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check %s table: %v", table, err)
		}
		if count != 1 {
			t.Errorf("%s table not created", table)
		}
	}

	for _, index := range []string{"idx_documents_collection", "idx_jobs_status"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check index: %v", err)
		}
		if count != 1 {
			t.Errorf("%s index not created", index)
		}
	}

	var version int
	var name string
	err := db.QueryRow("SELECT version, name FROM schema_migrations WHERE version = 1").Scan(&version, &name)
	if err != nil {
		t.Fatalf("Failed to query schema_migrations: %v", err)
	}
	if name != "create_documents_table" {
		t.Errorf("name = %q, want %q", name, "create_documents_table")
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	database := NewSQLiteDB(&SQLiteConfig{Path: path})
	if err := database.Connect(); err != nil {
		t.Fatalf("First Connect() error = %v", err)
	}
	database.Close()

	database = NewSQLiteDB(&SQLiteConfig{Path: path})
	if err := database.Connect(); err != nil {
		t.Fatalf("Second Connect() error = %v", err)
	}
	defer database.Close()

	var count int
	err := database.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema_migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("recorded %d migrations, want %d", count, len(migrations))
	}
}

func TestDocumentsTablePrimaryKey(t *testing.T) {
	db := connectTemp(t).DB()

	insert := `INSERT INTO documents (collection, id, body, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := db.Exec(insert, "products", "p1", `{"_id":"p1"}`); err != nil {
		t.Fatalf("Failed to insert document: %v", err)
	}
	if _, err := db.Exec(insert, "categories", "p1", `{"_id":"p1"}`); err != nil {
		t.Errorf("same id in another collection should be allowed: %v", err)
	}
	if _, err := db.Exec(insert, "products", "p1", `{"_id":"p1"}`); err == nil {
		t.Error("duplicate id in the same collection should be rejected")
	}
}
