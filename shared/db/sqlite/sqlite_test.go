package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dfryer1193/storefront/shared/db"
)

func TestNewSQLiteConfig(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "explicit path",
			path: "/tmp/explicit.db",
			want: "/tmp/explicit.db",
		},
		{
			name: "default path",
			want: "./storefront.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := NewSQLiteDB(NewSQLiteConfig(tt.path))
			if database.dbPath != tt.want {
				t.Errorf("dbPath = %v, want %v", database.dbPath, tt.want)
			}
		})
	}
}

func TestSQLiteDB_Connect(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	database := NewSQLiteDB(&SQLiteConfig{Path: dbPath})

	err := database.Connect()
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()

	if database.DB() == nil {
		t.Error("DB() returned nil after Connect()")
	}

	err = database.Connect()
	if err == nil {
		t.Error("Connect() should return error when already connected")
	}
}

func TestSQLiteDB_Close(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database := NewSQLiteDB(&SQLiteConfig{Path: dbPath})

	if err := database.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := database.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if database.DB() != nil {
		t.Error("DB() should return nil after Close()")
	}
}

func TestSQLiteDB_InterfaceCompliance(t *testing.T) {
	var _ db.Database = (*SQLiteDB)(nil)
}

func TestSQLiteDB_PragmasOnEveryConnection(t *testing.T) {
	database := NewSQLiteDB(NewSQLiteConfig(filepath.Join(t.TempDir(), "pool.db")))
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		// Holding each conn forces the pool to open a fresh one.
		conn, err := database.DB().Conn(ctx)
		if err != nil {
			t.Fatalf("Conn() error = %v", err)
		}
		defer conn.Close()

		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("busy_timeout query error = %v", err)
		}
		if timeout != 10000 {
			t.Errorf("conn %d busy_timeout = %d, want 10000", i, timeout)
		}

		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_mode query error = %v", err)
		}
		if mode != "wal" {
			t.Errorf("conn %d journal_mode = %q, want wal", i, mode)
		}
	}
}

func TestSQLiteDB_ConcurrentWriters(t *testing.T) {
	database := NewSQLiteDB(NewSQLiteConfig(filepath.Join(t.TempDir(), "writers.db")))
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()
	conn := database.DB()

	if _, err := conn.Exec("CREATE TABLE counters (name TEXT PRIMARY KEY, n INTEGER NOT NULL)"); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec("INSERT INTO counters (name, n) VALUES ('hits', 0)"); err != nil {
		t.Fatal(err)
	}

	const writers, rounds = 4, 50
	var wg sync.WaitGroup
	errs := make(chan error, writers*rounds)
	for w := 0; w < writers; w++ {
		wg.Go(func() {
			for r := 0; r < rounds; r++ {
				tx, err := conn.Begin()
				if err != nil {
					errs <- err
					return
				}
				var n int
				if err := tx.QueryRow("SELECT n FROM counters WHERE name = 'hits'").Scan(&n); err != nil {
					tx.Rollback()
					errs <- err
					return
				}
				if _, err := tx.Exec("UPDATE counters SET n = ? WHERE name = 'hits'", n+1); err != nil {
					tx.Rollback()
					errs <- err
					return
				}
				if err := tx.Commit(); err != nil {
					errs <- err
					return
				}
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("writer error = %v", err)
	}

	var n int
	if err := conn.QueryRow("SELECT n FROM counters WHERE name = 'hits'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != writers*rounds {
		t.Errorf("counter = %d, want %d", n, writers*rounds)
	}
}
