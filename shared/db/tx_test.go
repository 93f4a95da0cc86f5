package db

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT UNIQUE)`)
	if err != nil {
		t.Fatalf("Failed to create test table: %v", err)
	}

	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count); err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	return count
}

func TestRunInTransaction_NewTransaction(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	err := RunInTransaction(ctx, db, func(txCtx context.Context) error {
		if _, ok := GetTx(txCtx); !ok {
			t.Error("Expected transaction in context")
		}

		_, err := GetExecutor(txCtx, db).ExecContext(txCtx, "INSERT INTO test_table (value) VALUES (?)", "test")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}

	if got := countRows(t, db); got != 1 {
		t.Errorf("Expected 1 row, got %d", got)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	err := RunInTransaction(ctx, db, func(txCtx context.Context) error {
		_, err := GetExecutor(txCtx, db).ExecContext(txCtx, "INSERT INTO test_table (value) VALUES (?)", "test")
		if err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	if err == nil {
		t.Fatal("Expected error from RunInTransaction")
	}

	if got := countRows(t, db); got != 0 {
		t.Errorf("Expected 0 rows (rollback), got %d", got)
	}
}

func TestRunInTransaction_SwallowedStatementError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	failures := 0
	err := RunInTransaction(ctx, db, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, db)
		for _, v := range []string{"a", "a", "b"} {
			if _, err := exec.ExecContext(txCtx, "INSERT INTO test_table (value) VALUES (?)", v); err != nil {
				failures++
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}

	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
	if got := countRows(t, db); got != 2 {
		t.Errorf("Expected 2 rows, got %d", got)
	}
}

func TestRunInTransaction_NestedTransaction(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	err := RunInTransaction(ctx, db, func(outerCtx context.Context) error {
		_, err := GetExecutor(outerCtx, db).ExecContext(outerCtx, "INSERT INTO test_table (value) VALUES (?)", "outer")
		if err != nil {
			return err
		}

		return RunInTransaction(outerCtx, db, func(innerCtx context.Context) error {
			outerTx, _ := GetTx(outerCtx)
			innerTx, _ := GetTx(innerCtx)
			if outerTx != innerTx {
				t.Error("Expected nested transaction to reuse outer transaction")
			}

			_, err := GetExecutor(innerCtx, db).ExecContext(innerCtx, "INSERT INTO test_table (value) VALUES (?)", "inner")
			return err
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}

	if got := countRows(t, db); got != 2 {
		t.Errorf("Expected 2 rows, got %d", got)
	}
}

func TestRunInTransaction_NestedRollback(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	err := RunInTransaction(ctx, db, func(outerCtx context.Context) error {
		_, err := GetExecutor(outerCtx, db).ExecContext(outerCtx, "INSERT INTO test_table (value) VALUES (?)", "outer")
		if err != nil {
			return err
		}

		return RunInTransaction(outerCtx, db, func(innerCtx context.Context) error {
			_, err := GetExecutor(innerCtx, db).ExecContext(innerCtx, "INSERT INTO test_table (value) VALUES (?)", "inner")
			if err != nil {
				return err
			}
			return sql.ErrTxDone
		})
	})
	if err == nil {
		t.Fatal("Expected error from RunInTransaction")
	}

	if got := countRows(t, db); got != 0 {
		t.Errorf("Expected 0 rows (complete rollback), got %d", got)
	}
}

func TestGetExecutor_WithTransaction(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if executor := GetExecutor(WithTx(ctx, tx), db); executor != tx {
		t.Error("Expected executor to be the transaction")
	}
}

func TestGetExecutor_WithoutTransaction(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if executor := GetExecutor(context.Background(), db); executor != db {
		t.Error("Expected executor to be the database")
	}
}
