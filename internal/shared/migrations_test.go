package shared

import (
	"database/sql"
	"slices"
	"testing"
)

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(db *sql.DB, table string) bool {
	_, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1")
	return err == nil
}

func TestMigrations(t *testing.T) {
	t.Run("embedded files pair up in order", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("loadMigrations: %v", err)
		}
		if len(migrations) < 2 {
			t.Fatalf("expected at least two migrations, got %d", len(migrations))
		}
		if !slices.IsSortedFunc(migrations, func(a, b Migration) int { return a.Version - b.Version }) {
			t.Error("migrations are not sorted by version")
		}
		if migrations[0].Name != "create_tables" {
			t.Errorf("first migration name = %q", migrations[0].Name)
		}
	})

	t.Run("run applies everything once", func(t *testing.T) {
		db := memoryDB(t)
		for range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("RunMigrations: %v", err)
			}
		}

		status, err := MigrationStatus(db)
		if err != nil {
			t.Fatalf("MigrationStatus: %v", err)
		}
		if status.Pending() != 0 || status.Applied != status.Available {
			t.Errorf("status = %+v, want nothing pending", status)
		}

		for _, table := range []string{"libraries", "library_songs", "rolls", "youtube_connections"} {
			if !tableExists(db, table) {
				t.Errorf("table %s missing after migrations", table)
			}
		}
	})

	t.Run("status on a fresh database", func(t *testing.T) {
		status, err := MigrationStatus(memoryDB(t))
		if err != nil {
			t.Fatalf("MigrationStatus: %v", err)
		}
		if status.Applied != 0 || status.Pending() != status.Available {
			t.Errorf("status = %+v, want all pending", status)
		}
	})

	t.Run("rollback reverts newest first", func(t *testing.T) {
		db := memoryDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations: %v", err)
		}

		m, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("RollbackMigration: %v", err)
		}
		if m.Name != "youtube_connections" {
			t.Errorf("rolled back %q, want youtube_connections", m.Name)
		}
		if tableExists(db, "youtube_connections") {
			t.Error("youtube_connections should be dropped")
		}
		if !tableExists(db, "rolls") {
			t.Error("rolls should survive")
		}

		if _, err := RollbackMigration(db); err != nil {
			t.Fatalf("second rollback: %v", err)
		}
		if _, err := RollbackMigration(db); err == nil {
			t.Error("expected an error with nothing left to roll back")
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("re-running migrations: %v", err)
		}
		if !tableExists(db, "youtube_connections") {
			t.Error("youtube_connections should be restored")
		}
	})

	t.Run("statements drop comments", func(t *testing.T) {
		got := statements("-- header\nCREATE TABLE a (x INT); -- trailing\n\nINSERT INTO a VALUES (1);\n")
		want := []string{"CREATE TABLE a (x INT)", "INSERT INTO a VALUES (1)"}
		if !slices.Equal(got, want) {
			t.Errorf("statements = %q, want %q", got, want)
		}
	})
}
