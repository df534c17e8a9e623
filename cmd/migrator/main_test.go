package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// fakeDB records executed SQL and answers the applied check from a set.
type fakeDB struct {
	applied  map[string]bool
	executed []string
	failOn   string
}

type boolRow struct {
	v   bool
	err error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.v
	return nil
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	if strings.HasPrefix(sql, "INSERT INTO schema_migrations") {
		f.applied[args[0].(string)] = true
	} else {
		f.executed = append(f.executed, sql)
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return boolRow{v: f.applied[args[0].(string)]}
}

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestListMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"0002_b.up.sql":   "B",
		"0001_a.up.sql":   "A",
		"0001_a.down.sql": "DOWN",
		"README.md":       "docs",
	})
	if err := os.Mkdir(filepath.Join(dir, "0003_dir.up.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_a.up.sql" || names[1] != "0002_b.up.sql" {
		t.Errorf("names = %v", names)
	}
}

func TestApplyMigrations_SkipsApplied(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"0001_a.up.sql": "CREATE TABLE a();",
		"0002_b.up.sql": "CREATE TABLE b();",
	})
	conn := &fakeDB{applied: map[string]bool{"0001_a.up.sql": true}}

	applied, skipped, err := applyMigrations(context.Background(), conn, dir, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied != 1 || skipped != 1 {
		t.Errorf("applied=%d skipped=%d", applied, skipped)
	}
	if len(conn.executed) != 1 || conn.executed[0] != "CREATE TABLE b();" {
		t.Errorf("executed = %v", conn.executed)
	}
	if !conn.applied["0002_b.up.sql"] {
		t.Error("0002 should be marked applied")
	}
}

func TestApplyMigrations_StopsOnError(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"0001_a.up.sql": "CREATE TABLE a();",
		"0002_b.up.sql": "BROKEN",
		"0003_c.up.sql": "CREATE TABLE c();",
	})
	conn := &fakeDB{applied: map[string]bool{}, failOn: "BROKEN"}

	applied, _, err := applyMigrations(context.Background(), conn, dir, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "0002_b.up.sql") {
		t.Fatalf("expected error naming the migration, got %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d", applied)
	}
	if conn.applied["0003_c.up.sql"] {
		t.Error("later migrations must not run after a failure")
	}
}

func TestApplyMigrations_MissingDir(t *testing.T) {
	if _, _, err := applyMigrations(context.Background(), &fakeDB{}, filepath.Join(t.TempDir(), "nope"), zap.NewNop()); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestShippedMigrationsAreOrdered(t *testing.T) {
	names, err := listMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) < 2 || !strings.HasPrefix(names[0], "0001_") {
		t.Errorf("unexpected migrations: %v", names)
	}
}
