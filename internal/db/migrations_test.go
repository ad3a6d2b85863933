package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestRunMigrationMissingFile(t *testing.T) {
	s, _ := newFakeSession(&fakeConn{})
	err := s.RunMigration(context.Background(), filepath.Join(t.TempDir(), "nope.sql"), ExecOptions{})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRunMigrationsFromDirLexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	// written out of order on purpose
	writeFile(t, filepath.Join(dir, "002_b.sql"), "CREATE TABLE b (id int)")
	writeFile(t, filepath.Join(dir, "001_a.sql"), "CREATE TABLE a (id int)")
	writeFile(t, filepath.Join(dir, "003_c.sql"), "CREATE TABLE c (id int)")
	writeFile(t, filepath.Join(dir, "README.md"), "not a migration")

	conn := &fakeConn{}
	s, _ := newFakeSession(conn)
	if err := s.RunMigrationsFromDir(context.Background(), dir, ExecOptions{}); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if len(conn.execs) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(conn.execs))
	}
	for i, want := range []string{"TABLE a", "TABLE b", "TABLE c"} {
		if !strings.Contains(conn.execs[i], want) {
			t.Fatalf("migration %d out of order: %q", i, conn.execs[i])
		}
	}
}

func TestRunMigrationsStopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "001_a.sql"), "CREATE TABLE a (id int)")
	// blocked: destructive without override
	writeFile(t, filepath.Join(dir, "002_b.sql"), "DROP TABLE a")
	writeFile(t, filepath.Join(dir, "003_c.sql"), "CREATE TABLE c (id int)")

	conn := &fakeConn{}
	s, _ := newFakeSession(conn)
	err := s.RunMigrationsFromDir(context.Background(), dir, ExecOptions{})
	if err == nil {
		t.Fatalf("expected failure at second migration")
	}
	if len(conn.execs) != 1 {
		t.Fatalf("later migrations ran after a failure: %v", conn.execs)
	}
}
