package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"db-auditor/internal/telemetry"
)

// RunMigration executes one SQL file as a single safety-gated unit.
func (s *Session) RunMigration(ctx context.Context, path string, opts ExecOptions) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("migration not found: %s", path)
		}
		return fmt.Errorf("read migration %s: %w", path, err)
	}
	sql := strings.TrimSpace(string(content))
	if sql == "" {
		return nil
	}
	if err := s.Execute(ctx, sql, opts); err != nil {
		return fmt.Errorf("migration %s: %w", filepath.Base(path), err)
	}
	telemetry.MigrationsRun.Inc()
	return nil
}

// RunMigrationsFromDir executes every .sql file in dir in lexicographic
// filename order, stopping at the first failure. The 001_*, 002_* naming
// convention therefore determines execution order; that ordering is a hard
// contract.
func (s *Session) RunMigrationsFromDir(ctx context.Context, dir string, opts ExecOptions) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		log.Printf("applying migration %s", name)
		if err := s.RunMigration(ctx, filepath.Join(dir, name), opts); err != nil {
			return err
		}
	}
	return nil
}
