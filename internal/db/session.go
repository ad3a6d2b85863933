// Package db owns a single database connection and provides safety-gated
// SQL execution, read-only querying, dry-run simulation, transactions, and
// file-based migrations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"db-auditor/internal/audit"
	"db-auditor/internal/config"
	"db-auditor/internal/safety"
	"db-auditor/internal/telemetry"
)

// ErrNotSelect is returned when a non-SELECT statement reaches Query.
var ErrNotSelect = errors.New("query only accepts SELECT statements; use Execute for writes")

// ExecOptions carry the safety flags for one gated execution.
type ExecOptions struct {
	Confirm          bool
	IKnowWhatImDoing bool
	DryRun           bool
}

// Session wraps one logical database session. The connection opens lazily
// on first use and the session must not be shared across goroutines without
// external locking.
type Session struct {
	project string
	dsn     string
	connect ConnectFunc
	conn    Conn
	audit   *audit.Log
}

// New creates a session for an already-resolved connection string.
func New(dsn string, auditLog *audit.Log) *Session {
	return &Session{dsn: dsn, connect: defaultConnect, audit: auditLog}
}

// NewForProject resolves the project alias to a connection string through
// the configured environment-variable convention.
func NewForProject(cfg config.Config, project string, auditLog *audit.Log) (*Session, error) {
	dsn, err := cfg.ResolveDSN(project)
	if err != nil {
		return nil, err
	}
	s := New(dsn, auditLog)
	s.project = project
	return s, nil
}

// SetConnectFunc overrides the driver factory. Tests use this to inject a
// fake connection.
func (s *Session) SetConnectFunc(f ConnectFunc) {
	s.connect = f
}

func (s *Session) acquire(ctx context.Context) (Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.project, err)
	}
	s.conn = conn
	return conn, nil
}

// Close releases the underlying connection if one was opened.
func (s *Session) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	return err
}

// Execute runs sql through the safety gate and then against the database.
// Dry runs pass the identical safety check but never touch the connection.
// Every real execution appends to the audit log. Failed statements are
// never retried.
func (s *Session) Execute(ctx context.Context, sql string, opts ExecOptions) error {
	conn := func(ctx context.Context) (execer, error) {
		c, err := s.acquire(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return s.executeGated(ctx, conn, sql, opts)
}

func (s *Session) executeGated(ctx context.Context, acquire func(context.Context) (execer, error), sql string, opts ExecOptions) error {
	tier, err := safety.Check(sql, opts.Confirm, opts.IKnowWhatImDoing)
	if err != nil {
		telemetry.BlockedCounter.Inc()
		return err
	}
	if opts.DryRun {
		telemetry.DryRunCounter.Inc()
		log.Printf("[DRY RUN] tier=%s sql=%s", tier, strings.TrimSpace(sql))
		return nil
	}
	ex, err := acquire(ctx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, sql); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	telemetry.ExecuteCounter.Inc()
	if s.audit != nil {
		if err := s.audit.Append(tier.String(), sql); err != nil {
			log.Printf("audit append failed: %v", err)
		}
	}
	return nil
}

// Query runs a read-only statement and returns rows as column-name keyed
// maps. Anything that is not a SELECT is rejected before reaching the
// database; Query and Execute are separate contracts on purpose.
func (s *Session) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT") {
		return nil, ErrNotSelect
	}
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rowsToMaps(rows)
}

// TableExists reports whether a table is present in the public schema.
func (s *Session) TableExists(ctx context.Context, name string) (bool, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	rows, err := conn.Query(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		name)
	if err != nil {
		return false, fmt.Errorf("table exists: %w", err)
	}
	defer rows.Close()
	exists := false
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, fmt.Errorf("table exists: %w", err)
		}
	}
	return exists, rows.Err()
}

// Column describes one column from catalog introspection.
type Column struct {
	Name     string `json:"column"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// GetSchema returns the column layout of a table.
func (s *Session) GetSchema(ctx context.Context, table string) ([]Column, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx,
		`SELECT column_name, data_type, is_nullable FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`,
		table)
	if err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}
	defer rows.Close()
	var cols []Column
	for rows.Next() {
		var name, typ, nullable string
		if err := rows.Scan(&name, &typ, &nullable); err != nil {
			return nil, fmt.Errorf("get schema: %w", err)
		}
		cols = append(cols, Column{Name: name, Type: typ, Nullable: nullable == "YES"})
	}
	return cols, rows.Err()
}

// Tx is a transaction-scoped handle for gated execution.
type Tx struct {
	session *Session
	ex      execer
}

// Execute runs a gated statement inside the transaction.
func (t *Tx) Execute(ctx context.Context, sql string, opts ExecOptions) error {
	return t.session.executeGated(ctx, func(context.Context) (execer, error) { return t.ex, nil }, sql, opts)
}

// Transaction runs fn inside a transaction, committing on success and
// rolling back on error so no partial DDL survives a failed block.
func (s *Session) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	pgxTx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Tx{session: s, ex: pgxTx}); err != nil {
		_ = pgxTx.Rollback(ctx)
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
