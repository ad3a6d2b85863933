package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeConn records executed statements so tests can assert on the exact
// traffic a session generates without a live server.
type fakeConn struct {
	execs   []string
	queries []string
	rows    *fakeRows
	execErr error
	tx      *fakeTx
	closed  bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	c.execs = append(c.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	c.queries = append(c.queries, sql)
	if c.rows == nil {
		c.rows = &fakeRows{}
	}
	return c.rows, nil
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	c.tx = &fakeTx{}
	return c.tx, nil
}

func (c *fakeConn) Close(context.Context) error {
	c.closed = true
	return nil
}

type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	idx    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.idx-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		switch v := d.(type) {
		case *bool:
			*v = row[i].(bool)
		case *string:
			*v = row[i].(string)
		case *int64:
			*v = row[i].(int64)
		default:
			return fmt.Errorf("fake scan: unsupported dest %T", d)
		}
	}
	return nil
}

// fakeTx implements pgx.Tx for the execution paths the session exercises.
type fakeTx struct {
	execs      []string
	execErr    error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	t.execs = append(t.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Conn() *pgx.Conn                       { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects        { return pgx.LargeObjects{} }

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, fmt.Errorf("fake tx: copy not supported")
}

func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, fmt.Errorf("fake tx: prepare not supported")
}

func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return &fakeRows{}, nil
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

// newFakeSession wires a session to a fake connection and reports whether
// connect was ever called.
func newFakeSession(conn *fakeConn) (*Session, *bool) {
	s := New("postgres://fake", nil)
	connected := false
	s.SetConnectFunc(func(context.Context, string) (Conn, error) {
		connected = true
		return conn, nil
	})
	return s, &connected
}
