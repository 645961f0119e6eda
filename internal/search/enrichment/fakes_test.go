package enrichment

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// scriptedRows replays fixed values through pgx.Rows.
type scriptedRows struct {
	values [][]any
	next   int
}

func (r *scriptedRows) Close()                                       {}
func (r *scriptedRows) Err() error                                   { return nil }
func (r *scriptedRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *scriptedRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *scriptedRows) RawValues() [][]byte                          { return nil }
func (r *scriptedRows) Conn() *pgx.Conn                              { return nil }

func (r *scriptedRows) Next() bool {
	if r.next >= len(r.values) {
		return false
	}
	r.next++
	return true
}

func (r *scriptedRows) Values() ([]any, error) { return r.values[r.next-1], nil }

func (r *scriptedRows) Scan(dest ...any) error {
	return assign(r.values[r.next-1], dest)
}

type scriptedRow struct {
	values []any
	err    error
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []any, dest []any) error {
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(values[i]).Convert(target.Type()))
	}
	return nil
}

type call struct {
	sql  string
	args []any
}

// fakeDB answers the location query with row and dispatches Query calls on
// the table they read.
type fakeDB struct {
	row      scriptedRow
	stock    [][]any
	prices   [][]any
	queryErr error

	mu    sync.Mutex
	calls []call
}

func (d *fakeDB) record(sql string, args []any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call{sql: sql, args: args})
}

func (d *fakeDB) find(fragment string) (call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if strings.Contains(c.sql, fragment) {
			return c, true
		}
	}
	return call{}, false
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.record(sql, args)
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	if strings.Contains(sql, "stock_balances") {
		return &scriptedRows{values: d.stock}, nil
	}
	return &scriptedRows{values: d.prices}, nil
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.record(sql, args)
	return d.row
}
