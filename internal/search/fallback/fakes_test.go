package fallback

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

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
func (r *scriptedRows) Values() ([]any, error)                       { return r.values[r.next-1], nil }

func (r *scriptedRows) Next() bool {
	if r.next >= len(r.values) {
		return false
	}
	r.next++
	return true
}

func (r *scriptedRows) Scan(dest ...any) error {
	return assign(r.values[r.next-1], dest)
}

type scriptedRow []any

func (r scriptedRow) Scan(dest ...any) error { return assign(r, dest) }

func assign(values []any, dest []any) error {
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(values[i]).Convert(target.Type()))
	}
	return nil
}

// fakeDB returns rows for the page query and count for the total query.
type fakeDB struct {
	rows     [][]any
	count    int64
	queryErr error

	querySQL  string
	queryArgs []any
	countSQL  string
	countArgs []any
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.querySQL, d.queryArgs = sql, args
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	return &scriptedRows{values: d.rows}, nil
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.countSQL, d.countArgs = sql, args
	return scriptedRow{d.count}
}
