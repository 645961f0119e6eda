package querylog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingDB struct {
	sql  string
	args []any
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sql = sql
	d.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (d *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not used")
}

func TestEntryValidate(t *testing.T) {
	if err := (Entry{Source: "primary"}).Validate(); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}
	if err := (Entry{}).Validate(); err == nil {
		t.Fatalf("expected missing source error")
	}
	if err := (Entry{Source: "fallback", ResultCount: -1}).Validate(); err == nil {
		t.Fatalf("expected negative count error")
	}
}

func TestInsertUsesServerTimestampByDefault(t *testing.T) {
	db := &recordingDB{}
	repo := New(db)

	err := repo.Insert(context.Background(), Entry{Query: "розетка", Source: "fallback", CityID: 3, DegradedReason: "primary_timeout"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(db.sql, "created_at") {
		t.Fatalf("expected DB-side timestamp, got %s", db.sql)
	}
	if len(db.args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(db.args))
	}
	if city, ok := db.args[3].(*int64); !ok || city == nil || *city != 3 {
		t.Fatalf("expected city pointer, got %#v", db.args[3])
	}
	if reqID, ok := db.args[6].(*string); !ok || reqID != nil {
		t.Fatalf("expected NULL request id, got %#v", db.args[6])
	}
}

func TestInsertWithExplicitTimestamp(t *testing.T) {
	db := &recordingDB{}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := New(db).Insert(context.Background(), Entry{Source: "primary", CreatedAt: &at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.args) != 8 || db.args[7] != at {
		t.Fatalf("expected timestamp as 8th arg, got %v", db.args)
	}
}

func TestInsertStoresCleanedQuery(t *testing.T) {
	db := &recordingDB{}

	if err := New(db).Insert(context.Background(), Entry{Query: "  <b>кабель</b>\n ввг ", Source: "primary"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.args[0] != "кабель ввг" {
		t.Fatalf("expected cleaned query, got %#v", db.args[0])
	}
}
