package storage

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingObserver captures observed operations.
type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingObserver) ObserveQuery(op string, _ time.Duration) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

func TestTimedDB_ReportsEveryCall(t *testing.T) {
	db := openTestDB(t)
	obs := &recordingObserver{}
	tdb := NewTimedDB(db, obs, 0)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO marketplace (id, name, slug, created_at, updated_at) VALUES ('m1', 'Finance', 'finance', '', '')"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id FROM marketplace")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()

	var name string
	if err := tdb.QueryRowContext(ctx, "SELECT name FROM marketplace WHERE id = ?", "m1").Scan(&name); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if name != "Finance" {
		t.Errorf("name = %q", name)
	}

	tx, err := tdb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	tx.Rollback()

	want := []string{"exec", "query", "query_row", "begin"}
	if len(obs.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", obs.ops, want)
	}
	for i := range want {
		if obs.ops[i] != want[i] {
			t.Errorf("ops[%d] = %q, want %q", i, obs.ops[i], want[i])
		}
	}
}

func TestTimedDB_NilObserver(t *testing.T) {
	tdb := NewTimedDB(openTestDB(t), nil, time.Nanosecond)
	if _, err := tdb.ExecContext(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if tdb.RawDB() == nil {
		t.Error("RawDB returned nil")
	}
}
