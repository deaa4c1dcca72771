package memory

import (
	"context"
	"testing"
)

func TestStoreReplaceRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	rows := [][]string{{"Date", "Category", "Amount", "Note"}, {"2024-01-15", "Food", "12.50", "lunch"}}
	if err := s.ReplaceRows(ctx, "expenses-alice", rows); err != nil {
		t.Fatalf("ReplaceRows() error = %v", err)
	}

	// Mutating the caller's slice must not change the stored copy.
	rows[1][3] = "changed"

	got, ok := s.Rows("expenses-alice")
	if !ok || len(got) != 2 || got[1][3] != "lunch" {
		t.Fatalf("unexpected rows: %v ok=%v", got, ok)
	}

	if err := s.ReplaceRows(ctx, "expenses-alice", rows[:1]); err != nil {
		t.Fatalf("ReplaceRows() error = %v", err)
	}
	got, _ = s.Rows("expenses-alice")
	if len(got) != 1 {
		t.Fatalf("replace should drop old rows, got %v", got)
	}
	if s.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", s.Writes())
	}
}

func TestStoreSheets(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.ReplaceRows(ctx, "expenses-bob", nil)
	_ = s.ReplaceRows(ctx, "expenses-alice", nil)

	names := s.Sheets()
	if len(names) != 2 || names[0] != "expenses-alice" || names[1] != "expenses-bob" {
		t.Fatalf("Sheets() = %v", names)
	}
	if _, ok := s.Rows("expenses-carol"); ok {
		t.Error("unknown sheet should report ok=false")
	}
}
