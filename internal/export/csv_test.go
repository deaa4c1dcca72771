package export

import (
	"bytes"
	"testing"

	"savingsbuddy/internal/core"
)

func TestWriteCSV(t *testing.T) {
	food := int64(1)
	expenses := []core.Expense{
		{ID: 2, CategoryID: &food, CategoryName: "Food", Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 1, 15), Note: "lunch"},
		{ID: 1, Amount: core.Money{Cents: 300}, Date: core.NewDate(2024, 1, 2), Note: "bus, return"},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, expenses); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "Date,Category,Amount,Note\n" +
		"2024-01-15,Food,12.50,lunch\n" +
		"2024-01-02,,3.00,\"bus, return\"\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if buf.String() != "Date,Category,Amount,Note\n" {
		t.Errorf("empty export should be header only, got %q", buf.String())
	}
}

func TestRows(t *testing.T) {
	rows := Rows([]core.Expense{{Amount: core.Money{Cents: -50}, Date: core.NewDate(2024, 3, 1)}})
	if len(rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(rows))
	}
	if rows[0][0] != "Date" || rows[1][2] != "-0.50" {
		t.Errorf("unexpected rows: %v", rows)
	}

	// The header must not alias the package variable.
	rows[0][0] = "changed"
	if Header[0] != "Date" {
		t.Error("Rows() leaked the shared header slice")
	}
}
