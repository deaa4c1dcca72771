// Package export renders a user's expenses as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"savingsbuddy/internal/core"
)

// Filename is offered to browsers downloading the export.
const Filename = "expenses.csv"

// Header is the first CSV row.
var Header = []string{"Date", "Category", "Amount", "Note"}

// Row renders one expense. Uncategorised expenses get an empty category.
func Row(e core.Expense) []string {
	return []string{e.Date.String(), e.CategoryName, e.Amount.String(), e.Note}
}

// Rows returns the header followed by one row per expense, in the given order.
func Rows(expenses []core.Expense) [][]string {
	out := make([][]string, 0, len(expenses)+1)
	out = append(out, append([]string(nil), Header...))
	for _, e := range expenses {
		out = append(out, Row(e))
	}
	return out
}

// WriteCSV writes the header and expenses to w.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		if err := cw.Write(Row(e)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
