package sheets

import (
	"context"
)

// Ports for outbound adapters.
type (
	// ExpenseMirror replaces the whole content of one tab with rows.
	// The first row is the header.
	ExpenseMirror interface {
		ReplaceRows(ctx context.Context, sheet string, rows [][]string) error
	}
)

// SheetName is the mirror tab holding username's expenses.
func SheetName(username string) string {
	return "expenses-" + username
}
