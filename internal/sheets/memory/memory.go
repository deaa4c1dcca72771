// Package memory is an in-process ExpenseMirror for tests and for running
// the worker without Google credentials.
package memory

import (
	"context"
	"sort"
	"sync"

	ports "savingsbuddy/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	sheets map[string][][]string
	writes int
}

var _ ports.ExpenseMirror = (*Store)(nil)

func New() *Store {
	return &Store{sheets: make(map[string][][]string)}
}

// ReplaceRows stores a copy of rows under sheet.
func (s *Store) ReplaceRows(_ context.Context, sheet string, rows [][]string) error {
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet] = cp
	s.writes++
	return nil
}

// Rows returns a copy of the rows last written to sheet.
func (s *Store) Rows(sheet string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.sheets[sheet]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, true
}

// Sheets lists the tab names in sorted order.
func (s *Store) Sheets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sheets))
	for name := range s.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Writes counts ReplaceRows calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
