package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"savingsbuddy/internal/core"
)

const expenseSelect = `
	SELECT e.id, e.user_id, e.category_id, COALESCE(c.name, ''), e.amount_cents, e.date, e.note
	FROM expenses e
	LEFT JOIN categories c ON c.id = e.category_id`

func scanExpense(s rowScanner) (core.Expense, error) {
	var e core.Expense
	var categoryID sql.NullInt64
	var date string
	if err := s.Scan(&e.ID, &e.UserID, &categoryID, &e.CategoryName, &e.Amount.Cents, &date, &e.Note); err != nil {
		return core.Expense{}, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		e.CategoryID = &id
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = d
	return e, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// categoryChoiceError reports an unknown category as a field error.
func categoryChoiceError() error {
	v := core.NewValidationError()
	v.Add("category", "Select a valid choice. That choice is not one of the available choices.")
	return v
}

// CreateExpense stores e for e.UserID and returns it with its new id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category_id, amount_cents, date, note) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, nullableID(e.CategoryID), e.Amount.Cents, e.Date.String(), e.Note)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Expense{}, categoryChoiceError()
		}
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())

	return r.GetExpense(ctx, e.UserID, id)
}

// GetExpense resolves id in userID's scope only.
func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, expenseSelect+` WHERE e.id = ? AND e.user_id = ?`, id, userID))
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, notFound(err))
	}
	return e, nil
}

// UpdateExpense replaces every mutable field of the expense e.ID owned by e.UserID.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET category_id = ?, amount_cents = ?, date = ?, note = ? WHERE id = ? AND user_id = ?`,
		nullableID(e.CategoryID), e.Amount.Cents, e.Date.String(), e.Note, e.ID, e.UserID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Expense{}, categoryChoiceError()
		}
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// DeleteAllExpenses removes every expense of userID and reports how many.
func (r *SQLiteRepository) DeleteAllExpenses(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete all expenses: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Expenses deleted", "user_id", userID, "count", n)
	return n, nil
}

// ListExpenses returns userID's expenses matching f, newest date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	f = f.Normalized()

	var where strings.Builder
	args := []any{userID}
	where.WriteString(` WHERE e.user_id = ?`)
	if f.Category != "" {
		where.WriteString(` AND c.name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Category))
	}
	if f.Start != nil {
		where.WriteString(` AND e.date >= ?`)
		args = append(args, f.Start.String())
	}
	if f.End != nil {
		where.WriteString(` AND e.date <= ?`)
		args = append(args, f.End.String())
	}
	if f.Query != "" {
		where.WriteString(` AND e.note LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Query))
	}

	rows, err := r.db.QueryContext(ctx, expenseSelect+where.String()+` ORDER BY e.date DESC, e.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}
