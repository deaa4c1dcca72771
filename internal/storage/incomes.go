package storage

import (
	"context"
	"fmt"
	"log/slog"

	"savingsbuddy/internal/core"
)

const incomeSelect = `SELECT id, user_id, source, amount_cents, date FROM incomes`

func scanIncome(s rowScanner) (core.Income, error) {
	var i core.Income
	var date string
	if err := s.Scan(&i.ID, &i.UserID, &i.Source, &i.Amount.Cents, &date); err != nil {
		return core.Income{}, err
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return core.Income{}, err
	}
	i.Date = d
	return i, nil
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (user_id, source, amount_cents, date) VALUES (?, ?, ?, ?)`,
		in.UserID, in.Source, in.Amount.Cents, in.Date.String())
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	if in.ID, err = res.LastInsertId(); err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}

	slog.InfoContext(ctx, "Income saved",
		"id", in.ID,
		"user_id", in.UserID,
		"amount_cents", in.Amount.Cents,
		"date", in.Date.String())
	return in, nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, userID, id int64) (core.Income, error) {
	in, err := scanIncome(r.db.QueryRowContext(ctx, incomeSelect+` WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Income{}, fmt.Errorf("get income %d: %w", id, notFound(err))
	}
	return in, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET source = ?, amount_cents = ?, date = ? WHERE id = ? AND user_id = ?`,
		in.Source, in.Amount.Cents, in.Date.String(), in.ID, in.UserID)
	if err != nil {
		return core.Income{}, fmt.Errorf("update income %d: %w", in.ID, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return core.Income{}, fmt.Errorf("update income %d: %w", in.ID, err)
	}
	return in, nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete income %d: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return fmt.Errorf("delete income %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAllIncomes(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete all incomes: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Incomes deleted", "user_id", userID, "count", n)
	return n, nil
}

// ListIncomes returns userID's incomes, newest date first.
func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID int64) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx, incomeSelect+` WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	return out, nil
}
