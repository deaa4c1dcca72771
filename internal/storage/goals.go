package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"savingsbuddy/internal/core"
)

const goalSelect = `SELECT id, user_id, title, target_cents, deadline, starting_balance_cents FROM savings_goals`

func scanGoal(s rowScanner) (core.SavingsGoal, error) {
	var g core.SavingsGoal
	var deadline sql.NullString
	if err := s.Scan(&g.ID, &g.UserID, &g.Title, &g.TargetAmount.Cents, &deadline, &g.StartingBalance.Cents); err != nil {
		return core.SavingsGoal{}, err
	}
	if deadline.Valid && deadline.String != "" {
		d, err := parseStoredDate(deadline.String)
		if err != nil {
			return core.SavingsGoal{}, err
		}
		g.Deadline = &d
	}
	return g, nil
}

func nullableDate(d *core.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_goals (user_id, title, target_cents, deadline, starting_balance_cents) VALUES (?, ?, ?, ?, ?)`,
		g.UserID, g.Title, g.TargetAmount.Cents, nullableDate(g.Deadline), g.StartingBalance.Cents)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create goal: %w", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create goal: %w", err)
	}

	slog.InfoContext(ctx, "Savings goal saved", "id", g.ID, "user_id", g.UserID, "target_cents", g.TargetAmount.Cents)
	return g, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id int64) (core.SavingsGoal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, goalSelect+` WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get goal %d: %w", id, notFound(err))
	}
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE savings_goals SET title = ?, target_cents = ?, deadline = ?, starting_balance_cents = ? WHERE id = ? AND user_id = ?`,
		g.Title, g.TargetAmount.Cents, nullableDate(g.Deadline), g.StartingBalance.Cents, g.ID, g.UserID)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("update goal %d: %w", g.ID, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("update goal %d: %w", g.ID, err)
	}
	return g, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete goal %d: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return fmt.Errorf("delete goal %d: %w", id, err)
	}
	return nil
}

// ListGoals returns userID's goals in id order.
func (r *SQLiteRepository) ListGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx, goalSelect+` WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return out, nil
}
