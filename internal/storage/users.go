package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"savingsbuddy/internal/core"
)

// SessionInfo is a valid session joined with its user.
type SessionInfo struct {
	User         core.User
	ExpiresAt    time.Time
	LastActivity time.Time
}

const userColumns = `id, username, email, password_hash, created_at`

func scanUser(s rowScanner) (core.User, error) {
	var u core.User
	var created int64
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("create user %q: %w", username, core.ErrDuplicate)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", id, "username", username)

	return core.User{ID: id, Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: time.Unix(now.Unix(), 0).UTC()}, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, notFound(err))
	}
	return u, nil
}

// GetUserByUsername matches case-insensitively.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %q: %w", username, notFound(err))
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) UserCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// DeleteUser removes the user together with every record and session they own.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM expenses WHERE user_id = ?`,
			`DELETE FROM incomes WHERE user_id = ?`,
			`DELETE FROM savings_goals WHERE user_id = ?`,
			`DELETE FROM sessions WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete owned records: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return affectedOrNotFound(res)
	})
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	slog.InfoContext(ctx, "User deleted", "user_id", id)
	return nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)`,
		token, userID, expiresAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ValidateSession returns the session's user if the token exists and has
// not expired at now.
func (r *SQLiteRepository) ValidateSession(ctx context.Context, token string, now time.Time) (SessionInfo, error) {
	var info SessionInfo
	var created, expires, last int64
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.created_at, s.expires_at, s.last_activity
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`, token, now.Unix()).
		Scan(&info.User.ID, &info.User.Username, &info.User.Email, &info.User.PasswordHash, &created, &expires, &last)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("validate session: %w", notFound(err))
	}
	info.User.CreatedAt = time.Unix(created, 0).UTC()
	info.ExpiresAt = time.Unix(expires, 0).UTC()
	info.LastActivity = time.Unix(last, 0).UTC()
	return info, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (r *SQLiteRepository) RenewSession(ctx context.Context, token string, now, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?`,
		now.Unix(), expiresAt.Unix(), token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanExpiredSessions deletes sessions expired at now and reports how many.
func (r *SQLiteRepository) CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	return res.RowsAffected()
}
