package services

import (
	"context"
	"testing"
	"time"

	"savingsbuddy/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newTestRepo(t), time.Hour)

	tests := []struct {
		name   string
		in     RegisterInput
		fields []string
	}{
		{"missing username", RegisterInput{Password1: "s3cretpass", Password2: "s3cretpass"}, []string{"username"}},
		{"bad username chars", RegisterInput{Username: "al ice", Password1: "s3cretpass", Password2: "s3cretpass"}, []string{"username"}},
		{"bad email", RegisterInput{Username: "alice", Email: "nope", Password1: "s3cretpass", Password2: "s3cretpass"}, []string{"email"}},
		{"missing email", RegisterInput{Username: "alice", Email: "  ", Password1: "s3cretpass", Password2: "s3cretpass"}, []string{"email"}},
		{"mismatch", RegisterInput{Username: "alice", Password1: "s3cretpass", Password2: "s3cretpasS"}, []string{"password2"}},
		{"too short", RegisterInput{Username: "alice", Password1: "short1", Password2: "short1"}, []string{"password2"}},
		{"numeric", RegisterInput{Username: "alice", Password1: "1234567890", Password2: "1234567890"}, []string{"password2"}},
		{"missing password", RegisterInput{Username: "alice"}, []string{"password1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.Register(ctx, tt.in)
			ve, ok := core.AsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			for _, f := range tt.fields {
				assert.Contains(t, ve.Fields, f)
			}
		})
	}

	u, err := accounts.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password1: "s3cretpass", Password2: "s3cretpass"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)

	_, err = accounts.Register(ctx, RegisterInput{Username: "ALICE", Email: "other@example.com", Password1: "s3cretpass", Password2: "s3cretpass"})
	ve, ok := core.AsValidation(err)
	require.True(t, ok, "expected duplicate to be a validation error, got %v", err)
	assert.Equal(t, "A user with that username already exists.", ve.Fields["username"])
}

func TestAccountService_LoginAndSessions(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newTestRepo(t), 10*time.Hour)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	accounts.now = fixedClock(start)

	_, err := accounts.CreateUser(ctx, "alice", "", "s3cretpass")
	require.NoError(t, err)

	_, err = accounts.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	_, err = accounts.Login(ctx, "nobody", "s3cretpass")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	s, err := accounts.Login(ctx, "Alice", "s3cretpass")
	require.NoError(t, err)
	assert.Len(t, s.Token, 64)
	assert.WithinDuration(t, start.Add(10*time.Hour), s.ExpiresAt, 0)

	// Plenty of lifetime left: no renewal.
	accounts.now = fixedClock(start.Add(time.Hour))
	got, err := accounts.ValidateSession(ctx, s.Token)
	require.NoError(t, err)
	assert.False(t, got.Renewed)
	assert.Equal(t, "alice", got.User.Username)
	assert.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, 0)

	// Less than half left: rolled forward.
	later := start.Add(6 * time.Hour)
	accounts.now = fixedClock(later)
	got, err = accounts.ValidateSession(ctx, s.Token)
	require.NoError(t, err)
	assert.True(t, got.Renewed)
	assert.WithinDuration(t, later.Add(10*time.Hour), got.ExpiresAt, 0)

	// Past the renewed expiry.
	accounts.now = fixedClock(later.Add(11 * time.Hour))
	_, err = accounts.ValidateSession(ctx, s.Token)
	assert.ErrorIs(t, err, core.ErrAuthRequired)

	n, err := accounts.CleanExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccountService_Logout(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newTestRepo(t), time.Hour)
	_, err := accounts.CreateUser(ctx, "alice", "", "s3cretpass")
	require.NoError(t, err)

	s, err := accounts.Login(ctx, "alice", "s3cretpass")
	require.NoError(t, err)
	require.NoError(t, accounts.Logout(ctx, s.Token))

	_, err = accounts.ValidateSession(ctx, s.Token)
	assert.ErrorIs(t, err, core.ErrAuthRequired)
	_, err = accounts.ValidateSession(ctx, "")
	assert.ErrorIs(t, err, core.ErrAuthRequired)
	assert.NoError(t, accounts.Logout(ctx, ""))
}

func TestAccountService_SeedAdmin(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newTestRepo(t), 0)
	assert.Equal(t, DefaultSessionDuration, accounts.SessionDuration())

	created, err := accounts.SeedAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created, "empty credentials disable seeding")

	created, err = accounts.SeedAdmin(ctx, "admin", "adminpass1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = accounts.SeedAdmin(ctx, "other", "adminpass1")
	require.NoError(t, err)
	assert.False(t, created, "seeding only happens on an empty database")

	users, err := accounts.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
}

func TestAccountService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accounts := NewAccountService(repo, time.Hour)
	records := NewRecordService(repo, nil, time.UTC)

	u, err := accounts.CreateUser(ctx, "alice", "", "s3cretpass")
	require.NoError(t, err)
	_, err = records.CreateExpense(ctx, u.ID, core.Expense{Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)

	require.NoError(t, accounts.DeleteUser(ctx, "alice"))
	assert.ErrorIs(t, accounts.DeleteUser(ctx, "alice"), core.ErrNotFound)

	list, err := records.ListExpenses(ctx, u.ID, core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
