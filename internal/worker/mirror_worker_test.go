package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/core"
	"savingsbuddy/internal/export"
	"savingsbuddy/internal/sheets/memory"
	"savingsbuddy/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seed(t *testing.T, repo *storage.SQLiteRepository) (core.User, core.User, core.Category) {
	t.Helper()
	ctx := context.Background()
	alice, err := repo.CreateUser(ctx, "alice", "", "hash")
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, "bob", "", "hash")
	require.NoError(t, err)
	pets, err := repo.CreateCategory(ctx, "Pets")
	require.NoError(t, err)

	for _, e := range []core.Expense{
		{UserID: alice.ID, CategoryID: &pets.ID, Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 1, 15), Note: "food"},
		{UserID: alice.ID, Amount: core.Money{Cents: 300}, Date: core.NewDate(2024, 2, 1), Note: "bus"},
		{UserID: bob.ID, Amount: core.Money{Cents: 999}, Date: core.NewDate(2024, 1, 1), Note: "bob"},
	} {
		_, err := repo.CreateExpense(ctx, e)
		require.NoError(t, err)
	}
	return alice, bob, pets
}

func TestMirrorWorker_SyncUserMatchesExport(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice, _, _ := seed(t, repo)
	mirror := memory.New()
	w := NewMirrorWorker(repo, mirror, 2)

	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.KindExpense, amqp.ActionCreated, alice.ID, 1)))

	expenses, err := repo.ListExpenses(ctx, alice.ID, core.ExpenseFilter{})
	require.NoError(t, err)

	rows, ok := mirror.Rows("expenses-alice")
	require.True(t, ok)
	assert.Equal(t, export.Rows(expenses), rows)
	assert.Equal(t, []string{"2024-02-01", "", "3.00", "bus"}, rows[1])
	assert.Equal(t, []string{"expenses-alice"}, mirror.Sheets(), "only the event's user is mirrored")
}

func TestMirrorWorker_CategoryEventResyncsEveryone(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, _, pets := seed(t, repo)
	mirror := memory.New()
	w := NewMirrorWorker(repo, mirror, 4)

	require.NoError(t, repo.DeleteCategory(ctx, pets.ID))
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.KindCategory, amqp.ActionDeleted, 0, pets.ID)))

	assert.Equal(t, []string{"expenses-alice", "expenses-bob"}, mirror.Sheets())
	rows, _ := mirror.Rows("expenses-alice")
	require.Len(t, rows, 3)
	assert.Equal(t, "", rows[2][1], "deleted category renders empty")
}

func TestMirrorWorker_IgnoresUnmirroredKinds(t *testing.T) {
	repo := newTestRepo(t)
	alice, _, _ := seed(t, repo)
	mirror := memory.New()
	w := NewMirrorWorker(repo, mirror, 1)

	for _, kind := range []amqp.RecordKind{amqp.KindIncome, amqp.KindGoal} {
		require.NoError(t, w.HandleRecordEvent(context.Background(), amqp.NewRecordEvent(kind, amqp.ActionCreated, alice.ID, 1)))
	}
	assert.Zero(t, mirror.Writes())
}

func TestMirrorWorker_DeletedUserIsSkipped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice, _, _ := seed(t, repo)
	require.NoError(t, repo.DeleteUser(ctx, alice.ID))

	mirror := memory.New()
	w := NewMirrorWorker(repo, mirror, 1)
	assert.NoError(t, w.SyncUser(ctx, alice.ID))
	assert.Zero(t, mirror.Writes())
}

func TestMirrorWorker_BulkDeleteLeavesHeader(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice, _, _ := seed(t, repo)
	mirror := memory.New()
	w := NewMirrorWorker(repo, mirror, 1)

	_, err := repo.DeleteAllExpenses(ctx, alice.ID)
	require.NoError(t, err)
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.KindExpense, amqp.ActionDeletedAll, alice.ID, 0)))

	rows, _ := mirror.Rows("expenses-alice")
	assert.Equal(t, [][]string{export.Header}, rows)
}

// failingMirror fails for one sheet and counts calls.
type failingMirror struct {
	mu    sync.Mutex
	fail  string
	calls int
}

func (f *failingMirror) ReplaceRows(_ context.Context, sheet string, _ [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if sheet == f.fail {
		return errors.New("quota exceeded")
	}
	return nil
}

func TestMirrorWorker_SyncAllReportsFailure(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	w := NewMirrorWorker(repo, &failingMirror{fail: "expenses-bob"}, 1)

	err := w.SyncAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestMirrorWorker_RunStopsOnCancel(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	mirror := memory.New()
	w := NewMirrorWorker(repo, mirror, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return mirror.Writes() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
