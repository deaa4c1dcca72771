package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/core"
	"savingsbuddy/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.RecordEvent
	err    error
}

func (f *fakePublisher) PublishRecordEvent(_ context.Context, ev *amqp.RecordEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return f.err
}

func (f *fakePublisher) last() amqp.RecordEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *storage.SQLiteRepository, name string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), name, "", "hash")
	require.NoError(t, err)
	return u
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordService_ExpenseLifecyclePublishesEvents(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pub := &fakePublisher{}
	svc := NewRecordService(repo, pub, time.UTC)
	alice := newTestUser(t, repo, "alice")

	created, err := svc.CreateExpense(ctx, alice.ID, core.Expense{
		UserID: 999, // ignored, the caller's id wins
		Amount: core.Money{Cents: 1250},
		Date:   core.NewDate(2024, 1, 15),
		Note:   "lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, created.UserID)
	assert.Equal(t, amqp.RecordEvent{Kind: amqp.KindExpense, Action: amqp.ActionCreated, UserID: alice.ID, RecordID: created.ID}, withoutTime(pub.last()))

	created.Note = "dinner"
	_, err = svc.UpdateExpense(ctx, alice.ID, created)
	require.NoError(t, err)
	assert.Equal(t, amqp.ActionUpdated, pub.last().Action)

	require.NoError(t, svc.DeleteExpense(ctx, alice.ID, created.ID))
	assert.Equal(t, amqp.ActionDeleted, pub.last().Action)

	n, err := svc.DeleteAllExpenses(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, amqp.ActionDeletedAll, pub.last().Action)
	assert.Len(t, pub.events, 4)
}

func withoutTime(ev amqp.RecordEvent) amqp.RecordEvent {
	ev.Timestamp = time.Time{}
	return ev
}

func TestRecordService_PublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewRecordService(repo, &fakePublisher{err: errors.New("circuit breaker is open")}, time.UTC)
	alice := newTestUser(t, repo, "alice")

	in, err := svc.CreateIncome(ctx, alice.ID, core.Income{Source: "salary", Amount: core.Money{Cents: 100000}, Date: core.NewDate(2024, 3, 1)})
	require.NoError(t, err)

	got, err := svc.GetIncome(ctx, alice.ID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "salary", got.Source)
}

func TestRecordService_NilPublisher(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewRecordService(repo, nil, nil)
	alice := newTestUser(t, repo, "alice")

	g, err := svc.CreateGoal(ctx, alice.ID, core.SavingsGoal{Title: "bike", TargetAmount: core.Money{Cents: 50000}})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteGoal(ctx, alice.ID, g.ID))
}

func TestRecordService_ForeignRecordsAreNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pub := &fakePublisher{}
	svc := NewRecordService(repo, pub, time.UTC)
	alice := newTestUser(t, repo, "alice")
	bob := newTestUser(t, repo, "bob")

	exp, err := svc.CreateExpense(ctx, alice.ID, core.Expense{Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)
	in, err := svc.CreateIncome(ctx, alice.ID, core.Income{Source: "gift", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)
	g, err := svc.CreateGoal(ctx, alice.ID, core.SavingsGoal{Title: "trip", TargetAmount: core.Money{Cents: 100}})
	require.NoError(t, err)
	published := len(pub.events)

	_, err = svc.UpdateExpense(ctx, bob.ID, exp)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteExpense(ctx, bob.ID, exp.ID), core.ErrNotFound)
	_, err = svc.UpdateIncome(ctx, bob.ID, in)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteIncome(ctx, bob.ID, in.ID), core.ErrNotFound)
	_, err = svc.UpdateGoal(ctx, bob.ID, g)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteGoal(ctx, bob.ID, g.ID), core.ErrNotFound)

	assert.Len(t, pub.events, published, "failed mutations must not publish")

	_, err = svc.GetExpense(ctx, alice.ID, exp.ID)
	assert.NoError(t, err, "alice's expense must survive bob's attempts")
}

func TestRecordService_ValidationErrorPassesThrough(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewRecordService(repo, nil, time.UTC)
	alice := newTestUser(t, repo, "alice")

	_, err := svc.CreateIncome(ctx, alice.ID, core.Income{Amount: core.Money{Cents: 1}})
	ve, ok := core.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, ve.Fields, "source")
	assert.Contains(t, ve.Fields, "date")
}

func TestRecordService_Dashboard(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewRecordService(repo, nil, time.UTC)
	svc.now = fixedClock(time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC))
	alice := newTestUser(t, repo, "alice")
	bob := newTestUser(t, repo, "bob")

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	food := cats[0].ID

	_, err = svc.CreateIncome(ctx, alice.ID, core.Income{Source: "salary", Amount: core.Money{Cents: 100000}, Date: core.NewDate(2024, 6, 1)})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, alice.ID, core.Expense{CategoryID: &food, Amount: core.Money{Cents: 40000}, Date: core.NewDate(2024, 5, 3)})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, bob.ID, core.Expense{CategoryID: &food, Amount: core.Money{Cents: 99900}, Date: core.NewDate(2024, 6, 3)})
	require.NoError(t, err)
	_, err = svc.CreateGoal(ctx, alice.ID, core.SavingsGoal{Title: "fund", TargetAmount: core.Money{Cents: 120000}})
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, "1000.00", d.TotalIncome.String())
	assert.Equal(t, "400.00", d.TotalExpense.String())
	assert.Equal(t, "600.00", d.NetSaving.String())
	assert.True(t, d.ProgressPercent.Equal(decimal.NewFromInt(50)), "progress = %s", d.ProgressPercent)
	require.NotNil(t, d.Goal)
	assert.Equal(t, "fund", d.Goal.Title)

	assert.Len(t, d.CategoryLabels, len(cats))
	assert.Equal(t, "400.00", d.CategoryValues[0].String())
	assert.Equal(t, []string{"Jan 2024", "Feb 2024", "Mar 2024", "Apr 2024", "May 2024", "Jun 2024"}, d.MonthLabels)
	assert.Equal(t, "400.00", d.MonthValues[4].String())
	assert.True(t, d.MonthValues[5].IsZero(), "bob's June expense must not leak into alice's trend")
}

func TestRecordService_TodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	svc := NewRecordService(nil, nil, loc)
	svc.now = fixedClock(time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-01-01", svc.Today().String())
}

func TestRecordService_CategoryDeleteKeepsExpenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pub := &fakePublisher{}
	svc := NewRecordService(repo, pub, time.UTC)
	alice := newTestUser(t, repo, "alice")

	c, err := svc.CreateCategory(ctx, "Pets")
	require.NoError(t, err)
	exp, err := svc.CreateExpense(ctx, alice.ID, core.Expense{CategoryID: &c.ID, Amount: core.Money{Cents: 300}, Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, c.ID))
	assert.Equal(t, amqp.RecordEvent{Kind: amqp.KindCategory, Action: amqp.ActionDeleted, RecordID: c.ID}, withoutTime(pub.last()))

	got, err := svc.GetExpense(ctx, alice.ID, exp.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.Empty(t, got.CategoryName)
}
