package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/core"
	"savingsbuddy/internal/storage"
)

// EventPublisher announces record changes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error
}

// RecordService orchestrates the owned records across SQLite and AMQP.
// Every operation takes the caller's user id explicitly.
type RecordService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
	loc     *time.Location
	now     func() time.Time
}

// NewRecordService returns a service; events may be nil and loc defaults to
// time.Local.
func NewRecordService(storage *storage.SQLiteRepository, events EventPublisher, loc *time.Location) *RecordService {
	if loc == nil {
		loc = time.Local
	}
	return &RecordService{
		storage: storage,
		events:  events,
		loc:     loc,
		now:     time.Now,
	}
}

// Now is the service clock in the configured location.
func (s *RecordService) Now() time.Time {
	return s.now().In(s.loc)
}

// Today is the current calendar day in the configured location.
func (s *RecordService) Today() core.Date {
	return core.DateOf(s.Now())
}

// publish sends a change event. Failures are logged and never returned:
// the record is already saved locally.
func (s *RecordService) publish(ctx context.Context, kind amqp.RecordKind, action amqp.RecordAction, userID, recordID int64) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping record event", "kind", kind, "action", action)
		return
	}
	if err := s.events.PublishRecordEvent(ctx, amqp.NewRecordEvent(kind, action, userID, recordID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"kind", kind,
			"action", action,
			"user_id", userID,
			"record_id", recordID,
			"error", err)
	}
}

// Categories

func (s *RecordService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx)
}

func (s *RecordService) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	c, err := s.storage.CreateCategory(ctx, name)
	if err != nil {
		return core.Category{}, err
	}
	s.publish(ctx, amqp.KindCategory, amqp.ActionCreated, 0, c.ID)
	return c, nil
}

// DeleteCategory removes a category; expenses referencing it become
// uncategorised.
func (s *RecordService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.storage.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.KindCategory, amqp.ActionDeleted, 0, id)
	return nil
}

// Expenses

func (s *RecordService) ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, userID, f)
}

func (s *RecordService) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, userID, id)
}

// CreateExpense saves e for userID, ignoring any owner already set on e.
func (s *RecordService) CreateExpense(ctx context.Context, userID int64, e core.Expense) (core.Expense, error) {
	e.UserID = userID
	saved, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.publish(ctx, amqp.KindExpense, amqp.ActionCreated, userID, saved.ID)
	return saved, nil
}

// UpdateExpense replaces the mutable fields of the caller's expense e.ID.
func (s *RecordService) UpdateExpense(ctx context.Context, userID int64, e core.Expense) (core.Expense, error) {
	e.UserID = userID
	saved, err := s.storage.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, amqp.KindExpense, amqp.ActionUpdated, userID, saved.ID)
	return saved, nil
}

func (s *RecordService) DeleteExpense(ctx context.Context, userID, id int64) error {
	if err := s.storage.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.KindExpense, amqp.ActionDeleted, userID, id)
	return nil
}

func (s *RecordService) DeleteAllExpenses(ctx context.Context, userID int64) (int64, error) {
	n, err := s.storage.DeleteAllExpenses(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, amqp.KindExpense, amqp.ActionDeletedAll, userID, 0)
	return n, nil
}

// Incomes

func (s *RecordService) ListIncomes(ctx context.Context, userID int64) ([]core.Income, error) {
	return s.storage.ListIncomes(ctx, userID)
}

func (s *RecordService) GetIncome(ctx context.Context, userID, id int64) (core.Income, error) {
	return s.storage.GetIncome(ctx, userID, id)
}

func (s *RecordService) CreateIncome(ctx context.Context, userID int64, in core.Income) (core.Income, error) {
	in.UserID = userID
	saved, err := s.storage.CreateIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}
	s.publish(ctx, amqp.KindIncome, amqp.ActionCreated, userID, saved.ID)
	return saved, nil
}

func (s *RecordService) UpdateIncome(ctx context.Context, userID int64, in core.Income) (core.Income, error) {
	in.UserID = userID
	saved, err := s.storage.UpdateIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.publish(ctx, amqp.KindIncome, amqp.ActionUpdated, userID, saved.ID)
	return saved, nil
}

func (s *RecordService) DeleteIncome(ctx context.Context, userID, id int64) error {
	if err := s.storage.DeleteIncome(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.KindIncome, amqp.ActionDeleted, userID, id)
	return nil
}

func (s *RecordService) DeleteAllIncomes(ctx context.Context, userID int64) (int64, error) {
	n, err := s.storage.DeleteAllIncomes(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, amqp.KindIncome, amqp.ActionDeletedAll, userID, 0)
	return n, nil
}

// Savings goals

func (s *RecordService) ListGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	return s.storage.ListGoals(ctx, userID)
}

func (s *RecordService) GetGoal(ctx context.Context, userID, id int64) (core.SavingsGoal, error) {
	return s.storage.GetGoal(ctx, userID, id)
}

func (s *RecordService) CreateGoal(ctx context.Context, userID int64, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.UserID = userID
	saved, err := s.storage.CreateGoal(ctx, g)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("save goal: %w", err)
	}
	s.publish(ctx, amqp.KindGoal, amqp.ActionCreated, userID, saved.ID)
	return saved, nil
}

func (s *RecordService) UpdateGoal(ctx context.Context, userID int64, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.UserID = userID
	saved, err := s.storage.UpdateGoal(ctx, g)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("update goal: %w", err)
	}
	s.publish(ctx, amqp.KindGoal, amqp.ActionUpdated, userID, saved.ID)
	return saved, nil
}

func (s *RecordService) DeleteGoal(ctx context.Context, userID, id int64) error {
	if err := s.storage.DeleteGoal(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.KindGoal, amqp.ActionDeleted, userID, id)
	return nil
}

// Dashboard loads the caller's records and aggregates them as of Now.
func (s *RecordService) Dashboard(ctx context.Context, userID int64) (core.Dashboard, error) {
	categories, err := s.storage.ListCategories(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	expenses, err := s.storage.ListExpenses(ctx, userID, core.ExpenseFilter{})
	if err != nil {
		return core.Dashboard{}, err
	}
	incomes, err := s.storage.ListIncomes(ctx, userID)
	if err != nil {
		return core.Dashboard{}, err
	}
	goals, err := s.storage.ListGoals(ctx, userID)
	if err != nil {
		return core.Dashboard{}, err
	}

	return core.BuildDashboard(core.DashboardInput{
		Categories: categories,
		Expenses:   expenses,
		Incomes:    incomes,
		Goals:      goals,
		Now:        s.Now(),
	}), nil
}
