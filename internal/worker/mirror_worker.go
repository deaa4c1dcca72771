package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/core"
	"savingsbuddy/internal/export"
	"savingsbuddy/internal/sheets"
	"savingsbuddy/internal/storage"
)

// MirrorWorker keeps one spreadsheet tab per user in step with the user's
// expenses. Each sync rewrites the whole tab with the CSV export rows.
type MirrorWorker struct {
	storage     *storage.SQLiteRepository
	mirror      sheets.ExpenseMirror
	concurrency int
}

func NewMirrorWorker(storage *storage.SQLiteRepository, mirror sheets.ExpenseMirror, concurrency int) *MirrorWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &MirrorWorker{
		storage:     storage,
		mirror:      mirror,
		concurrency: concurrency,
	}
}

// HandleRecordEvent processes a single record event from AMQP.
func (w *MirrorWorker) HandleRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error {
	slog.InfoContext(ctx, "Processing record event",
		"kind", ev.Kind,
		"action", ev.Action,
		"user_id", ev.UserID,
		"record_id", ev.RecordID)

	switch ev.Kind {
	case amqp.KindExpense:
		return w.SyncUser(ctx, ev.UserID)
	case amqp.KindCategory:
		// Category names appear in every user's rows.
		return w.SyncAll(ctx)
	default:
		slog.DebugContext(ctx, "Record kind is not mirrored, skipping", "kind", ev.Kind)
		return nil
	}
}

// SyncUser rewrites userID's tab. A user deleted since the event was
// published is skipped.
func (w *MirrorWorker) SyncUser(ctx context.Context, userID int64) error {
	u, err := w.storage.GetUserByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "User no longer exists, skipping mirror", "user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	return w.syncUser(ctx, u)
}

func (w *MirrorWorker) syncUser(ctx context.Context, u core.User) error {
	expenses, err := w.storage.ListExpenses(ctx, u.ID, core.ExpenseFilter{})
	if err != nil {
		return fmt.Errorf("list expenses for user %d: %w", u.ID, err)
	}

	sheet := sheets.SheetName(u.Username)
	if err := w.mirror.ReplaceRows(ctx, sheet, export.Rows(expenses)); err != nil {
		return fmt.Errorf("mirror user %d: %w", u.ID, err)
	}

	slog.InfoContext(ctx, "Mirrored expenses",
		"user_id", u.ID,
		"sheet", sheet,
		"rows", len(expenses))
	return nil
}

// SyncAll rewrites every user's tab, at most concurrency at a time.
// The first failure cancels the remaining syncs.
func (w *MirrorWorker) SyncAll(ctx context.Context) error {
	users, err := w.storage.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	start := time.Now()
	var synced atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, u := range users {
		g.Go(func() error {
			if err := w.syncUser(gctx, u); err != nil {
				return err
			}
			synced.Add(1)
			return nil
		})
	}
	err = g.Wait()

	slog.InfoContext(ctx, "Full mirror sync finished",
		"users", len(users),
		"synced", synced.Load(),
		"duration", time.Since(start).String(),
		"error", err)
	return err
}

// Run repeats SyncAll every interval until ctx is done. Failures are logged
// and retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SyncAll(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic mirror sync failed", "error", err)
			}
		}
	}
}
