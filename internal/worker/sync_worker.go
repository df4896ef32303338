// Package worker mirrors recorded expenses into the spreadsheet.
//
// Expenses arrive as expense.recorded events; a periodic catch-up pass picks
// up anything the events missed, and failed rows are retried until they
// reach the attempt limit.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/sheets"
)

// Store is the part of a storage backend the worker reads and updates.
type Store interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	PendingSync(ctx context.Context, maxAttempts, limit int) ([]int64, error)
	IsSynced(ctx context.Context, id int64) (bool, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// Consumer delivers expense.recorded messages until ctx is done.
type Consumer interface {
	ConsumeExpenseRecorded(ctx context.Context, handler func(context.Context, *amqp.ExpenseRecordedMessage) error) error
}

type Config struct {
	BatchSize   int
	MaxAttempts int
	Interval    time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:   10,
		MaxAttempts: 5,
		Interval:    30 * time.Second,
	}
}

// SyncWorker handles synchronization of expenses from the store to the mirror
type SyncWorker struct {
	store  Store
	sheets sheets.ExpenseWriter
	config Config
	logger *log.Logger

	// serializes event handling and catch-up so a row is appended once
	mu sync.Mutex
}

// SyncReport summarizes one catch-up pass.
type SyncReport struct {
	Pending int
	Synced  int
	Failed  int
}

func NewSyncWorker(store Store, writer sheets.ExpenseWriter, config Config, logger *log.Logger) *SyncWorker {
	def := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		store:  store,
		sheets: writer,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage mirrors the expense named by an expense.recorded message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense recorded message",
		log.FieldExpenseID, msg.ID,
		log.FieldDate, msg.Date)

	if err := w.syncExpense(ctx, msg.ID); err != nil {
		return fmt.Errorf("sync expense %d: %w", msg.ID, err)
	}
	return nil
}

// ProcessPending mirrors one batch of unsynced expenses. Failures of single
// rows are counted, not returned.
func (w *SyncWorker) ProcessPending(ctx context.Context) (SyncReport, error) {
	return w.processPending(ctx, w.config.BatchSize)
}

// StartupSync drains a larger backlog once, before events are consumed.
func (w *SyncWorker) StartupSync(ctx context.Context) (SyncReport, error) {
	if hw, ok := w.sheets.(sheets.HeaderWriter); ok {
		if err := hw.EnsureHeader(ctx); err != nil {
			w.logger.WarnContext(ctx, "Failed to ensure sheet header", log.FieldError, err.Error())
		}
	}

	report, err := w.processPending(ctx, w.config.BatchSize*5)
	if err != nil {
		return report, fmt.Errorf("startup sync: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", report.Pending,
		"synced", report.Synced,
		"errors", report.Failed)
	return report, nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (SyncReport, error) {
	ids, err := w.store.PendingSync(ctx, w.config.MaxAttempts, limit)
	if err != nil {
		return SyncReport{}, fmt.Errorf("get pending expenses: %w", err)
	}

	report := SyncReport{Pending: len(ids)}
	if len(ids) == 0 {
		return report, nil
	}
	w.logger.InfoContext(ctx, "Processing pending expenses", log.FieldCount, len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := w.syncExpense(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync expense",
				log.FieldExpenseID, id,
				log.FieldError, err.Error())
			report.Failed++
			continue
		}
		report.Synced++
	}
	return report, nil
}

func (w *SyncWorker) syncExpense(ctx context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	synced, err := w.store.IsSynced(ctx, id)
	if err != nil {
		return err
	}
	if synced {
		w.logger.DebugContext(ctx, "Expense already synced", log.FieldExpenseID, id)
		return nil
	}

	expense, err := w.store.GetExpense(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			return err
		}
		return fmt.Errorf("get expense from storage: %w", err)
	}

	ref, err := w.sheets.Append(ctx, expense)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error",
				log.FieldExpenseID, id,
				log.FieldError, markErr.Error())
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// the row is written; a failed mark only means a duplicate on retry
	if err := w.store.MarkSynced(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced",
			log.FieldExpenseID, id,
			log.FieldError, err.Error())
	}

	w.logger.InfoContext(ctx, "Successfully synced expense",
		append(log.NewFields().
			WithExpense(expense.ID, expense.Payee, expense.Amount, expense.Date.String()).
			WithOperation(log.OpSync).ToSlice(), "sheets_ref", ref)...)
	return nil
}

// Run consumes events (when consumer is not nil) and runs the periodic
// catch-up until ctx is cancelled. Cancellation is not an error.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeExpenseRecorded(ctx, w.HandleMessage)
		})
	} else {
		w.logger.InfoContext(ctx, "No message consumer configured, relying on periodic sync")
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
					w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err.Error())
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
