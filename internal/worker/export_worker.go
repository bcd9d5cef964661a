package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"outlay/internal/amqp"
	"outlay/internal/core"
	"outlay/internal/sheets"
	"outlay/internal/storage"
)

// ExportStore is the storage surface the worker needs.
type ExportStore interface {
	GetExpenseByID(ctx context.Context, id string) (core.Expense, error)
	GetPendingExports(ctx context.Context, limit int) ([]storage.PendingExport, error)
	MarkExported(ctx context.Context, id string) error
	MarkExportError(ctx context.Context, id string) error
}

// ExportWorker mirrors expense records to the export spreadsheet. It is
// driven by change events, with a periodic reconciliation pass that picks
// up anything the event stream missed.
type ExportWorker struct {
	store     ExportStore
	exporter  sheets.ExpenseExporter
	remover   sheets.ExpenseRemover
	batchSize int
}

func NewExportWorker(store ExportStore, exporter sheets.ExpenseExporter, remover sheets.ExpenseRemover, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		remover:   remover,
		batchSize: batchSize,
	}
}

// HandleEvent processes one change event. Returning an error requeues the
// event on the broker.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"id", event.ID,
		"action", event.Action,
		"version", event.Version)

	switch event.Action {
	case amqp.ActionCreated, amqp.ActionUpdated:
		return w.exportByID(ctx, event.ID, event.Action == amqp.ActionUpdated)
	case amqp.ActionDeleted:
		return w.removeByID(ctx, event.ID)
	default:
		return fmt.Errorf("unknown action %q", event.Action)
	}
}

func (w *ExportWorker) exportByID(ctx context.Context, id string, replace bool) error {
	if w.exporter == nil {
		// No export destination: ack the event and leave the record
		// pending so a later reconciliation pass can pick it up.
		slog.WarnContext(ctx, "No exporter configured, skipping export", "id", id)
		return nil
	}

	expense, err := w.store.GetExpenseByID(ctx, id)
	if errors.Is(err, storage.ErrExpenseNotFound) {
		// Deleted between event and processing; nothing to export.
		slog.WarnContext(ctx, "Expense vanished before export", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}

	// On update, drop the stale row first so the sheet carries one row
	// per expense.
	if replace && w.remover != nil {
		if err := w.remover.Remove(ctx, id); err != nil {
			slog.WarnContext(ctx, "Failed to remove stale row before re-export",
				"id", id, "error", err)
		}
	}

	return w.export(ctx, expense)
}

func (w *ExportWorker) removeByID(ctx context.Context, id string) error {
	if w.remover == nil {
		slog.WarnContext(ctx, "No remover configured, skipping export removal", "id", id)
		return nil
	}
	if err := w.remover.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove exported expense: %w", err)
	}
	slog.InfoContext(ctx, "Removed expense from export", "id", id)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, expense core.Expense) error {
	ref, err := w.exporter.Append(ctx, expense)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, expense.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"id", expense.ID, "error", markErr)
		}
		return fmt.Errorf("append to export: %w", err)
	}

	if err := w.store.MarkExported(ctx, expense.ID); err != nil {
		// The row is exported; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as exported",
			"id", expense.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported expense",
		"id", expense.ID,
		"export_ref", ref,
		"amount_cents", expense.Amount.Cents)

	return nil
}

// ProcessPending exports records the event stream missed. Failures are
// logged and skipped so one bad record cannot stall the batch.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}

	pending, err := w.store.GetPendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, p := range pending {
		expense, err := w.store.GetExpenseByID(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load pending expense",
				"id", p.ID, "error", err)
			if markErr := w.store.MarkExportError(ctx, p.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark export error",
					"id", p.ID, "error", markErr)
			}
			continue
		}
		if err := w.export(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending expense",
				"id", p.ID, "error", err)
		}
	}

	return nil
}

// RunReconciliation runs ProcessPending on a fixed interval until ctx is
// cancelled. An immediate pass runs at startup to recover from downtime.
func (w *ExportWorker) RunReconciliation(ctx context.Context, interval time.Duration) error {
	if err := w.ProcessPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Reconciliation pass failed", "error", err)
			}
		}
	}
}
