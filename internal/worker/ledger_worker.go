// Package worker consumes ledger sync messages and mirrors the referenced
// records into the external ledger sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/export"
	"contas/internal/store"
)

// LedgerWorker resolves each sync message against the store and applies the
// corresponding append or remove on the ledger writer. Messages referencing
// records deleted in the meantime are treated as removals, not failures, so
// the queue drains even when it lags behind the store.
type LedgerWorker struct {
	store  store.Store
	writer export.LedgerWriter
}

func NewLedgerWorker(st store.Store, writer export.LedgerWriter) *LedgerWorker {
	return &LedgerWorker{store: st, writer: writer}
}

// Run consumes sync messages until ctx is cancelled.
func (w *LedgerWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeLedgerSync(ctx, w.Handle)
}

// Handle processes a single ledger sync message.
func (w *LedgerWorker) Handle(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing ledger sync message",
		"kind", msg.Kind,
		"id", msg.ID,
		"workspace_id", msg.WorkspaceID,
		"deleted", msg.Deleted)

	if msg.Deleted {
		if err := w.writer.Remove(ctx, msg.ID); err != nil {
			return fmt.Errorf("remove ledger row: %w", err)
		}
		slog.InfoContext(ctx, "Removed ledger row", "kind", msg.Kind, "id", msg.ID)
		return nil
	}

	entry, err := w.resolve(ctx, msg)
	if errors.Is(err, core.ErrNotFound) {
		// The record was deleted after the message was published. Drop the
		// stale row so the ledger converges on the store.
		slog.WarnContext(ctx, "Record gone, removing stale ledger row",
			"kind", msg.Kind, "id", msg.ID)
		if err := w.writer.Remove(ctx, msg.ID); err != nil {
			return fmt.Errorf("remove stale ledger row: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve %s %s: %w", msg.Kind, msg.ID, err)
	}

	// Projected facts live only in the store; the ledger mirrors realized
	// records. Services do not publish them, but a regenerated projection can
	// reuse an ID a stale message still references.
	if entry.Projected {
		slog.InfoContext(ctx, "Skipping projected fact", "id", msg.ID)
		return nil
	}

	// Re-sync is upsert-shaped: drop any previous row for this ID first.
	if err := w.writer.Remove(ctx, msg.ID); err != nil {
		return fmt.Errorf("clear previous ledger row: %w", err)
	}
	ref, err := w.writer.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}

	slog.InfoContext(ctx, "Synced ledger row",
		"kind", msg.Kind,
		"id", msg.ID,
		"row_ref", ref,
		"amount", entry.Amount.String())
	return nil
}

func (w *LedgerWorker) resolve(ctx context.Context, msg *amqp.LedgerSyncMessage) (export.LedgerEntry, error) {
	switch msg.Kind {
	case amqp.KindObligation:
		o, err := w.store.GetObligation(ctx, msg.ID)
		if err != nil {
			return export.LedgerEntry{}, err
		}
		return export.LedgerEntry{
			ID:          o.ID,
			Kind:        amqp.KindObligation,
			WorkspaceID: o.WorkspaceID,
			Date:        o.PurchaseDate,
			Period:      o.Period,
			Description: obligationDescription(o),
			Type:        string(core.Expense),
			Amount:      o.Amount,
		}, nil

	case amqp.KindInvoice:
		inv, err := w.store.GetInvoiceByID(ctx, msg.ID)
		if err != nil {
			return export.LedgerEntry{}, err
		}
		return export.LedgerEntry{
			ID:          inv.ID,
			Kind:        amqp.KindInvoice,
			WorkspaceID: inv.WorkspaceID,
			Date:        inv.DueDate,
			Period:      inv.Period,
			Description: fmt.Sprintf("Invoice %s %s (%s)", inv.CardID, inv.Period, inv.Status),
			Type:        string(core.Expense),
			Amount:      inv.Total,
		}, nil

	case amqp.KindFact:
		f, err := w.store.GetFact(ctx, msg.ID)
		if err != nil {
			return export.LedgerEntry{}, err
		}
		return export.LedgerEntry{
			ID:          f.ID,
			Kind:        amqp.KindFact,
			WorkspaceID: f.WorkspaceID,
			Date:        f.Date,
			Period:      f.Period,
			Description: f.Description,
			Type:        string(f.Type),
			Amount:      f.Amount,
			Projected:   f.Projected,
			Confidence:  f.Confidence,
		}, nil

	default:
		return export.LedgerEntry{}, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
}

func obligationDescription(o core.Obligation) string {
	if label := o.InstallmentLabel(); label != "" {
		return fmt.Sprintf("%s (%s)", o.Description, label)
	}
	return o.Description
}
