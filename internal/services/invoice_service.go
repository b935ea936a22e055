package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/store"
)

// InvoiceService maintains the per-(card, period) summaries. Recompute keeps
// the total in lockstep with the period's obligations; status and the paid
// timestamp only change through SetStatus.
type InvoiceService struct {
	store     store.Store
	publisher LedgerPublisher
}

func NewInvoiceService(st store.Store, publisher LedgerPublisher) *InvoiceService {
	return &InvoiceService{
		store:     st,
		publisher: publisher,
	}
}

// Recompute sums the obligations of (card, period) and upserts the invoice.
// An absent invoice is created lazily with closing and due dates derived
// from the card; an existing one only has its total refreshed.
func (s *InvoiceService) Recompute(ctx context.Context, cardID string, period core.Period) (core.Invoice, error) {
	if err := period.Validate(); err != nil {
		return core.Invoice{}, err
	}

	obligations, err := s.store.ListObligations(ctx, cardID, period)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("list obligations: %w", err)
	}

	var total core.Money
	for _, o := range obligations {
		total = total.Add(o.Amount)
	}

	now := time.Now()
	inv, err := s.store.GetInvoice(ctx, cardID, period)
	switch {
	case errors.Is(err, core.ErrNotFound):
		card, err := s.store.GetCard(ctx, cardID)
		if err != nil {
			return core.Invoice{}, fmt.Errorf("get card: %w", err)
		}
		closingDate, dueDate := invoiceDates(period, card.ClosingDay, card.DueDay)
		inv = core.Invoice{
			ID:          uuid.NewString(),
			WorkspaceID: card.WorkspaceID,
			CardID:      cardID,
			Period:      period,
			Total:       total,
			Status:      core.InvoiceOpen,
			ClosingDate: closingDate,
			DueDate:     dueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	case err != nil:
		return core.Invoice{}, fmt.Errorf("get invoice: %w", err)
	default:
		inv.Total = total
		inv.UpdatedAt = now
	}

	if err := s.store.UpsertInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("upsert invoice: %w", err)
	}

	slog.InfoContext(ctx, "Recomputed invoice",
		"card_id", cardID,
		"period", period,
		"total", inv.Total.String(),
		"obligations", len(obligations))

	s.publish(ctx, amqp.NewLedgerSyncMessage(amqp.KindInvoice, inv.ID, inv.WorkspaceID))

	return inv, nil
}

// Get returns the invoice for (card, period), checking workspace ownership.
func (s *InvoiceService) Get(ctx context.Context, workspaceID, cardID string, period core.Period) (core.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, cardID, period)
	if err != nil {
		return core.Invoice{}, err
	}
	if inv.WorkspaceID != workspaceID {
		return core.Invoice{}, core.ErrOwnership
	}
	return inv, nil
}

// List returns the workspace's invoices, optionally filtered to one card.
func (s *InvoiceService) List(ctx context.Context, workspaceID, cardID string) ([]core.Invoice, error) {
	return s.store.ListInvoices(ctx, workspaceID, cardID)
}

// SetStatus changes an invoice status. Moving to paid stamps the paid
// timestamp; any other status clears it. Transitions are permissive: any
// status can move to any other.
func (s *InvoiceService) SetStatus(ctx context.Context, workspaceID, cardID string, period core.Period, status core.InvoiceStatus) (core.Invoice, error) {
	if err := status.Validate(); err != nil {
		return core.Invoice{}, err
	}

	inv, err := s.Get(ctx, workspaceID, cardID, period)
	if err != nil {
		return core.Invoice{}, err
	}

	now := time.Now()
	inv.Status = status
	if status == core.InvoicePaid {
		inv.PaidAt = &now
	} else {
		inv.PaidAt = nil
	}
	inv.UpdatedAt = now

	if err := s.store.UpsertInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("upsert invoice: %w", err)
	}

	slog.InfoContext(ctx, "Updated invoice status",
		"card_id", cardID,
		"period", period,
		"status", status)

	s.publish(ctx, amqp.NewLedgerSyncMessage(amqp.KindInvoice, inv.ID, inv.WorkspaceID))

	return inv, nil
}

// InvoicesByDueMonth returns the workspace's invoices whose due date falls
// in the given calendar month.
func (s *InvoiceService) InvoicesByDueMonth(ctx context.Context, workspaceID string, year int, month time.Month) ([]core.Invoice, error) {
	all, err := s.store.ListInvoices(ctx, workspaceID, "")
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	var out []core.Invoice
	for _, inv := range all {
		if inv.DueDate.Year() == year && inv.DueDate.Month() == month {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *InvoiceService) publish(ctx context.Context, msg *amqp.LedgerSyncMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish invoice sync message",
			"id", msg.ID, "error", err)
	}
}

// invoiceDates derives the closing and due dates of a period's invoice from
// the card's closing and due day-of-month. A due day at or before the
// closing day rolls the due date into the following month. Days past the
// end of a month clamp to its last day.
func invoiceDates(period core.Period, closingDay, dueDay int) (closing, due time.Time) {
	closing = dateInMonth(period.Year(), time.Month(period.Month()), closingDay)

	dueYear, dueMonth := period.Year(), time.Month(period.Month())
	if dueDay <= closingDay {
		next := period.Shift(1)
		dueYear, dueMonth = next.Year(), time.Month(next.Month())
	}
	due = dateInMonth(dueYear, dueMonth, dueDay)
	return closing, due
}

// dateInMonth returns the given day in (year, month) UTC, clamped to the
// month's last day.
func dateInMonth(year int, month time.Month, day int) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
