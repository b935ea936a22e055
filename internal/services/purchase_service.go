package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/store"
)

// PurchaseService records purchases on cards, splitting installment buys
// into one parent plus N-1 child obligations and keeping the touched
// invoices in sync.
type PurchaseService struct {
	store     store.Store
	invoices  *InvoiceService
	publisher LedgerPublisher
}

func NewPurchaseService(st store.Store, invoices *InvoiceService, publisher LedgerPublisher) *PurchaseService {
	return &PurchaseService{
		store:     st,
		invoices:  invoices,
		publisher: publisher,
	}
}

// PurchaseInput describes one purchase to record.
type PurchaseInput struct {
	CardID            string
	CategoryID        string
	Description       string
	Amount            core.Money
	PurchaseDate      time.Time
	IsInstallment     bool
	TotalInstallments int
}

// ObligationPatch carries the updatable fields of an obligation. Nil
// pointers leave the field unchanged.
type ObligationPatch struct {
	Description  *string
	CategoryID   *string
	Amount       *core.Money
	PurchaseDate *time.Time
}

// RecordPurchase creates the obligation lines for a purchase. A plain
// purchase yields one line; an installment purchase yields N lines, all
// dated on the purchase date, with the period label advancing one month per
// line. Line 1 is the parent; lines 2..N are linked to it in a second pass
// once the parent has a durable identity. Every distinct period touched gets
// its invoice recomputed.
func (s *PurchaseService) RecordPurchase(ctx context.Context, workspaceID string, in PurchaseInput) ([]core.Obligation, error) {
	if err := in.Amount.Validate(); err != nil {
		return nil, err
	}
	if in.IsInstallment {
		if in.TotalInstallments < core.MinInstallments || in.TotalInstallments > core.MaxInstallments {
			return nil, core.ErrInvalidInstallments
		}
	}

	card, err := s.store.GetCard(ctx, in.CardID)
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	if card.WorkspaceID != workspaceID {
		return nil, core.ErrOwnership
	}

	basePeriod := core.PeriodFor(in.PurchaseDate, card.ClosingDay)
	now := time.Now()

	var obligations []core.Obligation
	if !in.IsInstallment {
		obligations = []core.Obligation{{
			ID:           uuid.NewString(),
			WorkspaceID:  workspaceID,
			CardID:       in.CardID,
			CategoryID:   in.CategoryID,
			Description:  in.Description,
			Amount:       in.Amount,
			PurchaseDate: in.PurchaseDate,
			Period:       basePeriod,
			CreatedAt:    now,
			UpdatedAt:    now,
		}}
	} else {
		// Each line rounds total/N to 2 decimals independently; the sum may
		// drift from the original total by up to 0.01*N. See Money.SplitEven.
		lineAmount := in.Amount.SplitEven(in.TotalInstallments)
		obligations = make([]core.Obligation, 0, in.TotalInstallments)
		for i := 1; i <= in.TotalInstallments; i++ {
			obligations = append(obligations, core.Obligation{
				ID:                uuid.NewString(),
				WorkspaceID:       workspaceID,
				CardID:            in.CardID,
				CategoryID:        in.CategoryID,
				Description:       in.Description,
				Amount:            lineAmount,
				PurchaseDate:      in.PurchaseDate,
				Period:            basePeriod.Shift(i - 1),
				IsInstallment:     true,
				InstallmentNumber: i,
				TotalInstallments: in.TotalInstallments,
				CreatedAt:         now,
				UpdatedAt:         now,
			})
		}
	}

	for _, o := range obligations {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateObligations(ctx, obligations); err != nil {
		return nil, fmt.Errorf("create obligations: %w", err)
	}

	if in.IsInstallment {
		parentID := obligations[0].ID
		childIDs := make([]string, 0, len(obligations)-1)
		for i := 1; i < len(obligations); i++ {
			childIDs = append(childIDs, obligations[i].ID)
			obligations[i].ParentID = parentID
		}
		if err := s.store.SetParent(ctx, childIDs, parentID); err != nil {
			return nil, fmt.Errorf("link installment children: %w", err)
		}
	}

	for _, period := range distinctPeriods(obligations) {
		if _, err := s.invoices.Recompute(ctx, in.CardID, period); err != nil {
			return nil, fmt.Errorf("recompute invoice %s: %w", period, err)
		}
	}

	slog.InfoContext(ctx, "Recorded purchase",
		"workspace_id", workspaceID,
		"card_id", in.CardID,
		"amount", in.Amount.String(),
		"installments", len(obligations),
		"period", basePeriod)

	for _, o := range obligations {
		s.publish(ctx, amqp.NewLedgerSyncMessage(amqp.KindObligation, o.ID, o.WorkspaceID))
	}

	return obligations, nil
}

// UpdateObligation edits a purchase line. Children cannot be edited
// directly; description and category changes on an installment parent
// propagate to its children, while amount and date changes apply to the
// parent line only. A date change that moves the line across a period
// boundary recomputes both the old and the new invoice.
func (s *PurchaseService) UpdateObligation(ctx context.Context, workspaceID, id string, patch ObligationPatch) (core.Obligation, error) {
	o, err := s.store.GetObligation(ctx, id)
	if err != nil {
		return core.Obligation{}, err
	}
	if o.WorkspaceID != workspaceID {
		return core.Obligation{}, core.ErrOwnership
	}
	if o.IsChild() {
		return core.Obligation{}, core.ErrInvalidTransition
	}

	now := time.Now()
	oldPeriod := o.Period

	if patch.Description != nil {
		o.Description = *patch.Description
	}
	if patch.CategoryID != nil {
		o.CategoryID = *patch.CategoryID
	}
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return core.Obligation{}, err
		}
		o.Amount = *patch.Amount
	}
	if patch.PurchaseDate != nil {
		card, err := s.store.GetCard(ctx, o.CardID)
		if err != nil {
			return core.Obligation{}, fmt.Errorf("get card: %w", err)
		}
		o.PurchaseDate = *patch.PurchaseDate
		o.Period = core.PeriodFor(o.PurchaseDate, card.ClosingDay)
	}
	o.UpdatedAt = now

	if err := o.Validate(); err != nil {
		return core.Obligation{}, err
	}
	if err := s.store.UpdateObligation(ctx, o); err != nil {
		return core.Obligation{}, fmt.Errorf("update obligation: %w", err)
	}

	if o.IsInstallment && (patch.Description != nil || patch.CategoryID != nil) {
		children, err := s.store.ListChildren(ctx, o.ID)
		if err != nil {
			return core.Obligation{}, fmt.Errorf("list children: %w", err)
		}
		for _, child := range children {
			if patch.Description != nil {
				child.Description = *patch.Description
			}
			if patch.CategoryID != nil {
				child.CategoryID = *patch.CategoryID
			}
			child.UpdatedAt = now
			if err := s.store.UpdateObligation(ctx, child); err != nil {
				return core.Obligation{}, fmt.Errorf("update child obligation: %w", err)
			}
		}
	}

	periods := []core.Period{oldPeriod}
	if o.Period != oldPeriod {
		periods = append(periods, o.Period)
	}
	for _, period := range periods {
		if _, err := s.invoices.Recompute(ctx, o.CardID, period); err != nil {
			return core.Obligation{}, fmt.Errorf("recompute invoice %s: %w", period, err)
		}
	}

	s.publish(ctx, amqp.NewLedgerSyncMessage(amqp.KindObligation, o.ID, o.WorkspaceID))

	return o, nil
}

// DeleteObligation removes a purchase line. Deleting an installment parent
// cascades to all children; deleting a child directly is rejected. Every
// period touched by the deleted set has its invoice recomputed.
func (s *PurchaseService) DeleteObligation(ctx context.Context, workspaceID, id string) error {
	o, err := s.store.GetObligation(ctx, id)
	if err != nil {
		return err
	}
	if o.WorkspaceID != workspaceID {
		return core.ErrOwnership
	}
	if o.IsChild() {
		return core.ErrInvalidTransition
	}

	doomed := []core.Obligation{o}
	if o.IsInstallment {
		children, err := s.store.ListChildren(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list children: %w", err)
		}
		doomed = append(doomed, children...)
	}

	ids := make([]string, len(doomed))
	for i, d := range doomed {
		ids[i] = d.ID
	}
	if err := s.store.DeleteObligations(ctx, ids); err != nil {
		return fmt.Errorf("delete obligations: %w", err)
	}

	for _, period := range distinctPeriods(doomed) {
		if _, err := s.invoices.Recompute(ctx, o.CardID, period); err != nil {
			return fmt.Errorf("recompute invoice %s: %w", period, err)
		}
	}

	slog.InfoContext(ctx, "Deleted obligation",
		"workspace_id", workspaceID,
		"obligation_id", id,
		"cascade", len(doomed))

	for _, d := range doomed {
		s.publish(ctx, amqp.NewLedgerDeleteMessage(amqp.KindObligation, d.ID, d.WorkspaceID))
	}

	return nil
}

// PendingInstallment is an installment series with lines still ahead of a
// reference period.
type PendingInstallment struct {
	Parent          core.Obligation
	RemainingCount  int
	RemainingAmount core.Money
}

// PendingInstallments returns the workspace's installment series that still
// have lines billing at or after fromPeriod.
func (s *PurchaseService) PendingInstallments(ctx context.Context, workspaceID string, fromPeriod core.Period) ([]PendingInstallment, error) {
	if err := fromPeriod.Validate(); err != nil {
		return nil, err
	}

	// Series whose parent already billed before fromPeriod can still have
	// pending children, so scan parents from the earliest representable
	// period and filter on the lines.
	parents, err := s.store.ListInstallmentParents(ctx, workspaceID, core.Period("0000-01"))
	if err != nil {
		return nil, fmt.Errorf("list installment parents: %w", err)
	}

	var out []PendingInstallment
	for _, parent := range parents {
		lines := []core.Obligation{parent}
		children, err := s.store.ListChildren(ctx, parent.ID)
		if err != nil {
			return nil, fmt.Errorf("list children: %w", err)
		}
		lines = append(lines, children...)

		pending := PendingInstallment{Parent: parent}
		for _, line := range lines {
			if line.Period >= fromPeriod {
				pending.RemainingCount++
				pending.RemainingAmount = pending.RemainingAmount.Add(line.Amount)
			}
		}
		if pending.RemainingCount > 0 {
			out = append(out, pending)
		}
	}
	return out, nil
}

func (s *PurchaseService) publish(ctx context.Context, msg *amqp.LedgerSyncMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish obligation sync message",
			"id", msg.ID, "error", err)
	}
}

func distinctPeriods(obs []core.Obligation) []core.Period {
	seen := make(map[core.Period]struct{}, len(obs))
	var out []core.Period
	for _, o := range obs {
		if _, ok := seen[o.Period]; ok {
			continue
		}
		seen[o.Period] = struct{}{}
		out = append(out, o.Period)
	}
	return out
}
