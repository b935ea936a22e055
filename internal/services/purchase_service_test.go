package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"contas/internal/core"
	"contas/internal/store/memory"
)

func newTestServices(t *testing.T) (*memory.Store, *PurchaseService, *InvoiceService) {
	t.Helper()
	st := memory.New()
	invoices := NewInvoiceService(st, nil)
	purchases := NewPurchaseService(st, invoices, nil)
	return st, purchases, invoices
}

func seedCard(t *testing.T, st *memory.Store, workspaceID string, closingDay, dueDay int) core.Card {
	t.Helper()
	card := core.Card{
		ID:          "card-1",
		WorkspaceID: workspaceID,
		Name:        "main card",
		ClosingDay:  closingDay,
		DueDay:      dueDay,
		Active:      true,
	}
	if err := st.CreateCard(context.Background(), card); err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	return card
}

func TestRecordPurchase_SingleLine(t *testing.T) {
	st, purchases, _ := newTestServices(t)
	card := seedCard(t, st, "ws-1", 15, 25)
	ctx := context.Background()

	obs, err := purchases.RecordPurchase(ctx, "ws-1", PurchaseInput{
		CardID:       card.ID,
		Description:  "groceries",
		Amount:       core.MoneyFromFloat(87.50),
		PurchaseDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("RecordPurchase() returned %d obligations, want 1", len(obs))
	}
	if obs[0].Period != core.Period("2025-01") {
		t.Errorf("Period = %v, want 2025-01", obs[0].Period)
	}
	if obs[0].IsInstallment || obs[0].ParentID != "" {
		t.Error("single purchase should not be an installment")
	}

	inv, err := st.GetInvoice(ctx, card.ID, core.Period("2025-01"))
	if err != nil {
		t.Fatalf("GetInvoice() error = %v", err)
	}
	if !inv.Total.Equal(core.MoneyFromFloat(87.50)) {
		t.Errorf("invoice total = %v, want 87.50", inv.Total)
	}
	if inv.Status != core.InvoiceOpen {
		t.Errorf("invoice status = %v, want open", inv.Status)
	}
}

func TestRecordPurchase_InstallmentSplit(t *testing.T) {
	st, purchases, _ := newTestServices(t)
	card := seedCard(t, st, "ws-1", 15, 25)
	ctx := context.Background()

	obs, err := purchases.RecordPurchase(ctx, "ws-1", PurchaseInput{
		CardID:            card.ID,
		Description:       "new laptop",
		Amount:            core.MoneyFromFloat(1200.00),
		PurchaseDate:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		IsInstallment:     true,
		TotalInstallments: 12,
	})
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}
	if len(obs) != 12 {
		t.Fatalf("RecordPurchase() returned %d obligations, want 12", len(obs))
	}

	parent := obs[0]
	if parent.ParentID != "" {
		t.Error("first line should have no parent")
	}
	for i, o := range obs {
		if !o.Amount.Equal(core.MoneyFromFloat(100.00)) {
			t.Errorf("line %d amount = %v, want 100.00", i+1, o.Amount)
		}
		if o.InstallmentNumber != i+1 {
			t.Errorf("line %d installment number = %d", i+1, o.InstallmentNumber)
		}
		if o.TotalInstallments != 12 {
			t.Errorf("line %d total installments = %d, want 12", i+1, o.TotalInstallments)
		}
		if !o.PurchaseDate.Equal(parent.PurchaseDate) {
			t.Errorf("line %d purchase date differs from parent", i+1)
		}
		wantPeriod := core.Period("2025-01").Shift(i)
		if o.Period != wantPeriod {
			t.Errorf("line %d period = %v, want %v", i+1, o.Period, wantPeriod)
		}
		if i > 0 && o.ParentID != parent.ID {
			t.Errorf("line %d parentID = %v, want %v", i+1, o.ParentID, parent.ID)
		}
	}

	// The stored children carry the parent link too.
	children, err := st.ListChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(children) != 11 {
		t.Errorf("ListChildren() returned %d, want 11", len(children))
	}

	// Each touched period got an invoice with exactly one line's amount.
	for i := 0; i < 12; i++ {
		period := core.Period("2025-01").Shift(i)
		inv, err := st.GetInvoice(ctx, card.ID, period)
		if err != nil {
			t.Fatalf("GetInvoice(%v) error = %v", period, err)
		}
		if !inv.Total.Equal(core.MoneyFromFloat(100.00)) {
			t.Errorf("invoice %v total = %v, want 100.00", period, inv.Total)
		}
	}
}

func TestRecordPurchase_Validation(t *testing.T) {
	st, purchases, _ := newTestServices(t)
	card := seedCard(t, st, "ws-1", 15, 25)
	ctx := context.Background()
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ws      string
		input   PurchaseInput
		wantErr error
	}{
		{
			name: "installment count too low",
			ws:   "ws-1",
			input: PurchaseInput{
				CardID: card.ID, Description: "tv", Amount: core.MoneyFromFloat(100),
				PurchaseDate: date, IsInstallment: true, TotalInstallments: 1,
			},
			wantErr: core.ErrInvalidInstallments,
		},
		{
			name: "installment count too high",
			ws:   "ws-1",
			input: PurchaseInput{
				CardID: card.ID, Description: "tv", Amount: core.MoneyFromFloat(100),
				PurchaseDate: date, IsInstallment: true, TotalInstallments: 49,
			},
			wantErr: core.ErrInvalidInstallments,
		},
		{
			name: "non-positive amount",
			ws:   "ws-1",
			input: PurchaseInput{
				CardID: card.ID, Description: "tv", Amount: core.MoneyFromFloat(0),
				PurchaseDate: date,
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "wrong workspace",
			ws:   "ws-2",
			input: PurchaseInput{
				CardID: card.ID, Description: "tv", Amount: core.MoneyFromFloat(100),
				PurchaseDate: date,
			},
			wantErr: core.ErrOwnership,
		},
		{
			name: "unknown card",
			ws:   "ws-1",
			input: PurchaseInput{
				CardID: "missing", Description: "tv", Amount: core.MoneyFromFloat(100),
				PurchaseDate: date,
			},
			wantErr: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := purchases.RecordPurchase(ctx, tt.ws, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RecordPurchase() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateObligation(t *testing.T) {
	st, purchases, _ := newTestServices(t)
	card := seedCard(t, st, "ws-1", 15, 25)
	ctx := context.Background()

	obs, err := purchases.RecordPurchase(ctx, "ws-1", PurchaseInput{
		CardID:            card.ID,
		Description:       "couch",
		Amount:            core.MoneyFromFloat(900.00),
		PurchaseDate:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		IsInstallment:     true,
		TotalInstallments: 3,
	})
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}
	parent, child := obs[0], obs[1]

	t.Run("child edit rejected", func(t *testing.T) {
		desc := "renamed"
		_, err := purchases.UpdateObligation(ctx, "ws-1", child.ID, ObligationPatch{Description: &desc})
		if !errors.Is(err, core.ErrInvalidTransition) {
			t.Errorf("UpdateObligation(child) error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("wrong workspace rejected", func(t *testing.T) {
		desc := "renamed"
		_, err := purchases.UpdateObligation(ctx, "ws-2", parent.ID, ObligationPatch{Description: &desc})
		if !errors.Is(err, core.ErrOwnership) {
			t.Errorf("UpdateObligation() error = %v, want ErrOwnership", err)
		}
	})

	t.Run("description propagates to children", func(t *testing.T) {
		desc := "sofa"
		updated, err := purchases.UpdateObligation(ctx, "ws-1", parent.ID, ObligationPatch{Description: &desc})
		if err != nil {
			t.Fatalf("UpdateObligation() error = %v", err)
		}
		if updated.Description != "sofa" {
			t.Errorf("parent description = %v, want sofa", updated.Description)
		}
		children, err := st.ListChildren(ctx, parent.ID)
		if err != nil {
			t.Fatalf("ListChildren() error = %v", err)
		}
		for _, c := range children {
			if c.Description != "sofa" {
				t.Errorf("child %d description = %v, want sofa", c.InstallmentNumber, c.Description)
			}
		}
	})

	t.Run("amount change applies to parent only", func(t *testing.T) {
		amount := core.MoneyFromFloat(350.00)
		_, err := purchases.UpdateObligation(ctx, "ws-1", parent.ID, ObligationPatch{Amount: &amount})
		if err != nil {
			t.Fatalf("UpdateObligation() error = %v", err)
		}
		children, _ := st.ListChildren(ctx, parent.ID)
		for _, c := range children {
			if !c.Amount.Equal(core.MoneyFromFloat(300.00)) {
				t.Errorf("child amount = %v, should stay 300.00", c.Amount)
			}
		}
		inv, _ := st.GetInvoice(ctx, card.ID, core.Period("2025-01"))
		if !inv.Total.Equal(core.MoneyFromFloat(350.00)) {
			t.Errorf("invoice 2025-01 total = %v, want 350.00", inv.Total)
		}
	})
}

func TestUpdateObligation_DateMoveRecomputesBothPeriods(t *testing.T) {
	st, purchases, _ := newTestServices(t)
	card := seedCard(t, st, "ws-1", 15, 25)
	ctx := context.Background()

	obs, err := purchases.RecordPurchase(ctx, "ws-1", PurchaseInput{
		CardID:       card.ID,
		Description:  "concert tickets",
		Amount:       core.MoneyFromFloat(120.00),
		PurchaseDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}

	// Move past the closing day: 2025-01 -> 2025-02.
	newDate := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	updated, err := purchases.UpdateObligation(ctx, "ws-1", obs[0].ID, ObligationPatch{PurchaseDate: &newDate})
	if err != nil {
		t.Fatalf("UpdateObligation() error = %v", err)
	}
	if updated.Period != core.Period("2025-02") {
		t.Errorf("updated period = %v, want 2025-02", updated.Period)
	}

	oldInv, _ := st.GetInvoice(ctx, card.ID, core.Period("2025-01"))
	if !oldInv.Total.IsZero() {
		t.Errorf("old invoice total = %v, want 0", oldInv.Total)
	}
	newInv, _ := st.GetInvoice(ctx, card.ID, core.Period("2025-02"))
	if !newInv.Total.Equal(core.MoneyFromFloat(120.00)) {
		t.Errorf("new invoice total = %v, want 120.00", newInv.Total)
	}
}

func TestDeleteObligation_EndToEndScenario(t *testing.T) {
	st, purchases, _ := newTestServices(t)
	card := seedCard(t, st, "ws-1", 10, 20)
	ctx := context.Background()

	obs, err := purchases.RecordPurchase(ctx, "ws-1", PurchaseInput{
		CardID:            card.ID,
		Description:       "bike",
		Amount:            core.MoneyFromFloat(300.00),
		PurchaseDate:      time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		IsInstallment:     true,
		TotalInstallments: 3,
	})
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}

	wantPeriods := []core.Period{"2025-03", "2025-04", "2025-05"}
	for i, o := range obs {
		if o.Period != wantPeriods[i] {
			t.Errorf("line %d period = %v, want %v", i+1, o.Period, wantPeriods[i])
		}
		if !o.Amount.Equal(core.MoneyFromFloat(100.00)) {
			t.Errorf("line %d amount = %v, want 100.00", i+1, o.Amount)
		}
	}

	inv, err := st.GetInvoice(ctx, card.ID, core.Period("2025-03"))
	if err != nil {
		t.Fatalf("GetInvoice() error = %v", err)
	}
	if !inv.Total.Equal(core.MoneyFromFloat(100.00)) {
		t.Errorf("invoice 2025-03 total = %v, want 100.00", inv.Total)
	}

	t.Run("deleting a child directly is rejected", func(t *testing.T) {
		err := purchases.DeleteObligation(ctx, "ws-1", obs[1].ID)
		if !errors.Is(err, core.ErrInvalidTransition) {
			t.Errorf("DeleteObligation(child) error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("deleting the parent cascades and zeroes invoices", func(t *testing.T) {
		if err := purchases.DeleteObligation(ctx, "ws-1", obs[0].ID); err != nil {
			t.Fatalf("DeleteObligation() error = %v", err)
		}

		for _, o := range obs {
			if _, err := st.GetObligation(ctx, o.ID); !errors.Is(err, core.ErrNotFound) {
				t.Errorf("obligation %d still exists after cascade", o.InstallmentNumber)
			}
		}
		for _, period := range wantPeriods {
			inv, err := st.GetInvoice(ctx, card.ID, period)
			if err != nil {
				t.Fatalf("GetInvoice(%v) error = %v", period, err)
			}
			if !inv.Total.IsZero() {
				t.Errorf("invoice %v total = %v, want 0 after delete", period, inv.Total)
			}
		}
	})
}

func TestPendingInstallments(t *testing.T) {
	st, purchases, _ := newTestServices(t)
	card := seedCard(t, st, "ws-1", 15, 25)
	ctx := context.Background()

	_, err := purchases.RecordPurchase(ctx, "ws-1", PurchaseInput{
		CardID:            card.ID,
		Description:       "phone",
		Amount:            core.MoneyFromFloat(600.00),
		PurchaseDate:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		IsInstallment:     true,
		TotalInstallments: 6,
	})
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}

	// From 2025-04 the first three lines (01..03) are behind us.
	pending, err := purchases.PendingInstallments(ctx, "ws-1", core.Period("2025-04"))
	if err != nil {
		t.Fatalf("PendingInstallments() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("PendingInstallments() returned %d series, want 1", len(pending))
	}
	if pending[0].RemainingCount != 3 {
		t.Errorf("RemainingCount = %d, want 3", pending[0].RemainingCount)
	}
	if !pending[0].RemainingAmount.Equal(core.MoneyFromFloat(300.00)) {
		t.Errorf("RemainingAmount = %v, want 300.00", pending[0].RemainingAmount)
	}

	// Past the end of the series nothing is pending.
	pending, err = purchases.PendingInstallments(ctx, "ws-1", core.Period("2025-07"))
	if err != nil {
		t.Fatalf("PendingInstallments() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("PendingInstallments() returned %d series, want 0", len(pending))
	}
}
