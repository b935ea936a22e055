package worker

import (
	"context"
	"testing"
	"time"

	"contas/internal/amqp"
	"contas/internal/core"
	exportmemory "contas/internal/export/memory"
	storememory "contas/internal/store/memory"
)

func newTestWorker() (*storememory.Store, *exportmemory.Store, *LedgerWorker) {
	st := storememory.New()
	writer := exportmemory.New()
	return st, writer, NewLedgerWorker(st, writer)
}

func TestLedgerWorker_HandleFact(t *testing.T) {
	st, writer, w := newTestWorker()
	ctx := context.Background()

	fact := core.Fact{
		ID:          "fact-1",
		WorkspaceID: "ws-1",
		Description: "salary",
		Amount:      core.MoneyFromFloat(3500.00),
		Type:        core.Income,
		Date:        time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		Period:      "2025-03",
	}
	if err := st.CreateFact(ctx, fact); err != nil {
		t.Fatalf("CreateFact() error = %v", err)
	}

	if err := w.Handle(ctx, amqp.NewLedgerSyncMessage(amqp.KindFact, "fact-1", "ws-1")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	entries := writer.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != "fact-1" || e.Kind != amqp.KindFact {
		t.Errorf("entry identity = (%s, %s), want (fact-1, fact)", e.ID, e.Kind)
	}
	if e.Type != "income" {
		t.Errorf("entry type = %s, want income", e.Type)
	}
	if !e.Amount.Equal(core.MoneyFromFloat(3500.00)) {
		t.Errorf("entry amount = %v, want 3500.00", e.Amount)
	}
	if e.Projected {
		t.Error("realized fact must not be marked projected")
	}
}

func TestLedgerWorker_SkipsProjectedFact(t *testing.T) {
	st, writer, w := newTestWorker()
	ctx := context.Background()

	fact := core.Fact{
		ID:          "fact-2",
		WorkspaceID: "ws-1",
		Description: "rent",
		Amount:      core.MoneyFromFloat(1200.00),
		Type:        core.Expense,
		Date:        time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		Period:      "2025-04",
		Projected:   true,
		Source:      core.SourceRecurring,
		Confidence:  80,
	}
	if err := st.CreateFact(ctx, fact); err != nil {
		t.Fatalf("CreateFact() error = %v", err)
	}

	if err := w.Handle(ctx, amqp.NewLedgerSyncMessage(amqp.KindFact, "fact-2", "ws-1")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// Projected facts stay out of the ledger.
	if got := len(writer.Entries()); got != 0 {
		t.Errorf("got %d ledger entries for projected fact, want 0", got)
	}
}

func TestLedgerWorker_HandleObligation(t *testing.T) {
	st, writer, w := newTestWorker()
	ctx := context.Background()

	ob := core.Obligation{
		ID:                "ob-1",
		WorkspaceID:       "ws-1",
		CardID:            "card-1",
		Description:       "fridge",
		Amount:            core.MoneyFromFloat(100.00),
		PurchaseDate:      time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
		Period:            "2025-01",
		IsInstallment:     true,
		InstallmentNumber: 2,
		TotalInstallments: 12,
	}
	if err := st.CreateObligations(ctx, []core.Obligation{ob}); err != nil {
		t.Fatalf("CreateObligations() error = %v", err)
	}

	if err := w.Handle(ctx, amqp.NewLedgerSyncMessage(amqp.KindObligation, "ob-1", "ws-1")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	entries := writer.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(entries))
	}
	if entries[0].Description != "fridge (2/12)" {
		t.Errorf("description = %q, want %q", entries[0].Description, "fridge (2/12)")
	}
	if entries[0].Type != "expense" {
		t.Errorf("type = %s, want expense", entries[0].Type)
	}
}

func TestLedgerWorker_HandleInvoice(t *testing.T) {
	st, writer, w := newTestWorker()
	ctx := context.Background()

	inv := core.Invoice{
		ID:          "inv-1",
		WorkspaceID: "ws-1",
		CardID:      "card-1",
		Period:      "2025-02",
		Total:       core.MoneyFromFloat(450.00),
		Status:      core.InvoiceOpen,
		DueDate:     time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := st.UpsertInvoice(ctx, inv); err != nil {
		t.Fatalf("UpsertInvoice() error = %v", err)
	}

	if err := w.Handle(ctx, amqp.NewLedgerSyncMessage(amqp.KindInvoice, "inv-1", "ws-1")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	entries := writer.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(entries))
	}
	if !entries[0].Amount.Equal(core.MoneyFromFloat(450.00)) {
		t.Errorf("amount = %v, want 450.00", entries[0].Amount)
	}
	if entries[0].Period != "2025-02" {
		t.Errorf("period = %s, want 2025-02", entries[0].Period)
	}
}

func TestLedgerWorker_ResyncReplacesRow(t *testing.T) {
	st, writer, w := newTestWorker()
	ctx := context.Background()

	fact := core.Fact{
		ID:          "fact-3",
		WorkspaceID: "ws-1",
		Description: "gym",
		Amount:      core.MoneyFromFloat(49.90),
		Type:        core.Expense,
		Date:        time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC),
		Period:      "2025-05",
	}
	if err := st.CreateFact(ctx, fact); err != nil {
		t.Fatalf("CreateFact() error = %v", err)
	}

	msg := amqp.NewLedgerSyncMessage(amqp.KindFact, "fact-3", "ws-1")
	if err := w.Handle(ctx, msg); err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}
	if err := w.Handle(ctx, msg); err != nil {
		t.Fatalf("second Handle() error = %v", err)
	}

	if got := len(writer.Entries()); got != 1 {
		t.Errorf("got %d ledger entries after re-sync, want 1", got)
	}
}

func TestLedgerWorker_HandleDelete(t *testing.T) {
	st, writer, w := newTestWorker()
	ctx := context.Background()

	fact := core.Fact{
		ID:          "fact-4",
		WorkspaceID: "ws-1",
		Description: "subscription",
		Amount:      core.MoneyFromFloat(9.90),
		Type:        core.Expense,
		Date:        time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Period:      "2025-06",
	}
	if err := st.CreateFact(ctx, fact); err != nil {
		t.Fatalf("CreateFact() error = %v", err)
	}
	if err := w.Handle(ctx, amqp.NewLedgerSyncMessage(amqp.KindFact, "fact-4", "ws-1")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if err := w.Handle(ctx, amqp.NewLedgerDeleteMessage(amqp.KindFact, "fact-4", "ws-1")); err != nil {
		t.Fatalf("delete Handle() error = %v", err)
	}
	if got := len(writer.Entries()); got != 0 {
		t.Errorf("got %d ledger entries after delete, want 0", got)
	}
}

func TestLedgerWorker_MissingRecordRemovesStaleRow(t *testing.T) {
	_, writer, w := newTestWorker()
	ctx := context.Background()

	// No record in the store: the worker drops the message after clearing
	// any stale ledger row instead of failing and requeueing forever.
	if err := w.Handle(ctx, amqp.NewLedgerSyncMessage(amqp.KindFact, "ghost", "ws-1")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := len(writer.Entries()); got != 0 {
		t.Errorf("got %d ledger entries, want 0", got)
	}
}

func TestLedgerWorker_UnknownKind(t *testing.T) {
	_, _, w := newTestWorker()

	msg := amqp.NewLedgerSyncMessage("category", "x", "ws-1")
	if err := w.Handle(context.Background(), msg); err == nil {
		t.Fatal("Handle() with unknown kind should fail")
	}
}
