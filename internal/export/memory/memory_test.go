package memory

import (
	"context"
	"testing"
	"time"

	"contas/internal/core"
	"contas/internal/export"
)

func TestStore_AppendAndRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	entry := export.LedgerEntry{
		ID:          "fact-1",
		Kind:        "fact",
		WorkspaceID: "ws-1",
		Date:        time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Period:      core.Period("2025-03"),
		Description: "salary",
		Type:        "income",
		Amount:      core.MoneyFromFloat(3500),
		Projected:   false,
	}

	ref, err := s.Append(ctx, entry)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("Append() ref = %v, want mem:1", ref)
	}

	if _, err := s.Append(ctx, export.LedgerEntry{}); err == nil {
		t.Error("Append() should reject entry without ID")
	}

	if got := len(s.Entries()); got != 1 {
		t.Fatalf("Entries() len = %d, want 1", got)
	}

	if err := s.Remove(ctx, "fact-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := len(s.Entries()); got != 0 {
		t.Errorf("Entries() len after remove = %d, want 0", got)
	}
}
