// Package export defines the outbound ledger ports. The ledger is a flat,
// append-style mirror of facts and invoices kept in an external sheet for
// ad-hoc analysis outside the application.
package export

import (
	"context"
	"time"

	"contas/internal/core"
)

// LedgerEntry is one flattened ledger row.
type LedgerEntry struct {
	ID          string
	Kind        string
	WorkspaceID string
	Date        time.Time
	Period      core.Period
	Description string
	Type        string
	Amount      core.Money
	Projected   bool
	Confidence  int
}

// LedgerWriter appends and removes ledger rows in the external sheet.
type LedgerWriter interface {
	Append(ctx context.Context, e LedgerEntry) (rowRef string, err error)
	Remove(ctx context.Context, id string) error
}
