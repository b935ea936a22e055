package services

import (
	"context"

	"contas/internal/amqp"
)

// LedgerPublisher publishes ledger sync messages after a write. A nil
// publisher disables the export flow; writes still succeed locally.
type LedgerPublisher interface {
	PublishLedgerSync(ctx context.Context, msg *amqp.LedgerSyncMessage) error
}
