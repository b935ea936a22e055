package log

// Canonical field names. Log consumers key dashboards off these, so new code
// reuses them instead of inventing variants.
const (
	FieldComponent    = "component"
	FieldWorkspaceID  = "workspace_id"
	FieldCardID       = "card_id"
	FieldObligationID = "obligation_id"
	FieldInvoiceID    = "invoice_id"
	FieldRuleID       = "rule_id"
	FieldFactID       = "fact_id"
	FieldPeriod       = "period"
	FieldAmount       = "amount"
	FieldInstallments = "installments"
	FieldConfidence   = "confidence"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldCount        = "count"
)

// Component names, one per subsystem.
const (
	ComponentApp        = "app"
	ComponentPurchase   = "purchase"
	ComponentInvoice    = "invoice"
	ComponentRecurring  = "recurring"
	ComponentProjection = "projection"
	ComponentStats      = "stats"
	ComponentStore      = "store"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentExport     = "export"
	ComponentScheduler  = "scheduler"
	ComponentBackend    = "backend"
)
