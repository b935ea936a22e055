package amqp

import (
	"encoding/json"
	"time"
)

// Ledger entry kinds carried in sync messages.
const (
	KindFact       = "fact"
	KindInvoice    = "invoice"
	KindObligation = "obligation"
)

// LedgerSyncMessage tells the worker that a ledger entry changed. It carries
// only the kind and ID; the worker fetches the full record from the store.
type LedgerSyncMessage struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Deleted     bool      `json:"deleted,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerSyncMessage creates a sync message for a created or updated entry.
func NewLedgerSyncMessage(kind, id, workspaceID string) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		Kind:        kind,
		ID:          id,
		WorkspaceID: workspaceID,
		Timestamp:   time.Now(),
	}
}

// NewLedgerDeleteMessage creates a sync message for a removed entry.
func NewLedgerDeleteMessage(kind, id, workspaceID string) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		Kind:        kind,
		ID:          id,
		WorkspaceID: workspaceID,
		Deleted:     true,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerSyncMessageFromJSON creates a message from JSON bytes
func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
