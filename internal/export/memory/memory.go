// Package memory provides an in-process LedgerWriter used in tests and when
// no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"contas/internal/export"
)

type Store struct {
	mu      sync.Mutex
	entries []export.LedgerEntry
}

func New() *Store {
	return &Store{}
}

var _ export.LedgerWriter = (*Store)(nil)

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e export.LedgerEntry) (string, error) {
	if e.ID == "" {
		return "", fmt.Errorf("ledger entry ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return fmt.Sprintf("mem:%d", len(s.entries)), nil
}

// Remove deletes all entries with the given ID.
func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// Entries returns a copy of the stored entries.
func (s *Store) Entries() []export.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.LedgerEntry(nil), s.entries...)
}
