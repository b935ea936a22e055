// Package memory implements store.Store with mutex-guarded maps. It is the
// default backend and the one the service tests run against. Mutations are
// last-writer-wins per record; the multi-record installment write is not
// atomic here, matching the engine's documented best-effort semantics.
package memory

import (
	"context"
	"sort"
	"sync"

	"contas/internal/core"
	"contas/internal/store"
)

type Store struct {
	mu          sync.Mutex
	cards       map[string]core.Card
	obligations map[string]core.Obligation
	invoices    map[string]core.Invoice // keyed by cardID + "|" + period
	rules       map[string]core.RecurringRule
	facts       map[string]core.Fact
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		cards:       make(map[string]core.Card),
		obligations: make(map[string]core.Obligation),
		invoices:    make(map[string]core.Invoice),
		rules:       make(map[string]core.RecurringRule),
		facts:       make(map[string]core.Fact),
	}
}

func (s *Store) Close() error { return nil }

func invoiceKey(cardID string, period core.Period) string {
	return cardID + "|" + string(period)
}

// Cards

func (s *Store) CreateCard(_ context.Context, c core.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = c
	return nil
}

func (s *Store) GetCard(_ context.Context, id string) (core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return core.Card{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCards(_ context.Context, workspaceID string) ([]core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Card
	for _, c := range s.cards {
		if c.WorkspaceID == workspaceID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Obligations

func (s *Store) CreateObligations(_ context.Context, obs []core.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range obs {
		s.obligations[o.ID] = o
	}
	return nil
}

func (s *Store) GetObligation(_ context.Context, id string) (core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[id]
	if !ok {
		return core.Obligation{}, core.ErrNotFound
	}
	return o, nil
}

func (s *Store) UpdateObligation(_ context.Context, o core.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obligations[o.ID]; !ok {
		return core.ErrNotFound
	}
	s.obligations[o.ID] = o
	return nil
}

func (s *Store) DeleteObligations(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.obligations, id)
	}
	return nil
}

func (s *Store) SetParent(_ context.Context, childIDs []string, parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range childIDs {
		o, ok := s.obligations[id]
		if !ok {
			return core.ErrNotFound
		}
		o.ParentID = parentID
		s.obligations[id] = o
	}
	return nil
}

func (s *Store) ListChildren(_ context.Context, parentID string) ([]core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Obligation
	for _, o := range s.obligations {
		if o.ParentID == parentID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out, nil
}

func (s *Store) ListObligations(_ context.Context, cardID string, period core.Period) ([]core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Obligation
	for _, o := range s.obligations {
		if o.CardID == cardID && o.Period == period {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListInstallmentParents(_ context.Context, workspaceID string, fromPeriod core.Period) ([]core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Obligation
	for _, o := range s.obligations {
		if o.WorkspaceID == workspaceID && o.IsInstallment && o.ParentID == "" && o.Period >= fromPeriod {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].PurchaseDate.After(out[j].PurchaseDate)
	})
	return out, nil
}

// Invoices

func (s *Store) GetInvoice(_ context.Context, cardID string, period core.Period) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invoiceKey(cardID, period)]
	if !ok {
		return core.Invoice{}, core.ErrNotFound
	}
	return inv, nil
}

func (s *Store) GetInvoiceByID(_ context.Context, id string) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return core.Invoice{}, core.ErrNotFound
}

func (s *Store) ListInvoices(_ context.Context, workspaceID, cardID string) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Invoice
	for _, inv := range s.invoices {
		if inv.WorkspaceID != workspaceID {
			continue
		}
		if cardID != "" && inv.CardID != cardID {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func (s *Store) UpsertInvoice(_ context.Context, inv core.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[invoiceKey(inv.CardID, inv.Period)] = inv
	return nil
}

// Rules

func (s *Store) CreateRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) GetRule(_ context.Context, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return core.RecurringRule{}, core.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return core.ErrNotFound
	}
	s.rules[r.ID] = r
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *Store) ListRules(_ context.Context, workspaceID string) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if r.WorkspaceID == workspaceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextOccurrence.Before(out[j].NextOccurrence) })
	return out, nil
}

func (s *Store) ListActiveRules(_ context.Context) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if r.Active && !r.Completed {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextOccurrence.Before(out[j].NextOccurrence) })
	return out, nil
}

// Facts

func (s *Store) CreateFact(_ context.Context, f core.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[f.ID] = f
	return nil
}

func (s *Store) GetFact(_ context.Context, id string) (core.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facts[id]
	if !ok {
		return core.Fact{}, core.ErrNotFound
	}
	return f, nil
}

func (s *Store) ListFacts(_ context.Context, workspaceID string, period core.Period) ([]core.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Fact
	for _, f := range s.facts {
		if f.WorkspaceID == workspaceID && f.Period == period {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) HasProjection(_ context.Context, ruleID string, period core.Period) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.facts {
		if f.Projected && f.RuleID == ruleID && f.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteProjections(_ context.Context, workspaceID string, startPeriod, endPeriod core.Period) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, f := range s.facts {
		if !f.Projected || f.WorkspaceID != workspaceID {
			continue
		}
		if startPeriod != "" && f.Period < startPeriod {
			continue
		}
		if endPeriod != "" && f.Period > endPeriod {
			continue
		}
		delete(s.facts, id)
		deleted++
	}
	return deleted, nil
}

func (s *Store) CountRealFactsByRule(_ context.Context, ruleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.facts {
		if !f.Projected && f.RuleID == ruleID {
			n++
		}
	}
	return n, nil
}
