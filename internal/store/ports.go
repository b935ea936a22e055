// Package store defines the persistence ports of the engine. Services
// depend on these interfaces only; selectable backends (memory, sqlite)
// live in subpackages.
package store

import (
	"context"

	"contas/internal/core"
)

// CardStore persists credit cards.
type CardStore interface {
	CreateCard(ctx context.Context, c core.Card) error
	GetCard(ctx context.Context, id string) (core.Card, error)
	ListCards(ctx context.Context, workspaceID string) ([]core.Card, error)
}

// ObligationStore persists card obligations. Reads return records
// regardless of workspace; ownership is checked by the calling service.
type ObligationStore interface {
	CreateObligations(ctx context.Context, obs []core.Obligation) error
	GetObligation(ctx context.Context, id string) (core.Obligation, error)
	UpdateObligation(ctx context.Context, o core.Obligation) error
	DeleteObligations(ctx context.Context, ids []string) error
	// SetParent links child installment lines to their parent in a second
	// pass, after the parent has a durable identity.
	SetParent(ctx context.Context, childIDs []string, parentID string) error
	ListChildren(ctx context.Context, parentID string) ([]core.Obligation, error)
	ListObligations(ctx context.Context, cardID string, period core.Period) ([]core.Obligation, error)
	// ListInstallmentParents returns parent installment lines whose period
	// is at or after fromPeriod, ordered by period then purchase date.
	ListInstallmentParents(ctx context.Context, workspaceID string, fromPeriod core.Period) ([]core.Obligation, error)
}

// InvoiceStore persists per-(card, period) summaries.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, cardID string, period core.Period) (core.Invoice, error)
	GetInvoiceByID(ctx context.Context, id string) (core.Invoice, error)
	ListInvoices(ctx context.Context, workspaceID, cardID string) ([]core.Invoice, error)
	UpsertInvoice(ctx context.Context, inv core.Invoice) error
}

// RuleStore persists recurring rules.
type RuleStore interface {
	CreateRule(ctx context.Context, r core.RecurringRule) error
	GetRule(ctx context.Context, id string) (core.RecurringRule, error)
	UpdateRule(ctx context.Context, r core.RecurringRule) error
	DeleteRule(ctx context.Context, id string) error
	ListRules(ctx context.Context, workspaceID string) ([]core.RecurringRule, error)
	// ListActiveRules returns active, not-completed rules across all
	// workspaces, for the scheduler tick.
	ListActiveRules(ctx context.Context) ([]core.RecurringRule, error)
}

// FactStore persists realized and projected facts.
type FactStore interface {
	CreateFact(ctx context.Context, f core.Fact) error
	GetFact(ctx context.Context, id string) (core.Fact, error)
	ListFacts(ctx context.Context, workspaceID string, period core.Period) ([]core.Fact, error)
	// HasProjection reports whether a projected fact already exists for the
	// (rule, period) pair. This is an existence check, not a uniqueness
	// constraint: concurrent generators can still race past it.
	HasProjection(ctx context.Context, ruleID string, period core.Period) (bool, error)
	// DeleteProjections removes projected facts for a workspace, bounded by
	// optional inclusive start/end periods (empty = unbounded). Returns the
	// number of facts deleted.
	DeleteProjections(ctx context.Context, workspaceID string, startPeriod, endPeriod core.Period) (int, error)
	// CountRealFactsByRule counts realized facts that reference a rule.
	CountRealFactsByRule(ctx context.Context, ruleID string) (int, error)
}

// Store aggregates all persistence ports behind one backend.
type Store interface {
	CardStore
	ObligationStore
	InvoiceStore
	RuleStore
	FactStore
	Close() error
}
