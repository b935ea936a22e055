package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/store"
)

// RecurringService manages recurring rules and materializes realized facts
// from them. Execute is not idempotent: the scheduler guarantees at-most-one
// call per due rule per tick.
type RecurringService struct {
	store     store.Store
	publisher LedgerPublisher
}

func NewRecurringService(st store.Store, publisher LedgerPublisher) *RecurringService {
	return &RecurringService{
		store:     st,
		publisher: publisher,
	}
}

// RuleInput describes a recurring rule to create.
type RuleInput struct {
	CategoryID     string
	Description    string
	Amount         core.Money
	Type           core.FactType
	Frequency      core.Frequency
	Interval       int
	StartDate      time.Time
	EndDate        time.Time // zero = open-ended
	MaxOccurrences int       // 0 = unlimited
}

// RulePatch carries the updatable fields of a rule. Nil pointers leave the
// field unchanged.
type RulePatch struct {
	CategoryID     *string
	Description    *string
	Amount         *core.Money
	Frequency      *core.Frequency
	Interval       *int
	NextOccurrence *time.Time
	EndDate        *time.Time
	MaxOccurrences *int
	Active         *bool
}

// Create registers a new active rule anchored at its start date.
func (s *RecurringService) Create(ctx context.Context, workspaceID string, in RuleInput) (core.RecurringRule, error) {
	if in.StartDate.IsZero() {
		return core.RecurringRule{}, core.ErrInvalidPeriod
	}

	now := time.Now()
	rule := core.RecurringRule{
		ID:             uuid.NewString(),
		WorkspaceID:    workspaceID,
		CategoryID:     in.CategoryID,
		Description:    in.Description,
		Amount:         in.Amount,
		Type:           in.Type,
		Frequency:      in.Frequency,
		Interval:       in.Interval,
		NextOccurrence: in.StartDate,
		EndDate:        in.EndDate,
		MaxOccurrences: in.MaxOccurrences,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}

	if err := s.store.CreateRule(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", err)
	}

	slog.InfoContext(ctx, "Created recurring rule",
		"workspace_id", workspaceID,
		"rule_id", rule.ID,
		"frequency", rule.Frequency,
		"amount", rule.Amount.String())

	return rule, nil
}

// Get returns a rule, checking workspace ownership.
func (s *RecurringService) Get(ctx context.Context, workspaceID, id string) (core.RecurringRule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if rule.WorkspaceID != workspaceID {
		return core.RecurringRule{}, core.ErrOwnership
	}
	return rule, nil
}

// List returns the workspace's rules.
func (s *RecurringService) List(ctx context.Context, workspaceID string) ([]core.RecurringRule, error) {
	return s.store.ListRules(ctx, workspaceID)
}

// Update patches a rule and re-derives its completion state.
func (s *RecurringService) Update(ctx context.Context, workspaceID, id string, patch RulePatch) (core.RecurringRule, error) {
	rule, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return core.RecurringRule{}, err
	}

	if patch.CategoryID != nil {
		rule.CategoryID = *patch.CategoryID
	}
	if patch.Description != nil {
		rule.Description = *patch.Description
	}
	if patch.Amount != nil {
		rule.Amount = *patch.Amount
	}
	if patch.Frequency != nil {
		rule.Frequency = *patch.Frequency
	}
	if patch.Interval != nil {
		rule.Interval = *patch.Interval
	}
	if patch.NextOccurrence != nil {
		rule.NextOccurrence = *patch.NextOccurrence
	}
	if patch.EndDate != nil {
		rule.EndDate = *patch.EndDate
	}
	if patch.MaxOccurrences != nil {
		rule.MaxOccurrences = *patch.MaxOccurrences
	}
	if patch.Active != nil {
		rule.Active = *patch.Active
	}
	rule.UpdatedAt = time.Now()

	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}

	// Completion is derived, never set directly.
	rule.Completed = core.RuleCompleted(rule.OccurrenceCount, rule.MaxOccurrences, rule.NextOccurrence, rule.EndDate)
	if rule.Completed {
		rule.Active = false
		rule.NextOccurrence = time.Time{}
	}

	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("update rule: %w", err)
	}
	return rule, nil
}

// Delete removes a rule. A rule with realized facts attached is history and
// cannot be deleted.
func (s *RecurringService) Delete(ctx context.Context, workspaceID, id string) error {
	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return err
	}

	realized, err := s.store.CountRealFactsByRule(ctx, id)
	if err != nil {
		return fmt.Errorf("count realized facts: %w", err)
	}
	if realized > 0 {
		return core.ErrInvalidTransition
	}

	if err := s.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	slog.InfoContext(ctx, "Deleted recurring rule",
		"workspace_id", workspaceID,
		"rule_id", id)

	return nil
}

// Execute materializes one realized fact dated now for the rule, increments
// its occurrence counter, advances the next occurrence, and derives
// completion. Executing an inactive or completed rule is rejected.
func (s *RecurringService) Execute(ctx context.Context, workspaceID, id string) (core.Fact, error) {
	rule, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return core.Fact{}, err
	}
	if !rule.Active || rule.Completed || rule.NextOccurrence.IsZero() {
		return core.Fact{}, core.ErrInvalidTransition
	}

	now := time.Now()
	fact := core.Fact{
		ID:          uuid.NewString(),
		WorkspaceID: rule.WorkspaceID,
		CategoryID:  rule.CategoryID,
		Description: rule.Description,
		Amount:      rule.Amount,
		Type:        rule.Type,
		Date:        now,
		Period:      core.PeriodOf(now),
		RuleID:      rule.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := fact.Validate(); err != nil {
		return core.Fact{}, err
	}
	if err := s.store.CreateFact(ctx, fact); err != nil {
		return core.Fact{}, fmt.Errorf("create fact: %w", err)
	}

	next, err := core.NextOccurrence(rule.NextOccurrence, rule.Frequency, rule.Interval)
	if err != nil {
		return core.Fact{}, fmt.Errorf("advance rule: %w", err)
	}

	rule.OccurrenceCount++
	rule.LastExecutedAt = now
	rule.UpdatedAt = now
	if core.RuleCompleted(rule.OccurrenceCount, rule.MaxOccurrences, next, rule.EndDate) {
		rule.Completed = true
		rule.Active = false
		rule.NextOccurrence = time.Time{}
	} else {
		rule.NextOccurrence = next
	}

	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return core.Fact{}, fmt.Errorf("update rule: %w", err)
	}

	slog.InfoContext(ctx, "Executed recurring rule",
		"workspace_id", workspaceID,
		"rule_id", rule.ID,
		"fact_id", fact.ID,
		"occurrence_count", rule.OccurrenceCount,
		"completed", rule.Completed)

	s.publish(ctx, amqp.NewLedgerSyncMessage(amqp.KindFact, fact.ID, fact.WorkspaceID))

	return fact, nil
}

// DueRules is the pure tick function: it returns the active rules whose
// next occurrence is at or before now, across all workspaces. The caller
// invokes Execute once per returned rule.
func (s *RecurringService) DueRules(ctx context.Context, now time.Time) ([]core.RecurringRule, error) {
	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	var due []core.RecurringRule
	for _, rule := range rules {
		if rule.NextOccurrence.IsZero() || rule.NextOccurrence.After(now) {
			continue
		}
		due = append(due, rule)
	}
	return due, nil
}

func (s *RecurringService) publish(ctx context.Context, msg *amqp.LedgerSyncMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish fact sync message",
			"id", msg.ID, "error", err)
	}
}
