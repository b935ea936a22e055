package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contas/internal/core"
	"contas/internal/store"
)

// ProjectionService walks recurring rules forward across a period horizon,
// materializing projected facts. Uniqueness of one projection per (rule,
// period) is best-effort: an existence check guards each insert, concurrent
// generators can still race past it.
type ProjectionService struct {
	store             store.Store
	defaultConfidence int
}

func NewProjectionService(st store.Store, defaultConfidence int) *ProjectionService {
	if defaultConfidence <= 0 || defaultConfidence > 100 {
		defaultConfidence = 80
	}
	return &ProjectionService{
		store:             st,
		defaultConfidence: defaultConfidence,
	}
}

// GenerateResult reports the outcome of one Generate call.
type GenerateResult struct {
	GeneratedCount int
	Facts          []core.Fact
}

// Generate creates projected facts for every active, incomplete rule of the
// workspace between startPeriod and endPeriod inclusive. The walk starts at
// max(rule next occurrence, start of startPeriod) and steps with the rule's
// advancer without touching the occurrence counter. Periods that already
// hold a projection for the rule are skipped unless overrideExisting wipes
// the range first. A confidence of 0 uses the configured default.
func (s *ProjectionService) Generate(ctx context.Context, workspaceID string, startPeriod, endPeriod core.Period, overrideExisting bool, confidence int) (GenerateResult, error) {
	if err := startPeriod.Validate(); err != nil {
		return GenerateResult{}, err
	}
	if err := endPeriod.Validate(); err != nil {
		return GenerateResult{}, err
	}
	if confidence == 0 {
		confidence = s.defaultConfidence
	}
	if confidence < 0 || confidence > 100 {
		return GenerateResult{}, core.ErrInvalidConfidence
	}

	if overrideExisting {
		deleted, err := s.store.DeleteProjections(ctx, workspaceID, startPeriod, endPeriod)
		if err != nil {
			return GenerateResult{}, fmt.Errorf("wipe existing projections: %w", err)
		}
		slog.InfoContext(ctx, "Wiped existing projections before regeneration",
			"workspace_id", workspaceID,
			"count", deleted)
	}

	rules, err := s.store.ListRules(ctx, workspaceID)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("list rules: %w", err)
	}

	rangeStart, _ := startPeriod.Bounds()
	_, rangeEnd := endPeriod.Bounds()

	var result GenerateResult
	for _, rule := range rules {
		if !rule.Active || rule.Completed || rule.NextOccurrence.IsZero() {
			continue
		}

		advancer, err := core.AdvancerFor(rule.Frequency)
		if err != nil {
			return GenerateResult{}, fmt.Errorf("rule %s: %w", rule.ID, err)
		}

		current := rule.NextOccurrence
		if current.Before(rangeStart) {
			current = rangeStart
		}

		for !current.After(rangeEnd) {
			period := core.PeriodOf(current)
			exists, err := s.store.HasProjection(ctx, rule.ID, period)
			if err != nil {
				return GenerateResult{}, fmt.Errorf("check projection: %w", err)
			}
			if !exists {
				now := time.Now()
				fact := core.Fact{
					ID:          uuid.NewString(),
					WorkspaceID: workspaceID,
					CategoryID:  rule.CategoryID,
					Description: rule.Description,
					Amount:      rule.Amount,
					Type:        rule.Type,
					Date:        current,
					Period:      period,
					Projected:   true,
					Source:      core.SourceRecurring,
					Confidence:  confidence,
					RuleID:      rule.ID,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := s.store.CreateFact(ctx, fact); err != nil {
					return GenerateResult{}, fmt.Errorf("create projection: %w", err)
				}
				result.Facts = append(result.Facts, fact)
				result.GeneratedCount++
			}
			current = advancer.Advance(current, rule.Interval)
		}
	}

	slog.InfoContext(ctx, "Generated projections",
		"workspace_id", workspaceID,
		"start", startPeriod,
		"end", endPeriod,
		"count", result.GeneratedCount)

	return result, nil
}

// Cleanup deletes the workspace's projected facts within the optional
// inclusive period bounds (empty = unbounded) and returns the count.
func (s *ProjectionService) Cleanup(ctx context.Context, workspaceID string, startPeriod, endPeriod core.Period) (int, error) {
	if startPeriod != "" {
		if err := startPeriod.Validate(); err != nil {
			return 0, err
		}
	}
	if endPeriod != "" {
		if err := endPeriod.Validate(); err != nil {
			return 0, err
		}
	}

	deleted, err := s.store.DeleteProjections(ctx, workspaceID, startPeriod, endPeriod)
	if err != nil {
		return 0, fmt.Errorf("delete projections: %w", err)
	}

	slog.InfoContext(ctx, "Cleaned up projections",
		"workspace_id", workspaceID,
		"count", deleted)

	return deleted, nil
}

// CleanupStale deletes projections whose period is at or before the current
// one; those should have been superseded by realized facts.
func (s *ProjectionService) CleanupStale(ctx context.Context, workspaceID string, now time.Time) (int, error) {
	return s.Cleanup(ctx, workspaceID, "", core.PeriodOf(now))
}

// MonthlyProjections returns the workspace's projected facts for a period.
func (s *ProjectionService) MonthlyProjections(ctx context.Context, workspaceID string, period core.Period) ([]core.Fact, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	facts, err := s.store.ListFacts(ctx, workspaceID, period)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}

	var out []core.Fact
	for _, f := range facts {
		if f.Projected {
			out = append(out, f)
		}
	}
	return out, nil
}
