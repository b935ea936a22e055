package services

import (
	"context"
	"fmt"
	"time"

	"contas/internal/cache"
	"contas/internal/core"
	"contas/internal/store"
)

const statsCacheSize = 256

// StatsService aggregates a period's facts into real vs projected income
// and expense totals. Results are LRU+TTL cached; staleness is bounded by
// the TTL, not invalidated on write.
type StatsService struct {
	store store.Store
	cache *cache.LRUCache[core.MonthlyStat]
}

func NewStatsService(st store.Store, ttl time.Duration) *StatsService {
	return &StatsService{
		store: st,
		cache: cache.NewLRUCache[core.MonthlyStat](statsCacheSize, ttl),
	}
}

// MonthlyStats computes the stat record for one period.
func (s *StatsService) MonthlyStats(ctx context.Context, workspaceID string, period core.Period) (core.MonthlyStat, error) {
	if err := period.Validate(); err != nil {
		return core.MonthlyStat{}, err
	}

	key := workspaceID + "|" + string(period)
	if stat, ok := s.cache.Get(key); ok {
		return stat, nil
	}

	facts, err := s.store.ListFacts(ctx, workspaceID, period)
	if err != nil {
		return core.MonthlyStat{}, fmt.Errorf("list facts: %w", err)
	}

	stat := core.MonthlyStat{Period: period}
	for _, f := range facts {
		switch {
		case f.Projected && f.Type == core.Income:
			stat.ProjectedIncome = stat.ProjectedIncome.Add(f.Amount)
			stat.ProjectedCount++
		case f.Projected:
			stat.ProjectedExpense = stat.ProjectedExpense.Add(f.Amount)
			stat.ProjectedCount++
		case f.Type == core.Income:
			stat.RealIncome = stat.RealIncome.Add(f.Amount)
			stat.FactCount++
		default:
			stat.RealExpense = stat.RealExpense.Add(f.Amount)
			stat.FactCount++
		}
	}
	stat.RealBalance = stat.RealIncome.Sub(stat.RealExpense)
	stat.ProjectedBalance = stat.ProjectedIncome.Sub(stat.ProjectedExpense)

	s.cache.Set(key, stat)
	return stat, nil
}

// YearlyStats computes one stat record per month of the year. It is
// additive with MonthlyStats: each slot equals an independent monthly call.
func (s *StatsService) YearlyStats(ctx context.Context, workspaceID string, year int) ([12]core.MonthlyStat, error) {
	var out [12]core.MonthlyStat
	for month := 1; month <= 12; month++ {
		stat, err := s.MonthlyStats(ctx, workspaceID, core.NewPeriod(year, month))
		if err != nil {
			return out, fmt.Errorf("stats for %04d-%02d: %w", year, month, err)
		}
		out[month-1] = stat
	}
	return out, nil
}
