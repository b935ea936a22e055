// Recurrence date advancement. Each frequency has its own strategy that
// encapsulates how one occurrence steps to the next; a registry maps
// frequencies to strategies so callers never switch on the frequency
// themselves.
package core

import (
	"fmt"
	"time"
)

// Advancer steps an occurrence date forward by interval units of its
// frequency.
type Advancer interface {
	Advance(t time.Time, interval int) time.Time
}

// DailyAdvancer adds interval days.
type DailyAdvancer struct{}

func (DailyAdvancer) Advance(t time.Time, interval int) time.Time {
	return t.AddDate(0, 0, interval)
}

// WeeklyAdvancer adds 7*interval days.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Advance(t time.Time, interval int) time.Time {
	return t.AddDate(0, 0, 7*interval)
}

// MonthlyAdvancer adds interval calendar months. Month arithmetic follows
// time.Time.AddDate semantics: a day past the end of the target month
// normalizes forward, so Jan 31 + 1 month lands in early March.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Advance(t time.Time, interval int) time.Time {
	return t.AddDate(0, interval, 0)
}

// QuarterlyAdvancer adds 3*interval calendar months.
type QuarterlyAdvancer struct{}

func (QuarterlyAdvancer) Advance(t time.Time, interval int) time.Time {
	return t.AddDate(0, 3*interval, 0)
}

// YearlyAdvancer adds interval years.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Advance(t time.Time, interval int) time.Time {
	return t.AddDate(interval, 0, 0)
}

var advancers = map[Frequency]Advancer{
	Daily:     DailyAdvancer{},
	Weekly:    WeeklyAdvancer{},
	Monthly:   MonthlyAdvancer{},
	Quarterly: QuarterlyAdvancer{},
	Yearly:    YearlyAdvancer{},
}

// AdvancerFor returns the strategy for a frequency.
func AdvancerFor(f Frequency) (Advancer, error) {
	a, ok := advancers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrequency, f)
	}
	return a, nil
}

// NextOccurrence applies a rule's frequency and interval to the given
// occurrence date. Intervals below 1 are treated as 1.
func NextOccurrence(from time.Time, f Frequency, interval int) (time.Time, error) {
	a, err := AdvancerFor(f)
	if err != nil {
		return time.Time{}, err
	}
	if interval < 1 {
		interval = 1
	}
	return a.Advance(from, interval), nil
}
