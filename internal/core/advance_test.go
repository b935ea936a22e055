package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvancers(t *testing.T) {
	tests := []struct {
		name     string
		freq     Frequency
		interval int
		from     time.Time
		want     time.Time
	}{
		{"daily", Daily, 1, date(2025, time.January, 15), date(2025, time.January, 16)},
		{"daily interval 3", Daily, 3, date(2025, time.January, 30), date(2025, time.February, 2)},
		{"weekly", Weekly, 1, date(2025, time.January, 1), date(2025, time.January, 8)},
		{"weekly interval 2", Weekly, 2, date(2025, time.January, 1), date(2025, time.January, 15)},
		{"monthly", Monthly, 1, date(2025, time.January, 15), date(2025, time.February, 15)},
		{"monthly interval 2", Monthly, 2, date(2025, time.November, 30), date(2026, time.January, 30)},
		{"quarterly", Quarterly, 1, date(2025, time.January, 10), date(2025, time.April, 10)},
		{"quarterly interval 2", Quarterly, 2, date(2025, time.January, 10), date(2025, time.July, 10)},
		{"yearly", Yearly, 1, date(2025, time.March, 1), date(2026, time.March, 1)},
		{"yearly leap day", Yearly, 1, date(2024, time.February, 29), date(2025, time.March, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.from, tt.freq, tt.interval)
			if err != nil {
				t.Fatalf("NextOccurrence: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyAdvanceEndOfMonthNormalizes(t *testing.T) {
	// AddDate semantics: Jan 31 + 1 month normalizes past February.
	got, err := NextOccurrence(date(2025, time.January, 31), Monthly, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Month() != time.March || got.Day() != 3 {
		t.Errorf("got %v, want 2025-03-03 (normalized)", got)
	}
}

func TestAdvancerForUnknownFrequency(t *testing.T) {
	if _, err := AdvancerFor("fortnightly"); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestNextOccurrenceClampsInterval(t *testing.T) {
	got, err := NextOccurrence(date(2025, time.May, 1), Daily, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(date(2025, time.May, 2)) {
		t.Errorf("interval 0 should behave as 1, got %v", got)
	}
}
