package core

import (
	"testing"
	"time"
)

func TestPeriodFor(t *testing.T) {
	tests := []struct {
		name       string
		date       time.Time
		closingDay int
		want       Period
	}{
		{"on closing day stays in month", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 15, "2025-01"},
		{"after closing day rolls forward", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), 15, "2025-02"},
		{"before closing day stays", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), 10, "2025-03"},
		{"december rolls into next year", time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC), 20, "2026-01"},
		{"first of month with closing day 1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 1, "2025-06"},
		{"second of month with closing day 1", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 1, "2025-07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodFor(tt.date, tt.closingDay); got != tt.want {
				t.Errorf("PeriodFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriodShift(t *testing.T) {
	tests := []struct {
		p      Period
		months int
		want   Period
	}{
		{"2025-01", 0, "2025-01"},
		{"2025-01", 1, "2025-02"},
		{"2025-11", 3, "2026-02"},
		{"2025-12", 1, "2026-01"},
		{"2025-01", -1, "2024-12"},
		{"2025-03", 24, "2027-03"},
		{"2025-06", -18, "2023-12"},
	}
	for _, tt := range tests {
		if got := tt.p.Shift(tt.months); got != tt.want {
			t.Errorf("%s.Shift(%d) = %s, want %s", tt.p, tt.months, got, tt.want)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	good := []string{"2025-01", "1999-12", "2030-06"}
	for _, s := range good {
		if _, err := ParsePeriod(s); err != nil {
			t.Errorf("ParsePeriod(%q) unexpected error: %v", s, err)
		}
	}

	bad := []string{"", "2025", "2025-13", "2025-00", "25-01", "2025/01", "2025-1", "abcd-ef"}
	for _, s := range bad {
		if _, err := ParsePeriod(s); err == nil {
			t.Errorf("ParsePeriod(%q) expected error", s)
		}
	}
}

func TestPeriodSortsLexicographically(t *testing.T) {
	// The label format is a contract: string order must match time order.
	if !("2025-09" < "2025-10") || !("2025-12" < "2026-01") {
		t.Fatal("period labels must sort lexicographically")
	}
}

func TestPeriodBounds(t *testing.T) {
	first, last := Period("2025-02").Bounds()
	if first != time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("first = %v", first)
	}
	if last != time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC) {
		t.Errorf("last = %v", last)
	}

	_, leapLast := Period("2024-02").Bounds()
	if leapLast.Day() != 29 {
		t.Errorf("leap february last day = %d, want 29", leapLast.Day())
	}
}
