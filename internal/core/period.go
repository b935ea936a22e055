// Package core holds the domain model of the allocation and projection
// engine: periods, money, obligations, invoices, recurring rules and facts.
//
// This file implements invoice/competency period handling. A period is the
// string "YYYY-MM" (4-digit year, 2-digit zero-padded month). The format is
// a contract: periods are used both as record keys and as lexicographically
// sortable filter values, so it must never change shape.
package core

import (
	"fmt"
	"strconv"
	"time"
)

// Period identifies one monthly billing/competency cycle.
type Period string

// NewPeriod builds a period from a year and a 1-12 month.
func NewPeriod(year, month int) Period {
	return Period(fmt.Sprintf("%04d-%02d", year, month))
}

// ParsePeriod validates a raw label and returns it as a Period.
func ParsePeriod(s string) (Period, error) {
	if len(s) != 7 || s[4] != '-' {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil || month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return NewPeriod(year, month), nil
}

// PeriodOf returns the calendar period the given date falls in.
func PeriodOf(t time.Time) Period {
	return NewPeriod(t.Year(), int(t.Month()))
}

// PeriodFor maps a purchase date and a card's closing day to the invoice
// period the purchase bills into. A purchase after the closing day rolls
// into the next month; a purchase on the closing day itself stays in the
// current month. The caller's calendar fields are taken as-is, no timezone
// normalization is applied.
func PeriodFor(date time.Time, closingDay int) Period {
	year, month, day := date.Date()
	m := int(month)
	if day > closingDay {
		m++
		if m > 12 {
			m = 1
			year++
		}
	}
	return NewPeriod(year, m)
}

// Year returns the period's 4-digit year.
func (p Period) Year() int {
	y, _ := strconv.Atoi(string(p)[:4])
	return y
}

// Month returns the period's month, 1-12.
func (p Period) Month() int {
	m, _ := strconv.Atoi(string(p)[5:])
	return m
}

// Shift adds a whole-month offset, carrying the year on month overflow or
// underflow. Negative offsets are allowed.
func (p Period) Shift(months int) Period {
	idx := p.Year()*12 + (p.Month() - 1) + months
	return NewPeriod(idx/12, idx%12+1)
}

// Bounds returns the first and last calendar day of the period in UTC.
func (p Period) Bounds() (first, last time.Time) {
	first = time.Date(p.Year(), time.Month(p.Month()), 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last
}

// Validate checks the period has the canonical YYYY-MM shape.
func (p Period) Validate() error {
	_, err := ParsePeriod(string(p))
	return err
}

func (p Period) String() string {
	return string(p)
}
