package core

import (
	"strconv"
	"strings"
	"time"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	InvoiceOpen   InvoiceStatus = "open"
	InvoiceClosed InvoiceStatus = "closed"
	InvoicePaid   InvoiceStatus = "paid"
)

const (
	Income  FactType = "income"
	Expense FactType = "expense"
)

const (
	SourceRecurring ProjectionSource = "recurring"
	SourceManual    ProjectionSource = "manual"
	SourceAI        ProjectionSource = "ai"
)

// Installment counts accepted for a split purchase.
const (
	MinInstallments = 2
	MaxInstallments = 48
)

type (
	Frequency        string
	InvoiceStatus    string
	FactType         string
	ProjectionSource string

	// Card is a credit card whose closing day decides which invoice period
	// a purchase bills into and whose due day positions the payment date.
	Card struct {
		ID          string
		WorkspaceID string
		Name        string
		ClosingDay  int
		DueDay      int
		Active      bool
	}

	// Obligation is one dated financial line on a card: either a whole
	// purchase or one installment of a split purchase. Children of a split
	// carry the parent's ID and are append-only once created; edits must go
	// through the parent.
	Obligation struct {
		ID                string
		WorkspaceID       string
		CardID            string
		CategoryID        string
		Description       string
		Amount            Money
		PurchaseDate      time.Time
		Period            Period
		IsInstallment     bool
		InstallmentNumber int
		TotalInstallments int
		ParentID          string
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// Invoice is the per-(card, period) summary. Total always mirrors the
	// sum of the period's obligations; status and paid timestamp change only
	// through an explicit status update.
	Invoice struct {
		ID          string
		WorkspaceID string
		CardID      string
		Period      Period
		Total       Money
		Status      InvoiceStatus
		ClosingDate time.Time
		DueDate     time.Time
		PaidAt      *time.Time
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// RecurringRule is a template that generates realized facts on execution
	// and projected facts on demand. A zero NextOccurrence means the rule has
	// completed; Completed is derived, never set directly.
	RecurringRule struct {
		ID              string
		WorkspaceID     string
		CategoryID      string
		Description     string
		Amount          Money
		Type            FactType
		Frequency       Frequency
		Interval        int
		NextOccurrence  time.Time
		EndDate         time.Time // zero = open-ended
		MaxOccurrences  int       // 0 = unlimited
		OccurrenceCount int
		Active          bool
		Completed       bool
		LastExecutedAt  time.Time
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// Fact is a realized or projected transaction allocated to a competency
	// period. Source and Confidence are only meaningful when Projected.
	Fact struct {
		ID          string
		WorkspaceID string
		CategoryID  string
		Description string
		Amount      Money
		Type        FactType
		Date        time.Time
		Period      Period
		Projected   bool
		Source      ProjectionSource
		Confidence  int
		RuleID      string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// MonthlyStat partitions one period's facts into real vs projected,
	// income vs expense. Derived on read, never stored.
	MonthlyStat struct {
		Period           Period
		RealIncome       Money
		RealExpense      Money
		RealBalance      Money
		ProjectedIncome  Money
		ProjectedExpense Money
		ProjectedBalance Money
		FactCount        int
		ProjectedCount   int
	}
)

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

func (s InvoiceStatus) Validate() error {
	switch s {
	case InvoiceOpen, InvoiceClosed, InvoicePaid:
		return nil
	default:
		return ErrInvalidTransition
	}
}

func (t FactType) Validate() error {
	if t != Income && t != Expense {
		return ErrInvalidTransition
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyDescription
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return ErrInvalidClosingDay
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

func (o Obligation) Validate() error {
	if strings.TrimSpace(o.Description) == "" {
		return ErrEmptyDescription
	}
	if err := o.Amount.Validate(); err != nil {
		return err
	}
	if o.PurchaseDate.IsZero() {
		return ErrInvalidPeriod
	}
	if err := o.Period.Validate(); err != nil {
		return err
	}
	if o.IsInstallment {
		if o.TotalInstallments < MinInstallments || o.TotalInstallments > MaxInstallments {
			return ErrInvalidInstallments
		}
		if o.InstallmentNumber < 1 || o.InstallmentNumber > o.TotalInstallments {
			return ErrInvalidInstallments
		}
	}
	return nil
}

// IsChild reports whether the obligation is an installment owned by a parent.
func (o Obligation) IsChild() bool {
	return o.ParentID != ""
}

// InstallmentLabel renders "3/12" for installment lines, "" otherwise.
func (o Obligation) InstallmentLabel() string {
	if !o.IsInstallment || o.InstallmentNumber < 1 || o.TotalInstallments < 1 {
		return ""
	}
	return strconv.Itoa(o.InstallmentNumber) + "/" + strconv.Itoa(o.TotalInstallments)
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if r.Interval < 1 {
		return ErrInvalidInterval
	}
	return nil
}

// RuleCompleted derives the completion state of a recurring rule: the
// occurrence counter reached its cap, or the next occurrence would land past
// the end date. Zero max and zero end date mean the bound is absent.
func RuleCompleted(occurrenceCount, maxOccurrences int, nextOccurrence, endDate time.Time) bool {
	if maxOccurrences > 0 && occurrenceCount >= maxOccurrences {
		return true
	}
	if !endDate.IsZero() && !nextOccurrence.IsZero() && nextOccurrence.After(endDate) {
		return true
	}
	return false
}

func (f Fact) Validate() error {
	if strings.TrimSpace(f.Description) == "" {
		return ErrEmptyDescription
	}
	if err := f.Amount.Validate(); err != nil {
		return err
	}
	if err := f.Type.Validate(); err != nil {
		return err
	}
	if err := f.Period.Validate(); err != nil {
		return err
	}
	if f.Projected && (f.Confidence < 0 || f.Confidence > 100) {
		return ErrInvalidConfidence
	}
	return nil
}

// Overdue reports whether an unpaid invoice is past its due date.
func (i Invoice) Overdue(now time.Time) bool {
	return i.Status != InvoicePaid && now.After(i.DueDate)
}
