package core

import "errors"

var (
	// ErrNotFound is returned when a referenced card, rule, obligation,
	// invoice or fact does not exist in the store.
	ErrNotFound = errors.New("record not found")

	// ErrOwnership is returned when a record exists but belongs to a
	// different workspace than the one supplied by the caller.
	ErrOwnership = errors.New("record belongs to another workspace")

	// ErrInvalidTransition covers operations rejected because of the
	// record's current state: editing an installment child directly,
	// executing a completed rule, deleting a rule with realized history.
	ErrInvalidTransition = errors.New("invalid state transition")

	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPeriod       = errors.New("invalid period label")
	ErrInvalidInstallments = errors.New("installment count must be between 2 and 48")
	ErrInvalidClosingDay   = errors.New("closing day must be between 1 and 31")
	ErrInvalidDueDay       = errors.New("due day must be between 1 and 31")
	ErrInvalidFrequency    = errors.New("invalid recurrence frequency")
	ErrInvalidInterval     = errors.New("recurrence interval must be at least 1")
	ErrInvalidConfidence   = errors.New("confidence must be between 0 and 100")
	ErrEmptyDescription    = errors.New("empty description")
)
