// Package domain defines the business logic for the emissions ledger.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrActivityNotFound is returned when a ledger entry cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrNotOwner is returned when the requester does not own the referenced entry.
	ErrNotOwner = errors.New("activity belongs to a different account")
	// ErrAccountNotFound is returned when the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidQuantity rejects quantities that are missing, non-finite, or negative.
	ErrInvalidQuantity = errors.New("quantity must be a finite, non-negative number")
	// ErrMissingActivityType rejects entries without an activity type.
	ErrMissingActivityType = errors.New("activity type is required")
)

// Activity is one immutable ledger entry: a logged activity and the emission
// amount derived from it at write time. FactorUsed is captured alongside the
// result so EmissionAmount == Quantity * FactorUsed stays auditable even
// after the configured factor table changes.
type Activity struct {
	ID             string
	Seq            int64
	OwnerID        string
	ActivityType   string
	Quantity       float64
	EmissionAmount float64
	FactorUsed     float64
	OccurredAt     time.Time
	CreatedAt      time.Time
}

// Cursor models the keyset pagination token for activity listings.
type Cursor struct {
	OccurredAt time.Time
	Seq        int64
}

// TypeEmission aggregates emissions for a single activity type.
type TypeEmission struct {
	ActivityType string
	Entries      int
	Emission     float64
}

// EmissionSummary holds aggregate totals for an owner's ledger.
type EmissionSummary struct {
	Entries      int
	NetEmission  float64
	TotalEmitted float64
	TotalSaved   float64
	ByType       []TypeEmission
}
