// Package events defines the payloads published through the outbox.
package events

import "time"

// TypeActivityRecorded identifies the event emitted for every accepted
// ledger entry. The rewards consumer keys its idempotent point grant on
// the activity id carried here.
const TypeActivityRecorded = "activity.recorded"

// ActivityRecorded is the message emitted when a ledger entry is persisted.
type ActivityRecorded struct {
	ActivityID     string    `json:"activity_id"`
	OwnerID        string    `json:"owner_id"`
	ActivityType   string    `json:"activity_type"`
	Quantity       float64   `json:"quantity"`
	EmissionAmount float64   `json:"emission_amount"`
	FactorUsed     float64   `json:"factor_used"`
	OccurredAt     time.Time `json:"occurred_at"`
	RecordedAt     time.Time `json:"recorded_at"`
}
