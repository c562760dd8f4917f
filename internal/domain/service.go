package domain

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LedgerRepository captures persistence operations for activity entries.
type LedgerRepository interface {
	// Create persists the entry and records its outbox event in a single
	// transaction.
	Create(ctx context.Context, activity Activity) error
	// Get returns the entry regardless of owner, or nil when absent.
	Get(ctx context.Context, activityID string) (*Activity, error)
	ListByOwner(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	Delete(ctx context.Context, activityID string) error
	SummaryByOwner(ctx context.Context, ownerID string) (EmissionSummary, error)
}

// Service orchestrates ledger workflows.
type Service struct {
	repo     LedgerRepository
	resolver *FactorResolver
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo LedgerRepository, resolver *FactorResolver) *Service {
	return &Service{repo: repo, resolver: resolver, now: time.Now}
}

// RecordActivityInput captures the payload from the API layer.
type RecordActivityInput struct {
	OwnerID      string
	ActivityType string
	Quantity     float64
	// OccurredAt is optional; the zero value means "now".
	OccurredAt time.Time
}

// RecordActivity validates the input, resolves the emission factor,
// derives the signed emission amount, and persists the entry. The
// reward-point increment is applied downstream from the entry's outbox
// event, so the entry and its event are atomic while points land
// asynchronously, at least once, idempotently per entry.
func (s *Service) RecordActivity(ctx context.Context, input RecordActivityInput) (*Activity, error) {
	activityType := strings.TrimSpace(input.ActivityType)
	if activityType == "" {
		return nil, ErrMissingActivityType
	}
	if math.IsNaN(input.Quantity) || math.IsInf(input.Quantity, 0) || input.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	factor, err := s.resolver.Resolve(ctx, activityType)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	occurredAt := input.OccurredAt.UTC()
	if input.OccurredAt.IsZero() {
		occurredAt = now
	}

	activity := Activity{
		ID:             uuid.NewString(),
		OwnerID:        input.OwnerID,
		ActivityType:   activityType,
		Quantity:       input.Quantity,
		EmissionAmount: ComputeEmission(input.Quantity, factor),
		FactorUsed:     factor,
		OccurredAt:     occurredAt,
		CreatedAt:      now,
	}

	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListActivities fetches the owner's entries newest-first with keyset
// pagination. Ties on occurred_at break by insertion order.
func (s *Service) ListActivities(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.repo.ListByOwner(ctx, ownerID, cursor, limit)
}

// DeleteActivity removes an entry after re-checking ownership. Points
// already granted for the entry are never revoked.
func (s *Service) DeleteActivity(ctx context.Context, ownerID, activityID string) error {
	activity, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	if activity.OwnerID != ownerID {
		return ErrNotOwner
	}
	return s.repo.Delete(ctx, activityID)
}

// Summary returns aggregate emission totals for the owner's ledger.
func (s *Service) Summary(ctx context.Context, ownerID string) (EmissionSummary, error) {
	return s.repo.SummaryByOwner(ctx, ownerID)
}
