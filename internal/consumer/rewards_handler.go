package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/events"
)

// GrantStore applies reward-point grants. AwardPoints must be idempotent
// per activity id and perform the balance update as an atomic add at the
// storage layer; the Postgres repository satisfies both.
type GrantStore interface {
	AwardPoints(ctx context.Context, activityID, ownerID string, points int64) (bool, error)
}

// RewardsHandler grants a fixed point increment for every recorded
// activity. Combined with at-least-once Kafka delivery and the store's
// idempotency guard, each ledger entry awards points exactly once.
type RewardsHandler struct {
	store GrantStore
}

// NewRewardsHandler constructs a handler backed by the provided store.
func NewRewardsHandler(store GrantStore) *RewardsHandler {
	return &RewardsHandler{store: store}
}

// Handle applies the point grant for an activity.recorded event. Other
// event types are ignored so additional topics can share the consumer.
func (h *RewardsHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeActivityRecorded {
		return nil
	}

	var event events.ActivityRecorded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	if event.ActivityID == "" || event.OwnerID == "" {
		return fmt.Errorf("%s event missing activity or owner id", msg.EventType)
	}

	granted, err := h.store.AwardPoints(ctx, event.ActivityID, event.OwnerID, domain.PointsPerActivity)
	if err != nil {
		return err
	}
	if granted {
		recordPointsAwarded(domain.PointsPerActivity)
	} else {
		recordGrantReplay()
	}
	return nil
}
