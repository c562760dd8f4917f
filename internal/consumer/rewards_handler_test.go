package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/events"
)

type stubGrantStore struct {
	grants map[string]int64 // activity id -> points
	err    error
}

func newStubGrantStore() *stubGrantStore {
	return &stubGrantStore{grants: make(map[string]int64)}
}

func (s *stubGrantStore) AwardPoints(_ context.Context, activityID, _ string, points int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, exists := s.grants[activityID]; exists {
		return false, nil
	}
	s.grants[activityID] = points
	return true, nil
}

func recordedMessage(t *testing.T, event events.ActivityRecorded) Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return Message{
		Topic:     "activity_events",
		EventType: events.TypeActivityRecorded,
		Payload:   payload,
	}
}

func TestRewardsHandlerAwardsFixedPoints(t *testing.T) {
	store := newStubGrantStore()
	handler := NewRewardsHandler(store)

	msg := recordedMessage(t, events.ActivityRecorded{
		ActivityID: "act-1",
		OwnerID:    "owner-1",
	})

	require.NoError(t, handler.Handle(context.Background(), msg))
	require.EqualValues(t, 10, store.grants["act-1"])
}

func TestRewardsHandlerIdempotentOnReplay(t *testing.T) {
	store := newStubGrantStore()
	handler := NewRewardsHandler(store)

	msg := recordedMessage(t, events.ActivityRecorded{
		ActivityID: "act-1",
		OwnerID:    "owner-1",
	})

	require.NoError(t, handler.Handle(context.Background(), msg))
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Len(t, store.grants, 1)
	require.EqualValues(t, 10, store.grants["act-1"])
}

func TestRewardsHandlerPointsIndependentOfImpact(t *testing.T) {
	store := newStubGrantStore()
	handler := NewRewardsHandler(store)

	for i, event := range []events.ActivityRecorded{
		{ActivityID: "act-1", OwnerID: "owner-1", ActivityType: "Car Travel", EmissionAmount: 2.0},
		{ActivityID: "act-2", OwnerID: "owner-1", ActivityType: "Walking", EmissionAmount: -0.3},
		{ActivityID: "act-3", OwnerID: "owner-1", ActivityType: "Unknown Thing", EmissionAmount: 0},
	} {
		require.NoError(t, handler.Handle(context.Background(), recordedMessage(t, event)), "event %d", i)
	}

	var total int64
	for _, points := range store.grants {
		total += points
	}
	require.EqualValues(t, 30, total)
}

func TestRewardsHandlerIgnoresOtherEventTypes(t *testing.T) {
	store := newStubGrantStore()
	handler := NewRewardsHandler(store)

	msg := Message{
		Topic:     "activity_events",
		EventType: "activity.archived",
		Payload:   json.RawMessage(`{}`),
	}
	require.NoError(t, handler.Handle(context.Background(), msg))
	require.Empty(t, store.grants)
}

func TestRewardsHandlerRejectsIncompleteEvent(t *testing.T) {
	handler := NewRewardsHandler(newStubGrantStore())

	msg := Message{
		Topic:     "activity_events",
		EventType: events.TypeActivityRecorded,
		Payload:   json.RawMessage(`{"activity_id":""}`),
	}
	require.Error(t, handler.Handle(context.Background(), msg))
}

func TestRewardsHandlerSurfacesStoreError(t *testing.T) {
	store := newStubGrantStore()
	store.err = errors.New("deadlock detected")
	handler := NewRewardsHandler(store)

	msg := recordedMessage(t, events.ActivityRecorded{
		ActivityID: "act-1",
		OwnerID:    "owner-1",
	})
	require.Error(t, handler.Handle(context.Background(), msg))
}
