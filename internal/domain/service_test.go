package domain

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memLedger struct {
	activities []Activity
	nextSeq    int64
	createErr  error
}

func (m *memLedger) Create(_ context.Context, activity Activity) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextSeq++
	activity.Seq = m.nextSeq
	m.activities = append(m.activities, activity)
	return nil
}

func (m *memLedger) Get(_ context.Context, activityID string) (*Activity, error) {
	for _, activity := range m.activities {
		if activity.ID == activityID {
			found := activity
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memLedger) ListByOwner(_ context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	owned := make([]Activity, 0)
	for _, activity := range m.activities {
		if activity.OwnerID != ownerID {
			continue
		}
		if cursor != nil {
			if activity.OccurredAt.After(cursor.OccurredAt) {
				continue
			}
			if activity.OccurredAt.Equal(cursor.OccurredAt) && activity.Seq >= cursor.Seq {
				continue
			}
		}
		owned = append(owned, activity)
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].OccurredAt.Equal(owned[j].OccurredAt) {
			return owned[i].OccurredAt.After(owned[j].OccurredAt)
		}
		return owned[i].Seq > owned[j].Seq
	})
	if limit > 0 && len(owned) > limit {
		owned = owned[:limit]
	}
	var next *Cursor
	if limit > 0 && len(owned) == limit {
		last := owned[len(owned)-1]
		next = &Cursor{OccurredAt: last.OccurredAt, Seq: last.Seq}
	}
	return owned, next, nil
}

func (m *memLedger) Delete(_ context.Context, activityID string) error {
	for i, activity := range m.activities {
		if activity.ID == activityID {
			m.activities = append(m.activities[:i], m.activities[i+1:]...)
			return nil
		}
	}
	return ErrActivityNotFound
}

func (m *memLedger) SummaryByOwner(_ context.Context, ownerID string) (EmissionSummary, error) {
	var summary EmissionSummary
	perType := make(map[string]*TypeEmission)
	for _, activity := range m.activities {
		if activity.OwnerID != ownerID {
			continue
		}
		summary.Entries++
		summary.NetEmission += activity.EmissionAmount
		if activity.EmissionAmount > 0 {
			summary.TotalEmitted += activity.EmissionAmount
		} else {
			summary.TotalSaved += -activity.EmissionAmount
		}
		te, ok := perType[activity.ActivityType]
		if !ok {
			te = &TypeEmission{ActivityType: activity.ActivityType}
			perType[activity.ActivityType] = te
		}
		te.Entries++
		te.Emission += activity.EmissionAmount
	}
	for _, te := range perType {
		summary.ByType = append(summary.ByType, *te)
	}
	return summary, nil
}

func newTestService(repo *memLedger) *Service {
	svc := NewService(repo, NewFactorResolver(nil, DefaultFactors()))
	svc.now = func() time.Time {
		return time.Date(2025, time.June, 5, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestRecordActivityComputesEmission(t *testing.T) {
	repo := &memLedger{}
	svc := newTestService(repo)

	activity, err := svc.RecordActivity(context.Background(), RecordActivityInput{
		OwnerID:      "owner-1",
		ActivityType: "Car Travel",
		Quantity:     10,
	})
	require.NoError(t, err)
	require.Equal(t, 2.0, activity.EmissionAmount)
	require.Equal(t, 0.2, activity.FactorUsed)
	require.Equal(t, activity.Quantity*activity.FactorUsed, activity.EmissionAmount)
	require.NotEmpty(t, activity.ID)
	require.Equal(t, svc.now(), activity.OccurredAt)
	require.Len(t, repo.activities, 1)
}

func TestRecordActivityNegativeEmissionIsASaving(t *testing.T) {
	svc := newTestService(&memLedger{})

	activity, err := svc.RecordActivity(context.Background(), RecordActivityInput{
		OwnerID:      "owner-1",
		ActivityType: "Walking",
		Quantity:     3,
	})
	require.NoError(t, err)
	require.InDelta(t, -0.3, activity.EmissionAmount, 1e-12)
}

func TestRecordActivityUnknownTypeIsZeroImpact(t *testing.T) {
	repo := &memLedger{}
	svc := newTestService(repo)

	activity, err := svc.RecordActivity(context.Background(), RecordActivityInput{
		OwnerID:      "owner-1",
		ActivityType: "Unknown Thing",
		Quantity:     5,
	})
	require.NoError(t, err)
	require.Zero(t, activity.EmissionAmount)
	require.Len(t, repo.activities, 1, "zero-impact entries are still persisted")
}

func TestRecordActivityRejectsBadQuantity(t *testing.T) {
	svc := newTestService(&memLedger{})

	for _, quantity := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := svc.RecordActivity(context.Background(), RecordActivityInput{
			OwnerID:      "owner-1",
			ActivityType: "Car Travel",
			Quantity:     quantity,
		})
		require.ErrorIs(t, err, ErrInvalidQuantity, "quantity %v", quantity)
	}
}

func TestRecordActivityRejectsMissingType(t *testing.T) {
	svc := newTestService(&memLedger{})

	_, err := svc.RecordActivity(context.Background(), RecordActivityInput{
		OwnerID:  "owner-1",
		Quantity: 5,
	})
	require.ErrorIs(t, err, ErrMissingActivityType)
}

func TestRecordActivityKeepsExplicitOccurredAt(t *testing.T) {
	svc := newTestService(&memLedger{})
	occurredAt := time.Date(2025, time.January, 2, 8, 30, 0, 0, time.UTC)

	activity, err := svc.RecordActivity(context.Background(), RecordActivityInput{
		OwnerID:      "owner-1",
		ActivityType: "Cycling",
		Quantity:     4,
		OccurredAt:   occurredAt,
	})
	require.NoError(t, err)
	require.Equal(t, occurredAt, activity.OccurredAt)
}

func TestRecordActivitySurfacesRepositoryFailure(t *testing.T) {
	repo := &memLedger{createErr: errors.New("connection reset")}
	svc := newTestService(repo)

	_, err := svc.RecordActivity(context.Background(), RecordActivityInput{
		OwnerID:      "owner-1",
		ActivityType: "Car Travel",
		Quantity:     1,
	})
	require.Error(t, err)
}

func TestListActivitiesNewestFirstStable(t *testing.T) {
	repo := &memLedger{}
	svc := newTestService(repo)
	ctx := context.Background()

	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i, spec := range []struct {
		activityType string
		occurredAt   time.Time
	}{
		{"Car Travel", base},
		{"Walking", base.Add(time.Hour)},
		{"Cycling", base.Add(time.Hour)}, // same instant, inserted later
	} {
		_, err := svc.RecordActivity(ctx, RecordActivityInput{
			OwnerID:      "owner-1",
			ActivityType: spec.activityType,
			Quantity:     float64(i + 1),
			OccurredAt:   spec.occurredAt,
		})
		require.NoError(t, err)
	}

	first, _, err := svc.ListActivities(ctx, "owner-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.Equal(t, "Cycling", first[0].ActivityType)
	require.Equal(t, "Walking", first[1].ActivityType)
	require.Equal(t, "Car Travel", first[2].ActivityType)

	// A repeat read with no intervening writes returns the same sequence.
	second, _, err := svc.ListActivities(ctx, "owner-1", nil, 10)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDeleteActivityOwnership(t *testing.T) {
	repo := &memLedger{}
	svc := newTestService(repo)
	ctx := context.Background()

	activity, err := svc.RecordActivity(ctx, RecordActivityInput{
		OwnerID:      "owner-a",
		ActivityType: "Flight",
		Quantity:     100,
	})
	require.NoError(t, err)

	err = svc.DeleteActivity(ctx, "owner-b", activity.ID)
	require.ErrorIs(t, err, ErrNotOwner)
	require.Len(t, repo.activities, 1, "a forbidden delete must not mutate the ledger")

	require.NoError(t, svc.DeleteActivity(ctx, "owner-a", activity.ID))
	require.Empty(t, repo.activities)

	// Deleting again reports not found, not forbidden.
	err = svc.DeleteActivity(ctx, "owner-a", activity.ID)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestDeleteActivityUnknownID(t *testing.T) {
	svc := newTestService(&memLedger{})

	err := svc.DeleteActivity(context.Background(), "owner-a", "no-such-id")
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestSummaryAggregatesTotals(t *testing.T) {
	repo := &memLedger{}
	svc := newTestService(repo)
	ctx := context.Background()

	for _, spec := range []struct {
		activityType string
		quantity     float64
	}{
		{"Car Travel", 10}, // +2.0
		{"Walking", 5},     // -0.5
		{"Car Travel", 5},  // +1.0
	} {
		_, err := svc.RecordActivity(ctx, RecordActivityInput{
			OwnerID:      "owner-1",
			ActivityType: spec.activityType,
			Quantity:     spec.quantity,
		})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, 3, summary.Entries)
	require.InDelta(t, 2.5, summary.NetEmission, 1e-12)
	require.InDelta(t, 3.0, summary.TotalEmitted, 1e-12)
	require.InDelta(t, 0.5, summary.TotalSaved, 1e-12)
}
