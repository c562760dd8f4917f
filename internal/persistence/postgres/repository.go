// Package postgres provides pgx-backed persistence for the emissions
// ledger, accounts, rewards, and the outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/events"
	"example.com/ecotrack/internal/observability"
)

// Repository provides Postgres-backed persistence for ledger entries and
// their outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, entry_seq, owner_id, activity_type, quantity, emission_amount, factor_used, occurred_at, created_at`

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var activity domain.Activity
	err := row.Scan(
		&activity.ID,
		&activity.Seq,
		&activity.OwnerID,
		&activity.ActivityType,
		&activity.Quantity,
		&activity.EmissionAmount,
		&activity.FactorUsed,
		&activity.OccurredAt,
		&activity.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// Create persists the entry and records its activity.recorded outbox
// event inside a single transaction, so the entry and its downstream
// reward trigger commit or roll back together.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertActivity = `INSERT INTO activities (activity_id, owner_id, activity_type, quantity, emission_amount, factor_used, occurred_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.OwnerID,
		activity.ActivityType,
		activity.Quantity,
		activity.EmissionAmount,
		activity.FactorUsed,
		activity.OccurredAt,
		activity.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, activity, events.TypeActivityRecorded, events.ActivityRecorded{
		ActivityID:     activity.ID,
		OwnerID:        activity.OwnerID,
		ActivityType:   activity.ActivityType,
		Quantity:       activity.Quantity,
		EmissionAmount: activity.EmissionAmount,
		FactorUsed:     activity.FactorUsed,
		OccurredAt:     activity.OccurredAt,
		RecordedAt:     activity.CreatedAt,
	}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.CreatedAt)
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(activity)
	dedupeKey := fmt.Sprintf("%s:%s", activity.ID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		activity.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// Get retrieves an entry by id regardless of owner; ownership checks
// happen in the service so a mismatch surfaces as forbidden, not absent.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id=$1`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, activityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// ListByOwner returns the owner's entries newest-first. Ties on
// occurred_at break by entry_seq, the insertion order.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []interface{}{ownerID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE owner_id=$1`

	if cursor != nil {
		query += ` AND (occurred_at, entry_seq) < ($3, $4)`
		args = append(args, cursor.OccurredAt, cursor.Seq)
	}

	query += ` ORDER BY occurred_at DESC, entry_seq DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit && limit > 0 {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{OccurredAt: last.OccurredAt, Seq: last.Seq}
	}

	return results, nextCursor, nil
}

// Delete removes an entry permanently. Reward points already granted
// for the entry stay untouched.
func (r *Repository) Delete(ctx context.Context, activityID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1`, activityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// SummaryByOwner aggregates the owner's ledger totals in one pass.
func (r *Repository) SummaryByOwner(ctx context.Context, ownerID string) (domain.EmissionSummary, error) {
	const query = `SELECT activity_type,
            COUNT(*),
            COALESCE(SUM(emission_amount), 0)
        FROM activities WHERE owner_id=$1
        GROUP BY activity_type
        ORDER BY activity_type`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return domain.EmissionSummary{}, err
	}
	defer rows.Close()

	var summary domain.EmissionSummary
	for rows.Next() {
		var te domain.TypeEmission
		if err := rows.Scan(&te.ActivityType, &te.Entries, &te.Emission); err != nil {
			return domain.EmissionSummary{}, err
		}
		summary.ByType = append(summary.ByType, te)
		summary.Entries += te.Entries
		summary.NetEmission += te.Emission
		if te.Emission > 0 {
			summary.TotalEmitted += te.Emission
		} else {
			summary.TotalSaved += -te.Emission
		}
	}
	if err := rows.Err(); err != nil {
		return domain.EmissionSummary{}, err
	}
	return summary, nil
}

// FactorFor implements domain.FactorSource from the emission_factors table.
func (r *Repository) FactorFor(ctx context.Context, activityType string) (float64, bool, error) {
	var factor float64
	err := r.pool.QueryRow(ctx, `SELECT factor FROM emission_factors WHERE activity_type=$1`, activityType).Scan(&factor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return factor, true, nil
}

// UpsertFactor stores an operator-configured factor. Changing a factor
// only affects future entries; existing rows keep their write-time value.
func (r *Repository) UpsertFactor(ctx context.Context, activityType string, factor float64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO emission_factors (activity_type, factor) VALUES ($1,$2)
         ON CONFLICT (activity_type) DO UPDATE SET factor = EXCLUDED.factor`,
		activityType, factor,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Activity) string
}

// Partitioning by owner keeps each account's events ordered, so reward
// increments for one account never race inside the consumer group.
var eventCatalog = map[string]EventMetadata{
	events.TypeActivityRecorded: {
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
		PartitionKeyFn: func(a domain.Activity) string {
			return a.OwnerID
		},
	},
}
