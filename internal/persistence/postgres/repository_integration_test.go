//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/ecotrack/internal/domain"
)

func TestRepositoryLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	ownerID := createTestAccount(t, ctx, repo, "maya@example.com")

	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := domain.Activity{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		ActivityType:   "Car Travel",
		Quantity:       10,
		EmissionAmount: 2.0,
		FactorUsed:     0.2,
		OccurredAt:     occurred,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, first))

	// Same occurred_at: insertion order breaks the tie, newest insert first.
	second := first
	second.ID = uuid.NewString()
	second.ActivityType = "Cycling"
	second.Quantity = 5
	second.EmissionAmount = -0.5
	second.FactorUsed = -0.1
	require.NoError(t, repo.Create(ctx, second))

	stored, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, first.ActivityType, stored.ActivityType)
	require.InDelta(t, first.EmissionAmount, stored.EmissionAmount, 1e-9)

	missing, err := repo.Get(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)

	entries, next, err := repo.ListByOwner(ctx, ownerID, nil, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, second.ID, entries[0].ID)
	require.NotNil(t, next)

	rest, _, err := repo.ListByOwner(ctx, ownerID, next, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, first.ID, rest[0].ID)

	// Each create leaves exactly one unpublished outbox event, replays none.
	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&outboxCount))
	require.Equal(t, 2, outboxCount)

	summary, err := repo.SummaryByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Entries)
	require.InDelta(t, 1.5, summary.NetEmission, 1e-9)
	require.InDelta(t, 2.0, summary.TotalEmitted, 1e-9)
	require.InDelta(t, 0.5, summary.TotalSaved, 1e-9)

	require.NoError(t, repo.Delete(ctx, first.ID))
	require.ErrorIs(t, repo.Delete(ctx, first.ID), domain.ErrActivityNotFound)
}

func TestRepositoryFactorOverrides(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	_, ok, err := repo.FactorFor(ctx, "Car Travel")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.UpsertFactor(ctx, "Car Travel", 0.25))
	factor, ok, err := repo.FactorFor(ctx, "Car Travel")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.25, factor, 1e-9)

	require.NoError(t, repo.UpsertFactor(ctx, "Car Travel", 0.3))
	factor, ok, err = repo.FactorFor(ctx, "Car Travel")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.3, factor, 1e-9)
}

func TestRepositoryAccountsAndRewards(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	ownerID := createTestAccount(t, ctx, repo, "kai@example.com")

	duplicate := domain.Account{
		ID:           uuid.NewString(),
		Name:         "Other",
		Email:        "kai@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	require.ErrorIs(t, repo.CreateAccount(ctx, duplicate), domain.ErrEmailTaken)

	byEmail, err := repo.AccountByEmail(ctx, "kai@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	require.Equal(t, ownerID, byEmail.ID)

	activityID := uuid.NewString()
	granted, err := repo.AwardPoints(ctx, activityID, ownerID, 10)
	require.NoError(t, err)
	require.True(t, granted)

	// Replayed grant is a no-op; the balance holds.
	granted, err = repo.AwardPoints(ctx, activityID, ownerID, 10)
	require.NoError(t, err)
	require.False(t, granted)

	granted, err = repo.AwardPoints(ctx, uuid.NewString(), ownerID, 10)
	require.NoError(t, err)
	require.True(t, granted)

	rewards, err := repo.RewardsByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.NotNil(t, rewards)
	require.Equal(t, int64(20), rewards.Points)
	require.Empty(t, rewards.Badges)

	missing, err := repo.RewardsByOwner(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func createTestAccount(t *testing.T, ctx context.Context, repo *Repository, email string) string {
	t.Helper()
	account := domain.Account{
		ID:           uuid.NewString(),
		Name:         "Integration Test",
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.CreateAccount(ctx, account))
	return account.ID
}

func startDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("ecotrack"),
		postgrescontainer.WithUsername("ecotrack"),
		postgrescontainer.WithPassword("ecotrack"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	loadSchema(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func loadSchema(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	contents, err := os.ReadFile(filepath.Join(filepath.Dir(file), "schema.sql"))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
