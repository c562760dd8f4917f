package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/ecotrack/internal/domain"
)

const accountColumns = `account_id, name, email, password_hash, points, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.Points,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAccount inserts a new account with a zero point balance.
func (r *Repository) CreateAccount(ctx context.Context, account domain.Account) error {
	const stmt = `INSERT INTO accounts (account_id, name, email, password_hash, points, created_at)
        VALUES ($1,$2,$3,$4,0,$5)`

	_, err := r.pool.Exec(ctx, stmt,
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrEmailTaken
		}
		return err
	}
	return nil
}

// AccountByEmail looks up an account by its stored (lowercased) email.
func (r *Repository) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// AccountByID looks up an account by id.
func (r *Repository) AccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id=$1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// RewardsByOwner returns the point balance and badge set, or nil when the
// account does not exist.
func (r *Repository) RewardsByOwner(ctx context.Context, ownerID string) (*domain.Rewards, error) {
	var rewards domain.Rewards
	err := r.pool.QueryRow(ctx, `SELECT points FROM accounts WHERE account_id=$1`, ownerID).Scan(&rewards.Points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT badge_id, owner_id, name, icon, granted_at FROM badges WHERE owner_id=$1 ORDER BY granted_at`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var badge domain.Badge
		if err := rows.Scan(&badge.ID, &badge.OwnerID, &badge.Name, &badge.Icon, &badge.GrantedAt); err != nil {
			return nil, err
		}
		rewards.Badges = append(rewards.Badges, badge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rewards, nil
}

// AwardPoints applies the reward for one recorded activity. The grant is
// keyed by activity id, so a replayed event is a no-op, and the balance
// update is a single atomic add at the database, never a read-modify-write
// in application code. Returns false when the grant already existed.
func (r *Repository) AwardPoints(ctx context.Context, activityID, ownerID string, points int64) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO reward_grants (activity_id, owner_id, points)
         VALUES ($1,$2,$3) ON CONFLICT (activity_id) DO NOTHING`,
		activityID, ownerID, points,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET points = points + $1 WHERE account_id=$2`,
		points, ownerID,
	); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}
