package database

import (
	"context"
	"fmt"
	"time"
)

var _ LeaseRepository = (*LeaseRepo)(nil)

// LeaseRepo handles the ephemeral fetch-in-progress claim table. Leases are
// the only mutual exclusion between overlapping invocations, so every write
// here is a single atomic statement.
type LeaseRepo struct {
	db *DB
}

func NewLeaseRepository(db *DB) *LeaseRepo {
	return &LeaseRepo{db: db}
}

// PurgeExpired reclaims leases started before cutoff and returns how many
// rows were removed.
func (r *LeaseRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM fetch_in_progress
		WHERE fetch_start_at < ?
	`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired leases: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return n, nil
}

// Claim records an in-flight fetch for gameID. It returns false when another
// invocation holds the lease already; the conditional insert is what keeps
// two concurrent scheduler runs from selecting the same identifier.
func (r *LeaseRepo) Claim(ctx context.Context, gameID int, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fetch_in_progress (game_id, fetch_start_at)
		VALUES (?, ?)
	`, gameID, now.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to claim lease for game %d: %w", gameID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n > 0, nil
}

func (r *LeaseRepo) Release(ctx context.Context, gameID int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM fetch_in_progress
		WHERE game_id = ?
	`, gameID)
	if err != nil {
		return fmt.Errorf("failed to release lease for game %d: %w", gameID, err)
	}
	return nil
}

func (r *LeaseRepo) ActiveCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fetch_in_progress`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active leases: %w", err)
	}
	return count, nil
}
