package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

var _ CatalogRepository = (*CatalogRepo)(nil)

// CatalogRepo handles the append-only identifier catalog
type CatalogRepo struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// InsertIDs appends identifiers not yet present in the catalog and returns the
// number of newly added rows. Existing rows are never mutated.
func (r *CatalogRepo) InsertIDs(ctx context.Context, ids []ThingID) (int, error) {
	added := 0
	for _, id := range ids {
		res, err := r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO thing_ids (game_id, type, discovered_at)
			VALUES (?, ?, ?)
		`, id.GameID, id.Type, id.DiscoveredAt.Unix())
		if err != nil {
			return added, fmt.Errorf("failed to insert thing id %d: %w", id.GameID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, fmt.Errorf("failed to read insert result: %w", err)
		}
		added += int(n)
	}
	return added, nil
}

func (r *CatalogRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thing_ids`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count thing ids: %w", err)
	}
	return count, nil
}

// UnfetchedCandidates returns identifiers that have never had a fetch attempt
// recorded. Identifiers with an active lease are excluded.
func (r *CatalogRepo) UnfetchedCandidates(ctx context.Context, limit int) ([]Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.game_id, t.type
		FROM thing_ids t
		LEFT JOIN fetched_responses f ON f.game_id = t.game_id
		LEFT JOIN fetch_in_progress p ON p.game_id = t.game_id
		WHERE f.game_id IS NULL
		  AND p.game_id IS NULL
		ORDER BY t.game_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfetched candidates: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func (r *CatalogRepo) UnfetchedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM thing_ids t
		LEFT JOIN fetched_responses f ON f.game_id = t.game_id
		WHERE f.game_id IS NULL
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unfetched ids: %w", err)
	}
	return count, nil
}

// RetryCandidates returns identifiers whose fetch attempts all failed, with
// fewer than three attempts, whose most recent attempt is older than
// attemptCutoff. Leased identifiers are excluded.
func (r *CatalogRepo) RetryCandidates(ctx context.Context, attemptCutoff time.Time, limit int) ([]Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.game_id, t.type
		FROM thing_ids t
		JOIN (
			SELECT game_id, COUNT(*) AS attempts, MAX(fetch_timestamp) AS last_attempt
			FROM fetched_responses
			WHERE fetch_status IN ('no_response', 'parse_error')
			GROUP BY game_id
		) rc ON rc.game_id = t.game_id
		LEFT JOIN (
			SELECT DISTINCT game_id FROM fetched_responses WHERE fetch_status = 'success'
		) sf ON sf.game_id = t.game_id
		LEFT JOIN fetch_in_progress p ON p.game_id = t.game_id
		WHERE sf.game_id IS NULL
		  AND p.game_id IS NULL
		  AND rc.attempts < 3
		  AND rc.last_attempt <= ?
		ORDER BY rc.last_attempt
		LIMIT ?
	`, attemptCutoff.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query retry candidates: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// FilterKnown narrows an explicit identifier list to catalog members without
// an active lease. Fetch history is deliberately not consulted: callers pass
// ids they already decided to re-fetch.
func (r *CatalogRepo) FilterKnown(ctx context.Context, gameIDs []int) ([]Candidate, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(gameIDs)), ",")
	args := make([]any, len(gameIDs))
	for i, id := range gameIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT t.game_id, t.type
		FROM thing_ids t
		LEFT JOIN fetch_in_progress p ON p.game_id = t.game_id
		WHERE t.game_id IN (%s)
		  AND p.game_id IS NULL
		ORDER BY t.game_id
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter explicit ids: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}
