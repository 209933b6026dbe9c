package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ ResponseRepository = (*ResponseRepo)(nil)

// ResponseRepo handles raw fetch payloads and their fetch lifecycle records
type ResponseRepo struct {
	db *DB
}

func NewResponseRepository(db *DB) *ResponseRepo {
	return &ResponseRepo{db: db}
}

// InsertResponse stores one fetch attempt: the immutable raw payload row and
// its fetch lifecycle record, written together. Returns the new record id.
func (r *ResponseRepo) InsertResponse(ctx context.Context, gameID int, payload string, status string, fetchedAt time.Time) (string, error) {
	recordID := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO raw_responses (record_id, game_id, response_data, fetch_timestamp)
		VALUES (?, ?, ?, ?)
	`, recordID, gameID, payload, fetchedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to insert raw response for game %d: %w", gameID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fetched_responses (record_id, game_id, fetch_timestamp, fetch_status)
		VALUES (?, ?, ?, ?)
	`, recordID, gameID, fetchedAt.Unix(), status)
	if err != nil {
		return "", fmt.Errorf("failed to insert fetch lifecycle for game %d: %w", gameID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit response insert: %w", err)
	}

	return recordID, nil
}

// RefreshDueCandidates returns identifiers whose scheduled refresh has
// passed, oldest due first. The schedule for a game is the largest
// next_refresh_due across all of its rows: a failed refetch appends a row
// without a due date, and the earlier stamp must keep the game in rotation,
// while a later re-stamp supersedes any stale overdue rows. Leased
// identifiers are excluded.
func (r *ResponseRepo) RefreshDueCandidates(ctx context.Context, now time.Time, limit int) ([]Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.game_id, COALESCE(t.type, 'boardgame')
		FROM (
			SELECT game_id, MAX(next_refresh_due) AS due
			FROM raw_responses
			WHERE next_refresh_due IS NOT NULL
			GROUP BY game_id
		) d
		LEFT JOIN thing_ids t ON t.game_id = d.game_id
		LEFT JOIN fetch_in_progress p ON p.game_id = d.game_id
		WHERE p.game_id IS NULL
		  AND d.due <= ?
		ORDER BY d.due
		LIMIT ?
	`, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh candidates: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func (r *ResponseRepo) RefreshDueCount(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT game_id, MAX(next_refresh_due) AS due
			FROM raw_responses
			WHERE next_refresh_due IS NOT NULL
			GROUP BY game_id
		) d
		WHERE d.due <= ?
	`, now.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count refresh candidates: %w", err)
	}
	return count, nil
}

// UpdateRefreshTracking stamps the most recent raw response for gameID with
// the refresh bookkeeping computed by the refresh policy.
func (r *ResponseRepo) UpdateRefreshTracking(ctx context.Context, gameID int, refreshedAt time.Time, nextDue time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE raw_responses
		SET last_refresh_at = ?,
		    refresh_count = refresh_count + 1,
		    next_refresh_due = ?
		WHERE record_id = (
			SELECT record_id FROM raw_responses
			WHERE game_id = ?
			ORDER BY fetch_timestamp DESC, record_id DESC
			LIMIT 1
		)
	`, refreshedAt.Unix(), nextDue.Unix(), gameID)
	if err != nil {
		return fmt.Errorf("failed to update refresh tracking for game %d: %w", gameID, err)
	}
	return nil
}

// LatestResponse returns the most recent raw response for gameID, or nil when
// the game has never been fetched.
func (r *ResponseRepo) LatestResponse(ctx context.Context, gameID int) (*RawResponse, error) {
	var resp RawResponse
	var fetchedAt int64
	var lastRefresh, nextDue sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT record_id, game_id, response_data, fetch_timestamp,
		       last_refresh_at, refresh_count, next_refresh_due
		FROM raw_responses
		WHERE game_id = ?
		ORDER BY fetch_timestamp DESC, record_id DESC
		LIMIT 1
	`, gameID).Scan(
		&resp.RecordID, &resp.GameID, &resp.ResponseData, &fetchedAt,
		&lastRefresh, &resp.RefreshCount, &nextDue,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest response for game %d: %w", gameID, err)
	}

	resp.FetchTimestamp = time.Unix(fetchedAt, 0).UTC()
	resp.LastRefreshAt = timePtrFromUnix(lastRefresh)
	resp.NextRefreshDue = timePtrFromUnix(nextDue)

	return &resp, nil
}

func (r *ResponseRepo) FetchStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT fetch_status, COUNT(*)
		FROM fetched_responses
		GROUP BY fetch_status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count fetch statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}
