package database

import (
	"context"
	"fmt"
	"time"
)

var _ ProcessRepository = (*ProcessRepo)(nil)

// ProcessRepo handles the append-only process lifecycle table. Rows are never
// updated: the latest attempt per record id determines the current status, and
// any lifecycle row at all (whatever its status) removes the record from the
// unprocessed pool.
type ProcessRepo struct {
	db *DB
}

func NewProcessRepository(db *DB) *ProcessRepo {
	return &ProcessRepo{db: db}
}

// SelectUnprocessed returns successfully fetched raw responses that have no
// process lifecycle record yet. Records fetched before staleCutoff sort ahead
// of newer ones; within each group, oldest fetch first.
func (r *ProcessRepo) SelectUnprocessed(ctx context.Context, staleCutoff time.Time, limit int) ([]RawResponse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.record_id, r.game_id, r.response_data, r.fetch_timestamp
		FROM raw_responses r
		JOIN fetched_responses f ON f.record_id = r.record_id
		LEFT JOIN processed_responses p ON p.record_id = r.record_id
		WHERE p.record_id IS NULL
		  AND f.fetch_status = 'success'
		ORDER BY (r.fetch_timestamp <= ?) DESC, r.fetch_timestamp ASC
		LIMIT ?
	`, staleCutoff.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed responses: %w", err)
	}
	defer rows.Close()

	var responses []RawResponse
	for rows.Next() {
		var resp RawResponse
		var fetchedAt int64
		if err := rows.Scan(&resp.RecordID, &resp.GameID, &resp.ResponseData, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unprocessed row: %w", err)
		}
		resp.FetchTimestamp = time.Unix(fetchedAt, 0).UTC()
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unprocessed rows: %w", err)
	}

	return responses, nil
}

func (r *ProcessRepo) UnprocessedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM raw_responses r
		JOIN fetched_responses f ON f.record_id = r.record_id
		LEFT JOIN processed_responses p ON p.record_id = r.record_id
		WHERE p.record_id IS NULL
		  AND f.fetch_status = 'success'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unprocessed responses: %w", err)
	}
	return count, nil
}

// MarkProcessed appends a process lifecycle row for recordID. The attempt
// number continues from the record's previous attempts.
func (r *ProcessRepo) MarkProcessed(ctx context.Context, recordID string, status string, errorMessage string) error {
	var errVal any
	if errorMessage != "" {
		errVal = errorMessage
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_responses (record_id, process_timestamp, process_status, process_attempt, error_message)
		VALUES (?, ?, ?,
			COALESCE((SELECT MAX(process_attempt) FROM processed_responses WHERE record_id = ?), 0) + 1,
			?)
	`, recordID, time.Now().UTC().Unix(), status, recordID, errVal)
	if err != nil {
		return fmt.Errorf("failed to mark record %s as %s: %w", recordID, status, err)
	}
	return nil
}

func (r *ProcessRepo) ProcessStatusCounts(ctx context.Context) (map[string]int, error) {
	// Latest attempt per record determines the status counted.
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.process_status, COUNT(*)
		FROM processed_responses p
		JOIN (
			SELECT record_id, MAX(process_attempt) AS latest
			FROM processed_responses
			GROUP BY record_id
		) l ON l.record_id = p.record_id AND l.latest = p.process_attempt
		GROUP BY p.process_status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count process statuses: %w", err)
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
