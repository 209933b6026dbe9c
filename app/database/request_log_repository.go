package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ RequestLogRepository = (*RequestLogRepo)(nil)

// RequestLogRepo records upstream API call telemetry
type RequestLogRepo struct {
	db *DB
}

func NewRequestLogRepository(db *DB) *RequestLogRepo {
	return &RequestLogRepo{db: db}
}

func (r *RequestLogRepo) Insert(ctx context.Context, entry RequestLogEntry) error {
	var errVal any
	if entry.Error != "" {
		errVal = entry.Error
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO request_log (request_id, url, method, game_ids, status_code, response_time_ms, error, request_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.RequestID, entry.URL, entry.Method, entry.GameIDs, entry.StatusCode,
		entry.ResponseTime.Milliseconds(), errVal, entry.RequestTimestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert request log entry: %w", err)
	}
	return nil
}

// CallStats summarizes API calls made since the given time
func (r *RequestLogRepo) CallStats(ctx context.Context, since time.Time) (int, int, float64, error) {
	var total, successful int
	var avgMs sql.NullFloat64

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status_code = 200 THEN 1 ELSE 0 END), 0),
		       AVG(response_time_ms)
		FROM request_log
		WHERE request_timestamp >= ?
	`, since.Unix()).Scan(&total, &successful, &avgMs)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to query call stats: %w", err)
	}

	return total, successful, avgMs.Float64, nil
}
