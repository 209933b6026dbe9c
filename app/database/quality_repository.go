package database

import (
	"context"
	"fmt"
)

var _ QualityRepository = (*QualityRepo)(nil)

// QualityRepo persists quality monitor results
type QualityRepo struct {
	db *DB
}

func NewQualityRepository(db *DB) *QualityRepo {
	return &QualityRepo{db: db}
}

func (r *QualityRepo) InsertResult(ctx context.Context, result QualityResult) error {
	passed := 0
	if result.Passed {
		passed = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quality_results (check_name, table_name, passed, details, checked_at)
		VALUES (?, ?, ?, ?, ?)
	`, result.CheckName, result.TableName, passed, result.Details, result.CheckedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert quality result: %w", err)
	}
	return nil
}
