package quality

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/database"
)

const (
	yearCompletenessThreshold = 0.9
	apiSuccessThreshold       = 0.9
	freshnessWindow           = 24 * time.Hour
	apiStatsWindow            = time.Hour
)

// Monitor runs read-only quality checks over the warehouse and appends one
// pass/fail row per check.
type Monitor struct {
	db             *database.DB
	qualityRepo    database.QualityRepository
	requestLogRepo database.RequestLogRepository
}

func NewMonitor(db *database.DB, qualityRepo database.QualityRepository,
	requestLogRepo database.RequestLogRepository) *Monitor {
	return &Monitor{
		db:             db,
		qualityRepo:    qualityRepo,
		requestLogRepo: requestLogRepo,
	}
}

// Run executes all checks and returns true when every check passed
func (m *Monitor) Run(ctx context.Context) (bool, error) {
	checks := []func(context.Context) (database.QualityResult, error){
		m.checkCompleteness,
		m.checkFreshness,
		m.checkValidity,
		m.checkAPISuccessRate,
	}

	allPassed := true
	for _, check := range checks {
		result, err := check(ctx)
		if err != nil {
			return false, err
		}

		if err := m.qualityRepo.InsertResult(ctx, result); err != nil {
			return false, err
		}

		if result.Passed {
			slog.Info("Quality check passed", "check", result.CheckName, "table", result.TableName, "details", result.Details)
		} else {
			allPassed = false
			slog.Warn("Quality check failed", "check", result.CheckName, "table", result.TableName, "details", result.Details)
		}
	}

	return allPassed, nil
}

// checkCompleteness verifies required columns are populated in games
func (m *Monitor) checkCompleteness(ctx context.Context) (database.QualityResult, error) {
	var total, withName, withYear int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN name != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN year_published IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM games
	`).Scan(&total, &withName, &withYear)
	if err != nil {
		return database.QualityResult{}, fmt.Errorf("completeness check failed: %w", err)
	}

	passed := true
	details := "no rows loaded yet"
	if total > 0 {
		nameRatio := float64(withName) / float64(total)
		yearRatio := float64(withYear) / float64(total)
		passed = nameRatio == 1 && yearRatio >= yearCompletenessThreshold
		details = fmt.Sprintf("rows=%d name=%.3f year_published=%.3f", total, nameRatio, yearRatio)
	}

	return result("completeness", "games", passed, details), nil
}

// checkFreshness verifies the warehouse received a load recently
func (m *Monitor) checkFreshness(ctx context.Context) (database.QualityResult, error) {
	var total int
	var lastLoad *int64
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(load_timestamp) FROM games
	`).Scan(&total, &lastLoad)
	if err != nil {
		return database.QualityResult{}, fmt.Errorf("freshness check failed: %w", err)
	}

	passed := true
	details := "no rows loaded yet"
	if total > 0 && lastLoad != nil {
		age := time.Since(time.Unix(*lastLoad, 0))
		passed = age <= freshnessWindow
		details = fmt.Sprintf("last_load_age=%s", age.Truncate(time.Second))
	}

	return result("freshness", "games", passed, details), nil
}

// checkValidity verifies value ranges on the latest row per game
func (m *Monitor) checkValidity(ctx context.Context) (database.QualityResult, error) {
	var invalidPlayers, invalidYears int
	err := m.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN min_players > max_players THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN year_published < 1800 OR year_published > ? THEN 1 ELSE 0 END), 0)
		FROM games g
		JOIN (
			SELECT game_id, MAX(load_timestamp) AS latest FROM games GROUP BY game_id
		) l ON l.game_id = g.game_id AND l.latest = g.load_timestamp
	`, time.Now().UTC().Year()+5).Scan(&invalidPlayers, &invalidYears)
	if err != nil {
		return database.QualityResult{}, fmt.Errorf("validity check failed: %w", err)
	}

	passed := invalidPlayers == 0 && invalidYears == 0
	details := fmt.Sprintf("invalid_player_ranges=%d invalid_years=%d", invalidPlayers, invalidYears)

	return result("validity", "games", passed, details), nil
}

// checkAPISuccessRate verifies recent upstream calls mostly succeed
func (m *Monitor) checkAPISuccessRate(ctx context.Context) (database.QualityResult, error) {
	total, successful, avgMs, err := m.requestLogRepo.CallStats(ctx, time.Now().UTC().Add(-apiStatsWindow))
	if err != nil {
		return database.QualityResult{}, fmt.Errorf("api success rate check failed: %w", err)
	}

	passed := true
	details := "no recent api calls"
	if total > 0 {
		rate := float64(successful) / float64(total)
		passed = rate >= apiSuccessThreshold
		details = fmt.Sprintf("calls=%d success_rate=%.3f avg_response_ms=%.0f", total, rate, avgMs)
	}

	return result("api_success_rate", "request_log", passed, details), nil
}

func result(check, table string, passed bool, details string) database.QualityResult {
	return database.QualityResult{
		CheckName: check,
		TableName: table,
		Passed:    passed,
		Details:   details,
		CheckedAt: time.Now().UTC(),
	}
}
