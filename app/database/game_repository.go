package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ GameRepository = (*GameRepo)(nil)

// GameRepo handles the normalized warehouse tables
type GameRepo struct {
	db *DB
}

func NewGameRepository(db *DB) *GameRepo {
	return &GameRepo{db: db}
}

// LoadGames bulk-loads one processed batch inside a single transaction.
// Dimension tables are merged on their natural key, bridge tables are
// delete-then-insert per game, and game/ranking rows are appended as a time
// series. Re-loading the same (game_id, load_timestamp) replaces the earlier
// rows so a wholesale batch retry cannot double-append.
func (r *GameRepo) LoadGames(ctx context.Context, loads []*GameLoad) error {
	if len(loads) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, load := range loads {
		if err := r.loadOne(ctx, tx, load); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit game load: %w", err)
	}
	return nil
}

func (r *GameRepo) loadOne(ctx context.Context, tx *sql.Tx, load *GameLoad) error {
	g := load.Game
	loadTS := g.LoadTimestamp.Unix()

	_, err := tx.ExecContext(ctx, `
		DELETE FROM games WHERE game_id = ? AND load_timestamp = ?
	`, g.GameID, loadTS)
	if err != nil {
		return fmt.Errorf("failed to clear prior load for game %d: %w", g.GameID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (game_id, load_timestamp, type, name, sort_name, year_published,
			min_players, max_players, playing_time, min_age, description,
			average_rating, bayes_average, users_rated, average_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.GameID, loadTS, g.Type, g.Name, g.SortName, g.YearPublished,
		g.MinPlayers, g.MaxPlayers, g.PlayingTime, g.MinAge, g.Description,
		g.AverageRating, g.BayesAverage, g.UsersRated, g.AverageWeight)
	if err != nil {
		return fmt.Errorf("failed to insert game %d: %w", g.GameID, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM game_rankings WHERE game_id = ? AND load_timestamp = ?
	`, g.GameID, loadTS)
	if err != nil {
		return fmt.Errorf("failed to clear prior rankings for game %d: %w", g.GameID, err)
	}
	for _, rank := range load.Rankings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO game_rankings (game_id, load_timestamp, rank_type, rank_name, rank_value, bayes_average)
			VALUES (?, ?, ?, ?, ?, ?)
		`, g.GameID, loadTS, rank.RankType, rank.RankName, rank.RankValue, rank.BayesAverage)
		if err != nil {
			return fmt.Errorf("failed to insert ranking for game %d: %w", g.GameID, err)
		}
	}

	bridges := []struct {
		dimTable    string
		dimKey      string
		bridgeTable string
		bridgeKey   string
		values      []DimensionValue
	}{
		{"categories", "category_id", "game_categories", "category_id", load.Categories},
		{"mechanics", "mechanic_id", "game_mechanics", "mechanic_id", load.Mechanics},
		{"designers", "designer_id", "game_designers", "designer_id", load.Designers},
		{"publishers", "publisher_id", "game_publishers", "publisher_id", load.Publishers},
	}

	for _, b := range bridges {
		for _, v := range b.values {
			_, err = tx.ExecContext(ctx, fmt.Sprintf(`
				INSERT INTO %s (%s, name) VALUES (?, ?)
				ON CONFLICT(%s) DO UPDATE SET name = excluded.name
			`, b.dimTable, b.dimKey, b.dimKey), v.ID, v.Name)
			if err != nil {
				return fmt.Errorf("failed to merge %s row %d: %w", b.dimTable, v.ID, err)
			}
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE game_id = ?
		`, b.bridgeTable), g.GameID)
		if err != nil {
			return fmt.Errorf("failed to clear %s for game %d: %w", b.bridgeTable, g.GameID, err)
		}

		for _, v := range b.values {
			_, err = tx.ExecContext(ctx, fmt.Sprintf(`
				INSERT OR IGNORE INTO %s (game_id, %s) VALUES (?, ?)
			`, b.bridgeTable, b.bridgeKey), g.GameID, v.ID)
			if err != nil {
				return fmt.Errorf("failed to insert %s row for game %d: %w", b.bridgeTable, g.GameID, err)
			}
		}
	}

	return nil
}

// LatestYearPublished returns the publication year from the most recent
// normalized row for gameID, or nil when the game has not been loaded yet.
func (r *GameRepo) LatestYearPublished(ctx context.Context, gameID int) (*int, error) {
	var year sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT year_published
		FROM games
		WHERE game_id = ?
		ORDER BY load_timestamp DESC
		LIMIT 1
	`, gameID).Scan(&year)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get year published for game %d: %w", gameID, err)
	}

	if !year.Valid {
		return nil, nil
	}
	y := int(year.Int64)
	return &y, nil
}

func (r *GameRepo) GameCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT game_id) FROM games`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

func (r *GameRepo) LastLoadTimestamp(ctx context.Context) (*time.Time, error) {
	var last sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(load_timestamp) FROM games`).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to get last load timestamp: %w", err)
	}
	return timePtrFromUnix(last), nil
}
