package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func testLoad(gameID int, name string, year int, loadedAt time.Time) *GameLoad {
	return &GameLoad{
		RecordID: "record-" + name,
		Game: Game{
			GameID:        gameID,
			LoadTimestamp: loadedAt,
			Type:          "boardgame",
			Name:          name,
			SortName:      name,
			YearPublished: &year,
		},
		Categories: []DimensionValue{{ID: 1001, Name: "Economic"}},
		Mechanics:  []DimensionValue{{ID: 2001, Name: "Auction"}},
		Rankings: []GameRanking{
			{RankType: "subtype", RankName: "boardgame", RankValue: intPtr(50)},
		},
	}
}

func intPtr(v int) *int {
	return &v
}

func TestLoadGames(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	loadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.LoadGames(ctx, []*GameLoad{testLoad(10, "Brass", 2018, loadedAt)}); err != nil {
		t.Fatalf("LoadGames failed: %v", err)
	}

	count, err := repo.GameCount(ctx)
	if err != nil {
		t.Fatalf("GameCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 game, got %d", count)
	}

	year, err := repo.LatestYearPublished(ctx, 10)
	if err != nil {
		t.Fatalf("LatestYearPublished failed: %v", err)
	}
	if year == nil || *year != 2018 {
		t.Errorf("Expected year 2018, got %v", year)
	}

	last, err := repo.LastLoadTimestamp(ctx)
	if err != nil {
		t.Fatalf("LastLoadTimestamp failed: %v", err)
	}
	if last == nil || !last.Equal(loadedAt) {
		t.Errorf("Expected last load %v, got %v", loadedAt, last)
	}
}

func TestLoadGamesReplacesSameLoad(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()
	loadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.LoadGames(ctx, []*GameLoad{testLoad(10, "Brass", 2018, loadedAt)}); err != nil {
		t.Fatalf("First load failed: %v", err)
	}

	// A wholesale batch retry replays the same (game, load timestamp); the
	// earlier rows are replaced, not duplicated.
	updated := testLoad(10, "Brass: Birmingham", 2018, loadedAt)
	if err := repo.LoadGames(ctx, []*GameLoad{updated}); err != nil {
		t.Fatalf("Replay load failed: %v", err)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM games WHERE game_id = 10`).Scan(&rows); err != nil {
		t.Fatalf("Failed to count game rows: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 game row after replay, got %d", rows)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM games WHERE game_id = 10`).Scan(&name); err != nil {
		t.Fatalf("Failed to read game name: %v", err)
	}
	if name != "Brass: Birmingham" {
		t.Errorf("Expected replayed name, got %q", name)
	}

	var rankings int
	if err := db.QueryRow(`SELECT COUNT(*) FROM game_rankings WHERE game_id = 10`).Scan(&rankings); err != nil {
		t.Fatalf("Failed to count rankings: %v", err)
	}
	if rankings != 1 {
		t.Errorf("Expected 1 ranking row after replay, got %d", rankings)
	}
}

func TestLoadGamesTimeSeries(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(7 * 24 * time.Hour)

	if err := repo.LoadGames(ctx, []*GameLoad{testLoad(10, "Brass", 2018, first)}); err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	if err := repo.LoadGames(ctx, []*GameLoad{testLoad(10, "Brass", 2018, second)}); err != nil {
		t.Fatalf("Second load failed: %v", err)
	}

	// Distinct load timestamps accumulate as history.
	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM games WHERE game_id = 10`).Scan(&rows); err != nil {
		t.Fatalf("Failed to count game rows: %v", err)
	}
	if rows != 2 {
		t.Errorf("Expected 2 time-series rows, got %d", rows)
	}
}

func TestLoadGamesMergesDimensions(t *testing.T) {
	db := newTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	loadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := testLoad(10, "Brass", 2018, loadedAt)
	b := testLoad(11, "Barrage", 2019, loadedAt)
	// Same category id with a corrected name: the merge keeps one row with
	// the latest name.
	b.Categories = []DimensionValue{{ID: 1001, Name: "Economic Games"}}

	if err := repo.LoadGames(ctx, []*GameLoad{a, b}); err != nil {
		t.Fatalf("LoadGames failed: %v", err)
	}

	var categories int
	if err := db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&categories); err != nil {
		t.Fatalf("Failed to count categories: %v", err)
	}
	if categories != 1 {
		t.Errorf("Expected 1 merged category, got %d", categories)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM categories WHERE category_id = 1001`).Scan(&name); err != nil {
		t.Fatalf("Failed to read category name: %v", err)
	}
	if name != "Economic Games" {
		t.Errorf("Expected merged category name, got %q", name)
	}

	var bridges int
	if err := db.QueryRow(`SELECT COUNT(*) FROM game_categories`).Scan(&bridges); err != nil {
		t.Fatalf("Failed to count bridge rows: %v", err)
	}
	if bridges != 2 {
		t.Errorf("Expected 2 bridge rows, got %d", bridges)
	}
}
