package quality

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func newTestMonitor(db *database.DB) *Monitor {
	return NewMonitor(db, database.NewQualityRepository(db), database.NewRequestLogRepository(db))
}

func insertGame(t *testing.T, db *database.DB, gameID int, name string, year *int, minPlayers, maxPlayers int, loadedAt time.Time) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO games (game_id, load_timestamp, type, name, sort_name, year_published, min_players, max_players, description)
		VALUES (?, ?, 'boardgame', ?, lower(?), ?, ?, ?, '')
	`, gameID, loadedAt.Unix(), name, name, year, minPlayers, maxPlayers)
	if err != nil {
		t.Fatalf("Failed to insert game: %v", err)
	}
}

func resultCount(t *testing.T, db *database.DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM quality_results`).Scan(&count); err != nil {
		t.Fatalf("Failed to count quality results: %v", err)
	}
	return count
}

func TestMonitorEmptyWarehousePasses(t *testing.T) {
	db := newTestDB(t)
	monitor := newTestMonitor(db)

	passed, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !passed {
		t.Error("Expected all checks to pass on an empty warehouse")
	}
	if got := resultCount(t, db); got != 4 {
		t.Errorf("Expected 4 result rows, got %d", got)
	}
}

func TestMonitorHealthyWarehousePasses(t *testing.T) {
	db := newTestDB(t)
	monitor := newTestMonitor(db)

	year := 2020
	insertGame(t, db, 1, "Brass", &year, 2, 4, time.Now().UTC().Add(-time.Hour))

	passed, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !passed {
		t.Error("Expected all checks to pass for a healthy warehouse")
	}
}

func TestMonitorFlagsStaleLoads(t *testing.T) {
	db := newTestDB(t)
	monitor := newTestMonitor(db)

	year := 2020
	insertGame(t, db, 1, "Brass", &year, 2, 4, time.Now().UTC().Add(-48*time.Hour))

	passed, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if passed {
		t.Error("Expected the freshness check to fail for a 48h old load")
	}
}

func TestMonitorFlagsInvalidPlayerRange(t *testing.T) {
	db := newTestDB(t)
	monitor := newTestMonitor(db)

	year := 2020
	insertGame(t, db, 1, "Broken", &year, 5, 2, time.Now().UTC())

	passed, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if passed {
		t.Error("Expected the validity check to fail when min players exceeds max")
	}
}

func TestMonitorFlagsLowAPISuccessRate(t *testing.T) {
	db := newTestDB(t)
	monitor := newTestMonitor(db)
	requestLogRepo := database.NewRequestLogRepository(db)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		status := 200
		if i < 5 {
			status = 429
		}
		entry := database.RequestLogEntry{
			RequestID:        "req-" + string(rune('a'+i)),
			URL:              "https://example.com/thing",
			Method:           "GET",
			StatusCode:       status,
			ResponseTime:     100 * time.Millisecond,
			RequestTimestamp: time.Now().UTC().Add(-10 * time.Minute),
		}
		if err := requestLogRepo.Insert(ctx, entry); err != nil {
			t.Fatalf("Failed to insert request log entry: %v", err)
		}
	}

	passed, err := monitor.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if passed {
		t.Error("Expected the API success rate check to fail at 50% success")
	}
}
