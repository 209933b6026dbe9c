package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/database"
)

func newTestServer(t *testing.T) (*httptest.Server, *database.DB) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	handler := NewHandler(
		database.NewCatalogRepository(db),
		database.NewLeaseRepository(db),
		database.NewResponseRepository(db),
		database.NewProcessRepository(db),
		database.NewGameRepository(db),
		database.NewRequestLogRepository(db),
		"test")

	server := httptest.NewServer(NewServer(handler))
	t.Cleanup(server.Close)
	return server, db
}

func getJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	body := getJSON(t, server.URL+"/health")
	if body["version"] != "test" {
		t.Errorf("Expected version test, got %v", body["version"])
	}
	if body["catalog_size"] != float64(0) {
		t.Errorf("Expected empty catalog, got %v", body["catalog_size"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, db := newTestServer(t)
	ctx := context.Background()

	catalogRepo := database.NewCatalogRepository(db)
	if _, err := catalogRepo.InsertIDs(ctx, []database.ThingID{
		{GameID: 1, Type: "boardgame", DiscoveredAt: time.Now().UTC()},
		{GameID: 2, Type: "boardgame", DiscoveredAt: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("Failed to seed catalog: %v", err)
	}

	responseRepo := database.NewResponseRepository(db)
	if _, err := responseRepo.InsertResponse(ctx, 1, "<items/>", database.FetchStatusSuccess, time.Now().UTC()); err != nil {
		t.Fatalf("Failed to insert response: %v", err)
	}

	body := getJSON(t, server.URL+"/stats")
	if body["catalog_size"] != float64(2) {
		t.Errorf("Expected catalog size 2, got %v", body["catalog_size"])
	}
	if body["unfetched_count"] != float64(1) {
		t.Errorf("Expected 1 unfetched game, got %v", body["unfetched_count"])
	}

	statuses, ok := body["fetch_status_counts"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected fetch status counts, got %v", body["fetch_status_counts"])
	}
	if statuses["success"] != float64(1) {
		t.Errorf("Expected 1 successful fetch, got %v", statuses["success"])
	}
}
