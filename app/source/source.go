package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/cfg"
	"github.com/edobrenko/bgg-warehouse/app/database"
)

// Discoverer downloads the published thing-ids list and appends identifiers
// not yet present in the catalog.
type Discoverer struct {
	httpClient  *http.Client
	catalogRepo database.CatalogRepository
	listURL     string
	userAgent   string
}

func NewDiscoverer(c *cfg.Cfg, catalogRepo database.CatalogRepository) *Discoverer {
	return &Discoverer{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		catalogRepo: catalogRepo,
		listURL:     c.ThingIDsURL,
		userAgent:   c.UserAgent,
	}
}

// Run downloads, parses and stores the identifier list. Returns the number of
// newly discovered identifiers.
func (d *Discoverer) Run(ctx context.Context) (int, error) {
	slog.Info("Downloading thing-ids list", "url", d.listURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.listURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download thing-ids list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d downloading thing-ids list", resp.StatusCode)
	}

	ids, err := ParseIDList(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to parse thing-ids list: %w", err)
	}
	slog.Info("Parsed thing-ids list", "count", len(ids))

	added, err := d.catalogRepo.InsertIDs(ctx, ids)
	if err != nil {
		return added, fmt.Errorf("failed to store thing ids: %w", err)
	}

	slog.Info("Catalog updated", "parsed", len(ids), "added", added)
	return added, nil
}

// ParseIDList parses the "<id> <type>" line format of the published list.
// Lines with an unknown type or a non-numeric id are skipped.
func ParseIDList(r io.Reader) ([]database.ThingID, error) {
	now := time.Now().UTC()
	var ids []database.ThingID

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		gameID, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		typ := fields[1]
		if typ != "boardgame" && typ != "boardgameexpansion" {
			continue
		}

		ids = append(ids, database.ThingID{
			GameID:       gameID,
			Type:         typ,
			DiscoveredAt: now,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read id list: %w", err)
	}

	return ids, nil
}
