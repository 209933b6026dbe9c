package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/database"
)

const (
	// LeaseTimeout is how long an in-flight fetch may hold its lease before a
	// later scheduler run reclaims it.
	LeaseTimeout = 30 * time.Minute

	// RetryBackoff is the minimum age of the most recent failed attempt
	// before an identifier becomes retry-eligible again.
	RetryBackoff = time.Hour
)

// Scheduler selects the next batch of identifiers to fetch. Candidates come
// from three pools with a fixed priority: never-fetched identifiers first,
// then failed identifiers eligible for retry, then identifiers due for a
// scheduled refresh. Selected identifiers are leased before being returned,
// so overlapping invocations never fetch the same game twice.
type Scheduler struct {
	catalogRepo  database.CatalogRepository
	leaseRepo    database.LeaseRepository
	responseRepo database.ResponseRepository
}

func NewScheduler(catalogRepo database.CatalogRepository, leaseRepo database.LeaseRepository,
	responseRepo database.ResponseRepository) *Scheduler {
	return &Scheduler{
		catalogRepo:  catalogRepo,
		leaseRepo:    leaseRepo,
		responseRepo: responseRepo,
	}
}

// SelectFetchBatch returns at most maxSize leased candidates. When explicitIDs
// is non-empty the candidate pools are bypassed and the listed identifiers are
// selected directly (still subject to catalog membership and leasing).
// Any error is logged and yields an empty batch; a scheduler failure means
// "nothing to do this cycle", never a crashed invocation.
func (s *Scheduler) SelectFetchBatch(ctx context.Context, maxSize int, explicitIDs []int) []database.Candidate {
	now := time.Now().UTC()

	purged, err := s.leaseRepo.PurgeExpired(ctx, now.Add(-LeaseTimeout))
	if err != nil {
		slog.Error("Failed to purge expired leases", "error", err)
		return nil
	}
	if purged > 0 {
		slog.Info("Reclaimed expired fetch leases", "count", purged)
	}

	var candidates []database.Candidate
	if len(explicitIDs) > 0 {
		candidates, err = s.catalogRepo.FilterKnown(ctx, explicitIDs)
		if err != nil {
			slog.Error("Failed to filter explicit ids", "error", err)
			return nil
		}
	} else {
		candidates = s.gatherPools(ctx, maxSize, now)
	}

	if len(candidates) > maxSize {
		candidates = candidates[:maxSize]
	}

	// Claim a lease per candidate; drop anything a concurrent run got first.
	selected := make([]database.Candidate, 0, len(candidates))
	for _, c := range candidates {
		claimed, err := s.leaseRepo.Claim(ctx, c.GameID, now)
		if err != nil {
			slog.Error("Failed to claim lease", "game_id", c.GameID, "error", err)
			continue
		}
		if claimed {
			selected = append(selected, c)
		}
	}

	slog.Info("Selected fetch batch", "candidates", len(candidates), "selected", len(selected))
	return selected
}

// gatherPools concatenates the three candidate pools in priority order:
// unfetched > retry-eligible > refresh-due, deduplicated by game id.
func (s *Scheduler) gatherPools(ctx context.Context, maxSize int, now time.Time) []database.Candidate {
	unfetched, err := s.catalogRepo.UnfetchedCandidates(ctx, maxSize)
	if err != nil {
		slog.Error("Failed to query unfetched candidates", "error", err)
		return nil
	}

	retry, err := s.catalogRepo.RetryCandidates(ctx, now.Add(-RetryBackoff), maxSize)
	if err != nil {
		slog.Error("Failed to query retry candidates", "error", err)
		return nil
	}

	refresh, err := s.responseRepo.RefreshDueCandidates(ctx, now, maxSize)
	if err != nil {
		slog.Error("Failed to query refresh candidates", "error", err)
		return nil
	}

	slog.Debug("Candidate pools", "unfetched", len(unfetched), "retry", len(retry), "refresh", len(refresh))

	seen := make(map[int]bool)
	var candidates []database.Candidate
	for _, pool := range [][]database.Candidate{unfetched, retry, refresh} {
		for _, c := range pool {
			if seen[c.GameID] {
				continue
			}
			seen[c.GameID] = true
			candidates = append(candidates, c)
		}
	}
	return candidates
}
