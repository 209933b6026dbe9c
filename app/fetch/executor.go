package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/bgg"
	"github.com/edobrenko/bgg-warehouse/app/database"
)

// ThingFetcher is the upstream batch-lookup collaborator
type ThingFetcher interface {
	GetThings(ctx context.Context, gameIDs []int) (*bgg.Things, error)
}

// Executor fetches leased candidates in chunks, classifies every outcome and
// persists one raw response plus one fetch lifecycle record per identifier.
// A chunk that fails entirely is classified and skipped; later chunks still
// run. Retries happen on a later scheduler cycle, not here.
type Executor struct {
	client       ThingFetcher
	responseRepo database.ResponseRepository
	leaseRepo    database.LeaseRepository
	chunkSize    int
}

func NewExecutor(client ThingFetcher, responseRepo database.ResponseRepository,
	leaseRepo database.LeaseRepository, chunkSize int) *Executor {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Executor{
		client:       client,
		responseRepo: responseRepo,
		leaseRepo:    leaseRepo,
		chunkSize:    chunkSize,
	}
}

// FetchBatch fetches all candidates and returns true iff at least one chunk
// was attempted.
func (e *Executor) FetchBatch(ctx context.Context, candidates []database.Candidate) bool {
	if len(candidates) == 0 {
		return false
	}

	succeeded := 0
	missing := 0
	failed := 0

	for start := 0; start < len(candidates); start += e.chunkSize {
		end := min(start+e.chunkSize, len(candidates))
		chunk := candidates[start:end]

		chunkIDs := make([]int, len(chunk))
		for i, c := range chunk {
			chunkIDs[i] = c.GameID
		}

		things, err := e.client.GetThings(ctx, chunkIDs)
		if err != nil {
			status := database.FetchStatusNoResponse
			if errors.Is(err, bgg.ErrUnparsable) {
				status = database.FetchStatusParseError
			}
			slog.Error("Chunk fetch failed", "game_ids", chunkIDs, "status", status, "error", err)

			for _, id := range chunkIDs {
				e.storeOutcome(ctx, id, "", status)
			}
			failed += len(chunkIDs)

			if ctx.Err() != nil {
				return true
			}
			continue
		}

		// Match returned items back to the requested ids; anything absent
		// from the response counts as unanswered.
		byID := make(map[int]bgg.Thing, len(things.Items))
		for _, item := range things.Items {
			byID[item.ID] = item
		}

		for _, id := range chunkIDs {
			item, ok := byID[id]
			if !ok {
				e.storeOutcome(ctx, id, "", database.FetchStatusNoResponse)
				missing++
				continue
			}

			payload, err := bgg.Payload(item)
			if err != nil {
				slog.Error("Failed to build payload", "game_id", id, "error", err)
				e.storeOutcome(ctx, id, "", database.FetchStatusParseError)
				failed++
				continue
			}

			e.storeOutcome(ctx, id, payload, database.FetchStatusSuccess)
			succeeded++
		}
	}

	slog.Info("Fetch batch completed",
		"total", len(candidates),
		"success", succeeded,
		"no_response", missing,
		"failed", failed)

	return true
}

// storeOutcome writes the raw response and lifecycle record, then releases
// the lease. The lease is released even when the write fails so the
// identifier does not stay blocked until lease expiry.
func (e *Executor) storeOutcome(ctx context.Context, gameID int, payload string, status string) {
	if _, err := e.responseRepo.InsertResponse(ctx, gameID, payload, status, time.Now().UTC()); err != nil {
		slog.Error("Failed to store fetch outcome", "game_id", gameID, "status", status, "error", err)
	}

	if err := e.leaseRepo.Release(ctx, gameID); err != nil {
		slog.Error("Failed to release lease", "game_id", gameID, "error", err)
	}
}
