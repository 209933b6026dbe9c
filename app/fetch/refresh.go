package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/database"
)

// ResponseProcessor drains the unprocessed backlog; implemented by the
// process package.
type ResponseProcessor interface {
	Run(ctx context.Context) (bool, error)
}

// RefreshPipeline re-fetches games whose scheduled refresh is due: it leases
// and fetches a due batch, drains the processor (which stamps fresh tracking
// on successfully processed rows) and reschedules anything whose refresh
// fetch did not produce a processable response, so a failed refresh cannot
// drop a game out of the rotation.
type RefreshPipeline struct {
	scheduler    *Scheduler
	executor     *Executor
	processor    ResponseProcessor
	catalogRepo  database.CatalogRepository
	responseRepo database.ResponseRepository
	gameRepo     database.GameRepository
	policy       Policy
	batchSize    int
	chunkSize    int
	maxGames     int
}

func NewRefreshPipeline(scheduler *Scheduler, executor *Executor, processor ResponseProcessor,
	catalogRepo database.CatalogRepository, responseRepo database.ResponseRepository,
	gameRepo database.GameRepository, policy Policy, batchSize, chunkSize, maxGames int) *RefreshPipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &RefreshPipeline{
		scheduler:    scheduler,
		executor:     executor,
		processor:    processor,
		catalogRepo:  catalogRepo,
		responseRepo: responseRepo,
		gameRepo:     gameRepo,
		policy:       policy,
		batchSize:    batchSize,
		chunkSize:    chunkSize,
		maxGames:     maxGames,
	}
}

// Run refreshes due games batch by batch until none remain or the maxGames
// cap is reached. Returns the number of games attempted; a refetch that
// fails still counts, it is rescheduled rather than retried here.
func (p *RefreshPipeline) Run(ctx context.Context) (int, error) {
	total := 0

	for {
		if p.maxGames > 0 && total >= p.maxGames {
			slog.Info("Reached max games limit", "max_games", p.maxGames)
			break
		}

		limit := p.batchSize
		if p.maxGames > 0 && p.maxGames-total < limit {
			limit = p.maxGames - total
		}

		now := time.Now().UTC()
		due, err := p.responseRepo.RefreshDueCandidates(ctx, now, limit)
		if err != nil {
			return total, fmt.Errorf("failed to get refresh batch: %w", err)
		}
		if len(due) == 0 {
			break
		}

		ids := make([]int, len(due))
		for i, c := range due {
			ids[i] = c.GameID
		}

		batch := p.scheduler.SelectFetchBatch(ctx, limit, ids)
		if len(batch) == 0 {
			// Everything due is leased by another invocation.
			break
		}

		p.executor.FetchBatch(ctx, batch)

		if _, err := p.processor.Run(ctx); err != nil {
			slog.Error("Processing failed during refresh", "error", err)
		}

		p.rescheduleUnprocessed(ctx, batch, now)

		total += len(batch)
		slog.Info("Refresh batch completed", "batch", len(batch), "total", total)

		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	return total, nil
}

// rescheduleUnprocessed re-stamps tracking for batch members whose refresh
// fetch left no processable response. Successful fetches were already stamped
// by the processor.
func (p *RefreshPipeline) rescheduleUnprocessed(ctx context.Context, batch []database.Candidate, now time.Time) {
	for _, c := range batch {
		latest, err := p.responseRepo.LatestResponse(ctx, c.GameID)
		if err != nil {
			slog.Error("Failed to check refresh outcome", "game_id", c.GameID, "error", err)
			continue
		}
		if latest == nil || latest.NextRefreshDue != nil {
			continue
		}

		year, err := p.gameRepo.LatestYearPublished(ctx, c.GameID)
		if err != nil {
			slog.Error("Failed to get year published", "game_id", c.GameID, "error", err)
			year = nil
		}

		next := p.policy.NextRefreshDue(year, now)
		if err := p.responseRepo.UpdateRefreshTracking(ctx, c.GameID, now, next); err != nil {
			slog.Error("Failed to reschedule refresh", "game_id", c.GameID, "error", err)
		}
	}
}

// Preview logs what a refresh run would do without fetching anything
func (p *RefreshPipeline) Preview(ctx context.Context) error {
	now := time.Now().UTC()

	unfetched, err := p.catalogRepo.UnfetchedCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count unfetched games: %w", err)
	}

	due, err := p.responseRepo.RefreshDueCount(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to count due games: %w", err)
	}

	total := unfetched + due
	batches := 0
	apiCalls := 0
	if total > 0 {
		batches = (total + p.batchSize - 1) / p.batchSize
		apiCalls = (total + p.chunkSize - 1) / p.chunkSize
	}

	slog.Info("Refresh preview",
		"unfetched_games", unfetched,
		"due_for_refresh", due,
		"total", total,
		"batch_size", p.batchSize,
		"chunk_size", p.chunkSize,
		"estimated_batches", batches,
		"estimated_api_calls", apiCalls)

	return nil
}
