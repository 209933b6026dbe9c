package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/bgg"
	"github.com/edobrenko/bgg-warehouse/app/database"
	"github.com/edobrenko/bgg-warehouse/app/fetch"
)

// staleAfter puts responses older than this ahead of newer ones when
// selecting the next processing batch.
const staleAfter = 30 * time.Minute

const maxErrorMessageLen = 500

// Processor turns successfully fetched raw responses into normalized rows.
// Raw responses are never mutated; each outcome is an appended process
// lifecycle record, and only records with no lifecycle record at all are ever
// selected.
type Processor struct {
	processRepo  database.ProcessRepository
	gameRepo     database.GameRepository
	responseRepo database.ResponseRepository
	policy       fetch.Policy
	batchSize    int
}

func NewProcessor(processRepo database.ProcessRepository, gameRepo database.GameRepository,
	responseRepo database.ResponseRepository, policy fetch.Policy, batchSize int) *Processor {
	return &Processor{
		processRepo:  processRepo,
		gameRepo:     gameRepo,
		responseRepo: responseRepo,
		policy:       policy,
		batchSize:    batchSize,
	}
}

// ProcessBatch handles one batch and reports whether any records were
// selected. A bulk-load failure returns an error without writing success
// lifecycle records, leaving the batch eligible for wholesale retry.
func (p *Processor) ProcessBatch(ctx context.Context) (bool, error) {
	now := time.Now().UTC()

	responses, err := p.processRepo.SelectUnprocessed(ctx, now.Add(-staleAfter), p.batchSize)
	if err != nil {
		return false, fmt.Errorf("failed to select unprocessed responses: %w", err)
	}
	if len(responses) == 0 {
		return false, nil
	}

	var loads []*database.GameLoad
	skipped := map[string]int{}

	for _, resp := range responses {
		status, load := p.deriveLoad(ctx, resp)
		if status != database.ProcessStatusSuccess {
			skipped[status]++
			continue
		}
		loads = append(loads, load)
	}

	slog.Info("Processing batch",
		"selected", len(responses),
		"transformed", len(loads),
		"no_response", skipped[database.ProcessStatusNoResponse],
		"parse_error", skipped[database.ProcessStatusParseError],
		"failed", skipped[database.ProcessStatusFailed],
		"error", skipped[database.ProcessStatusError])

	if len(loads) == 0 {
		return true, nil
	}

	if err := ValidateLoads(loads); err != nil {
		return false, fmt.Errorf("batch validation failed: %w", err)
	}

	if err := p.gameRepo.LoadGames(ctx, loads); err != nil {
		return false, fmt.Errorf("bulk load failed: %w", err)
	}

	for _, load := range loads {
		if err := p.processRepo.MarkProcessed(ctx, load.RecordID, database.ProcessStatusSuccess, ""); err != nil {
			slog.Error("Failed to mark record processed", "record_id", load.RecordID, "error", err)
			continue
		}

		// A loaded row is as fresh as a refresh; stamp the next due date.
		next := p.policy.NextRefreshDue(load.Game.YearPublished, now)
		if err := p.responseRepo.UpdateRefreshTracking(ctx, load.Game.GameID, now, next); err != nil {
			slog.Error("Failed to update refresh tracking", "game_id", load.Game.GameID, "error", err)
		}
	}

	return true, nil
}

// deriveLoad classifies one raw response and, on success, returns its load
func (p *Processor) deriveLoad(ctx context.Context, resp database.RawResponse) (string, *database.GameLoad) {
	if strings.TrimSpace(resp.ResponseData) == "" {
		p.mark(ctx, resp, database.ProcessStatusNoResponse, "empty response data")
		return database.ProcessStatusNoResponse, nil
	}

	things, err := bgg.ParseThings([]byte(resp.ResponseData))
	if err != nil {
		p.mark(ctx, resp, database.ProcessStatusParseError, err.Error())
		return database.ProcessStatusParseError, nil
	}

	load, err := Transform(resp.GameID, things, resp.FetchTimestamp)
	if err != nil {
		p.mark(ctx, resp, database.ProcessStatusError, err.Error())
		return database.ProcessStatusError, nil
	}
	if load == nil {
		p.mark(ctx, resp, database.ProcessStatusFailed, "transform produced no result")
		return database.ProcessStatusFailed, nil
	}

	load.RecordID = resp.RecordID
	return database.ProcessStatusSuccess, load
}

func (p *Processor) mark(ctx context.Context, resp database.RawResponse, status string, message string) {
	if len(message) > maxErrorMessageLen {
		message = message[:maxErrorMessageLen]
	}
	slog.Info("Marking record", "record_id", resp.RecordID, "game_id", resp.GameID, "status", status)

	if err := p.processRepo.MarkProcessed(ctx, resp.RecordID, status, message); err != nil {
		slog.Error("Failed to write process lifecycle record", "record_id", resp.RecordID, "error", err)
	}
}

// Run drains the backlog batch by batch and reports whether any batch did
// work. A failing batch stops the drain; the records it selected remain
// unprocessed and are retried on the next invocation.
func (p *Processor) Run(ctx context.Context) (bool, error) {
	count, err := p.processRepo.UnprocessedCount(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count unprocessed responses: %w", err)
	}
	slog.Info("Starting processor", "unprocessed", count)

	didWork := false
	for {
		ok, err := p.ProcessBatch(ctx)
		if err != nil {
			slog.Error("Batch processing failed, stopping", "error", err)
			return didWork, err
		}
		if !ok {
			break
		}
		didWork = true

		if ctx.Err() != nil {
			return didWork, ctx.Err()
		}
	}

	return didWork, nil
}
