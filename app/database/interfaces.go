package database

import (
	"context"
	"time"
)

type CatalogRepository interface {
	InsertIDs(ctx context.Context, ids []ThingID) (int, error)
	Count(ctx context.Context) (int, error)
	UnfetchedCandidates(ctx context.Context, limit int) ([]Candidate, error)
	UnfetchedCount(ctx context.Context) (int, error)
	RetryCandidates(ctx context.Context, attemptCutoff time.Time, limit int) ([]Candidate, error)
	FilterKnown(ctx context.Context, gameIDs []int) ([]Candidate, error)
}

type LeaseRepository interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
	Claim(ctx context.Context, gameID int, now time.Time) (bool, error)
	Release(ctx context.Context, gameID int) error
	ActiveCount(ctx context.Context) (int, error)
}

type ResponseRepository interface {
	InsertResponse(ctx context.Context, gameID int, payload string, status string, fetchedAt time.Time) (string, error)
	RefreshDueCandidates(ctx context.Context, now time.Time, limit int) ([]Candidate, error)
	RefreshDueCount(ctx context.Context, now time.Time) (int, error)
	UpdateRefreshTracking(ctx context.Context, gameID int, refreshedAt time.Time, nextDue time.Time) error
	LatestResponse(ctx context.Context, gameID int) (*RawResponse, error)
	FetchStatusCounts(ctx context.Context) (map[string]int, error)
}

type ProcessRepository interface {
	SelectUnprocessed(ctx context.Context, staleCutoff time.Time, limit int) ([]RawResponse, error)
	UnprocessedCount(ctx context.Context) (int, error)
	MarkProcessed(ctx context.Context, recordID string, status string, errorMessage string) error
	ProcessStatusCounts(ctx context.Context) (map[string]int, error)
}

type GameRepository interface {
	LoadGames(ctx context.Context, loads []*GameLoad) error
	LatestYearPublished(ctx context.Context, gameID int) (*int, error)
	GameCount(ctx context.Context) (int, error)
	LastLoadTimestamp(ctx context.Context) (*time.Time, error)
}

type RequestLogRepository interface {
	Insert(ctx context.Context, entry RequestLogEntry) error
	CallStats(ctx context.Context, since time.Time) (total int, successful int, avgResponseMs float64, err error)
}

type QualityRepository interface {
	InsertResult(ctx context.Context, result QualityResult) error
}
