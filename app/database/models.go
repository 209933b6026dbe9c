package database

import (
	"time"
)

// Fetch lifecycle statuses
const (
	FetchStatusSuccess    = "success"
	FetchStatusNoResponse = "no_response"
	FetchStatusParseError = "parse_error"
)

// Process lifecycle statuses
const (
	ProcessStatusSuccess    = "success"
	ProcessStatusFailed     = "failed"
	ProcessStatusError      = "error"
	ProcessStatusNoResponse = "no_response"
	ProcessStatusParseError = "parse_error"
)

// ThingID is an identifier catalog entry
type ThingID struct {
	GameID       int
	Type         string
	DiscoveredAt time.Time
}

// Candidate is an identifier selected for fetching
type Candidate struct {
	GameID int
	Type   string
}

// RawResponse is one stored fetch attempt
type RawResponse struct {
	RecordID       string
	GameID         int
	ResponseData   string
	FetchTimestamp time.Time
	LastRefreshAt  *time.Time
	RefreshCount   int
	NextRefreshDue *time.Time
}

// FetchedResponse is the fetch lifecycle record for a raw response
type FetchedResponse struct {
	RecordID       string
	GameID         int
	FetchTimestamp time.Time
	FetchStatus    string
}

// ProcessedResponse is one processing attempt for a raw response
type ProcessedResponse struct {
	RecordID         string
	ProcessTimestamp time.Time
	ProcessStatus    string
	ProcessAttempt   int
	ErrorMessage     string
}

// RequestLogEntry records one upstream API call
type RequestLogEntry struct {
	RequestID        string
	URL              string
	Method           string
	GameIDs          string
	StatusCode       int
	ResponseTime     time.Duration
	Error            string
	RequestTimestamp time.Time
}

// Game is one normalized game row (time series, one row per load)
type Game struct {
	GameID        int
	LoadTimestamp time.Time
	Type          string
	Name          string
	SortName      string
	YearPublished *int
	MinPlayers    *int
	MaxPlayers    *int
	PlayingTime   *int
	MinAge        *int
	Description   string
	AverageRating *float64
	BayesAverage  *float64
	UsersRated    *int
	AverageWeight *float64
}

// GameRanking is one ranking history row
type GameRanking struct {
	RankType     string
	RankName     string
	RankValue    *int
	BayesAverage *float64
}

// DimensionValue is a natural-keyed dimension row (category, mechanic, ...)
type DimensionValue struct {
	ID   int
	Name string
}

// GameLoad bundles everything derived from one raw response for bulk loading
type GameLoad struct {
	RecordID   string
	Game       Game
	Rankings   []GameRanking
	Categories []DimensionValue
	Mechanics  []DimensionValue
	Designers  []DimensionValue
	Publishers []DimensionValue
}

// QualityResult is one pass/fail row emitted by the quality monitor
type QualityResult struct {
	CheckName string
	TableName string
	Passed    bool
	Details   string
	CheckedAt time.Time
}
