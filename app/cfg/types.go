package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Environment profile (dev/test/prod)
	Environment string

	// Upstream API configuration
	APIBaseURL   string
	ThingIDsURL  string
	UserAgent    string
	RequestDelay int // minimum milliseconds between API calls
	MaxRetries   int
	RetryDelay   int // base seconds between retry attempts

	// Pipeline configuration
	FetchBatchSize   int
	ProcessBatchSize int
	ChunkSize        int

	// Refresh policy
	UpcomingIntervalDays int
	BaseIntervalDays     int
	DecayFactor          float64
	MaxIntervalDays      int

	// HTTP surface
	Port string

	Debug   bool
	Version string
}
