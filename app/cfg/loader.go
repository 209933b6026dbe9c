package cfg

import (
	"cmp"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/warehouse.db" description:"Path to the SQLite warehouse database"`

	// Environment profile
	Environment string `long:"environment" env:"ENVIRONMENT" default:"dev" choice:"dev" choice:"test" choice:"prod" description:"Environment profile"`
	ConfigFile  string `long:"config" env:"CONFIG_FILE" description:"Optional YAML file with per-environment profiles"`

	// Upstream API configuration
	APIBaseURL   string `long:"api-base-url" env:"API_BASE_URL" default:"https://boardgamegeek.com/xmlapi2" description:"Base URL of the XML API"`
	ThingIDsURL  string `long:"thing-ids-url" env:"THING_IDS_URL" default:"http://bgg.activityclub.org/bggdata/thingids.txt" description:"URL of the published thing-ids list"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"bgg-warehouse/1.0" description:"User agent string for HTTP requests"`
	RequestDelay int    `long:"request-delay" env:"REQUEST_DELAY" default:"500" description:"Minimum delay between API calls in milliseconds"`
	MaxRetries   int    `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Retry attempts for rate-limited or failed API calls"`
	RetryDelay   int    `long:"retry-delay" env:"RETRY_DELAY" default:"5" description:"Base delay between retry attempts in seconds"`

	// Pipeline configuration
	FetchBatchSize   int `long:"fetch-batch-size" env:"FETCH_BATCH_SIZE" default:"1000" description:"Identifiers selected per fetch cycle"`
	ProcessBatchSize int `long:"process-batch-size" env:"PROCESS_BATCH_SIZE" default:"100" description:"Responses processed per batch"`
	ChunkSize        int `long:"chunk-size" env:"CHUNK_SIZE" default:"20" description:"Identifiers per API call"`

	// Refresh policy
	UpcomingIntervalDays int     `long:"upcoming-interval" env:"UPCOMING_INTERVAL_DAYS" default:"3" description:"Refresh interval for unreleased games in days"`
	BaseIntervalDays     int     `long:"base-interval" env:"BASE_INTERVAL_DAYS" default:"7" description:"Refresh interval for current-year games in days"`
	DecayFactor          float64 `long:"decay-factor" env:"DECAY_FACTOR" default:"2.0" description:"Per-year multiplier applied to the base interval"`
	MaxIntervalDays      int     `long:"max-interval" env:"MAX_INTERVAL_DAYS" default:"90" description:"Refresh interval ceiling in days"`

	// HTTP surface
	Port string `long:"port" env:"PORT" default:"8080" description:"HTTP server port for the serve command"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// profile holds per-environment overrides loaded from the optional YAML file.
// A key present in the profile wins over a flag default but loses to an
// explicitly passed flag or environment variable.
type profile struct {
	DBPath      string `yaml:"db_path"`
	APIBaseURL  string `yaml:"api_base_url"`
	ThingIDsURL string `yaml:"thing_ids_url"`
	Port        string `yaml:"port"`
}

type profileFile struct {
	Profiles map[string]profile `yaml:"profiles"`
}

// Load parses configuration from command-line flags, environment variables and
// the optional profile file. It returns (nil, nil, nil) when help was requested.
// The remaining positional arguments (the subcommand) are returned alongside.
func Load(args []string) (*Cfg, []string, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.Usage = "<discover|fetch|process|refresh|monitor|serve> [OPTIONS]"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.ConfigFile != "" {
		if err := applyProfile(parser, &raw); err != nil {
			return nil, nil, err
		}
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		Environment:          raw.Environment,
		APIBaseURL:           raw.APIBaseURL,
		ThingIDsURL:          raw.ThingIDsURL,
		UserAgent:            raw.UserAgent,
		RequestDelay:         raw.RequestDelay,
		MaxRetries:           raw.MaxRetries,
		RetryDelay:           raw.RetryDelay,
		FetchBatchSize:       raw.FetchBatchSize,
		ProcessBatchSize:     raw.ProcessBatchSize,
		ChunkSize:            raw.ChunkSize,
		UpcomingIntervalDays: raw.UpcomingIntervalDays,
		BaseIntervalDays:     raw.BaseIntervalDays,
		DecayFactor:          raw.DecayFactor,
		MaxIntervalDays:      raw.MaxIntervalDays,
		Port:                 raw.Port,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	return cfg, rest, nil
}

func applyProfile(parser *flags.Parser, raw *rawCfg) error {
	data, err := os.ReadFile(raw.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", raw.ConfigFile, err)
	}

	prof, ok := file.Profiles[raw.Environment]
	if !ok {
		return fmt.Errorf("config file %s has no profile for environment %q", raw.ConfigFile, raw.Environment)
	}

	// Profile values only fill options still at their defaults.
	if prof.DBPath != "" && isDefault(parser, "db-path") {
		raw.DBPath = prof.DBPath
	}
	if prof.APIBaseURL != "" && isDefault(parser, "api-base-url") {
		raw.APIBaseURL = prof.APIBaseURL
	}
	if prof.ThingIDsURL != "" && isDefault(parser, "thing-ids-url") {
		raw.ThingIDsURL = prof.ThingIDsURL
	}
	if prof.Port != "" && isDefault(parser, "port") {
		raw.Port = prof.Port
	}

	return nil
}

func isDefault(parser *flags.Parser, name string) bool {
	opt := parser.FindOptionByLongName(name)
	if opt == nil {
		return false
	}
	return !opt.IsSet() || opt.IsSetDefault()
}
