package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/edobrenko/bgg-warehouse/app/api"
	"github.com/edobrenko/bgg-warehouse/app/bgg"
	"github.com/edobrenko/bgg-warehouse/app/cfg"
	"github.com/edobrenko/bgg-warehouse/app/database"
	"github.com/edobrenko/bgg-warehouse/app/fetch"
	"github.com/edobrenko/bgg-warehouse/app/process"
	"github.com/edobrenko/bgg-warehouse/app/quality"
	"github.com/edobrenko/bgg-warehouse/app/source"
)

type fetchOpts struct {
	BatchSize int   `long:"batch-size" description:"Override the number of identifiers selected this cycle"`
	IDs       []int `long:"ids" description:"Fetch these game identifiers directly, bypassing the candidate pools (repeatable)"`
}

type processOpts struct {
	BatchSize int `long:"batch-size" description:"Override the number of responses processed per batch"`
}

type refreshOpts struct {
	DryRun   bool `long:"dry-run" description:"Report what would be refreshed without making API calls"`
	MaxGames int  `long:"max-games" description:"Stop after refreshing this many games (0 = no limit)"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	c, rest, err := cfg.Load(args)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return 1
	}
	if c == nil {
		// Help was shown
		return 0
	}

	if c.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	if len(rest) == 0 {
		slog.Error("No command given, expected one of: discover, fetch, process, refresh, monitor, serve")
		return 2
	}
	command, commandArgs := rest[0], rest[1:]

	slog.Info("Starting BGG warehouse", "version", c.Version, "environment", c.Environment, "command", command)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err)
		return 1
	}
	defer db.Close()

	schemaVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return 1
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", schemaVersion, "dirty", dirty)

	catalogRepo := database.NewCatalogRepository(db)
	leaseRepo := database.NewLeaseRepository(db)
	responseRepo := database.NewResponseRepository(db)
	processRepo := database.NewProcessRepository(db)
	gameRepo := database.NewGameRepository(db)
	requestLogRepo := database.NewRequestLogRepository(db)
	qualityRepo := database.NewQualityRepository(db)

	policy := fetch.PolicyFromCfg(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "discover":
		discoverer := source.NewDiscoverer(c, catalogRepo)
		inserted, err := discoverer.Run(ctx)
		if err != nil {
			slog.Error("Discovery failed", "error", err)
			return 1
		}
		slog.Info("Discovery finished", "new_ids", inserted)
		return 0

	case "fetch":
		opts := fetchOpts{BatchSize: c.FetchBatchSize}
		if code, done := parseCommandOpts(&opts, commandArgs); done {
			return code
		}

		client := bgg.NewClient(c, requestLogRepo)
		scheduler := fetch.NewScheduler(catalogRepo, leaseRepo, responseRepo)
		executor := fetch.NewExecutor(client, responseRepo, leaseRepo, c.ChunkSize)

		batch := scheduler.SelectFetchBatch(ctx, opts.BatchSize, opts.IDs)
		if len(batch) == 0 {
			slog.Info("Nothing to fetch")
			return 0
		}

		executor.FetchBatch(ctx, batch)
		slog.Info("Fetch finished", "candidates", len(batch))
		return 0

	case "process":
		opts := processOpts{BatchSize: c.ProcessBatchSize}
		if code, done := parseCommandOpts(&opts, commandArgs); done {
			return code
		}

		processor := process.NewProcessor(processRepo, gameRepo, responseRepo, policy, opts.BatchSize)
		if _, err := processor.Run(ctx); err != nil {
			slog.Error("Processing failed", "error", err)
			return 1
		}
		return 0

	case "refresh":
		var opts refreshOpts
		if code, done := parseCommandOpts(&opts, commandArgs); done {
			return code
		}

		client := bgg.NewClient(c, requestLogRepo)
		scheduler := fetch.NewScheduler(catalogRepo, leaseRepo, responseRepo)
		executor := fetch.NewExecutor(client, responseRepo, leaseRepo, c.ChunkSize)
		processor := process.NewProcessor(processRepo, gameRepo, responseRepo, policy, c.ProcessBatchSize)
		pipeline := fetch.NewRefreshPipeline(scheduler, executor, processor,
			catalogRepo, responseRepo, gameRepo, policy, c.FetchBatchSize, c.ChunkSize, opts.MaxGames)

		if opts.DryRun {
			if err := pipeline.Preview(ctx); err != nil {
				slog.Error("Refresh preview failed", "error", err)
				return 1
			}
			return 0
		}

		attempted, err := pipeline.Run(ctx)
		if err != nil {
			slog.Error("Refresh failed", "error", err)
			return 1
		}
		slog.Info("Refresh finished", "games_attempted", attempted)
		return 0

	case "monitor":
		monitor := quality.NewMonitor(db, qualityRepo, requestLogRepo)
		passed, err := monitor.Run(ctx)
		if err != nil {
			slog.Error("Quality monitor failed", "error", err)
			return 1
		}
		if !passed {
			slog.Warn("Quality checks reported failures")
			return 1
		}
		slog.Info("All quality checks passed")
		return 0

	case "serve":
		handler := api.NewHandler(catalogRepo, leaseRepo, responseRepo, processRepo,
			gameRepo, requestLogRepo, c.Version)
		return serveHTTP(ctx, api.NewServer(handler), c.Port)

	default:
		slog.Error("Unknown command", "command", command)
		return 2
	}
}

// parseCommandOpts parses per-command flags. The returned exit code is only
// meaningful when done is true.
func parseCommandOpts(opts interface{}, args []string) (int, bool) {
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0, true
		}
		slog.Error("Failed to parse command options", "error", err)
		return 2, true
	}
	return 0, false
}

func serveHTTP(ctx context.Context, engine http.Handler, port string) int {
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return 1
	}
	slog.Info("HTTP server stopped")

	return exitCode
}
