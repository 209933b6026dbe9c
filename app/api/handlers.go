package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edobrenko/bgg-warehouse/app/database"
)

func NewHandler(catalogRepo database.CatalogRepository, leaseRepo database.LeaseRepository,
	responseRepo database.ResponseRepository, processRepo database.ProcessRepository,
	gameRepo database.GameRepository, requestLogRepo database.RequestLogRepository,
	version string) *Handler {
	return &Handler{
		catalogRepo:    catalogRepo,
		leaseRepo:      leaseRepo,
		responseRepo:   responseRepo,
		processRepo:    processRepo,
		gameRepo:       gameRepo,
		requestLogRepo: requestLogRepo,
		version:        version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	}

	if catalogSize, err := h.catalogRepo.Count(ctx); err == nil {
		health["catalog_size"] = catalogSize
	}

	if gameCount, err := h.gameRepo.GameCount(ctx); err == nil {
		health["games"] = gameCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	catalogSize, err := h.catalogRepo.Count(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "catalog_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	unfetched, err := h.catalogRepo.UnfetchedCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "unfetched_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	refreshDue, err := h.responseRepo.RefreshDueCount(ctx, now)
	if err != nil {
		slog.Error("Database error", "operation", "refresh_due_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	unprocessed, err := h.processRepo.UnprocessedCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "unprocessed_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	fetchStatuses, err := h.responseRepo.FetchStatusCounts(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "fetch_status_counts", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	processStatuses, err := h.processRepo.ProcessStatusCounts(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "process_status_counts", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	stats := gin.H{
		"catalog_size":          catalogSize,
		"unfetched_count":       unfetched,
		"refresh_due_count":     refreshDue,
		"unprocessed_count":     unprocessed,
		"fetch_status_counts":   fetchStatuses,
		"process_status_counts": processStatuses,
	}

	if activeLeases, err := h.leaseRepo.ActiveCount(ctx); err == nil {
		stats["active_leases"] = activeLeases
	}

	if gameCount, err := h.gameRepo.GameCount(ctx); err == nil {
		stats["game_count"] = gameCount
	}

	if lastLoad, err := h.gameRepo.LastLoadTimestamp(ctx); err == nil && lastLoad != nil {
		stats["last_load_at"] = lastLoad.UTC().Format(time.RFC3339)
	}

	if total, successful, avgMs, err := h.requestLogRepo.CallStats(ctx, now.Add(-time.Hour)); err == nil {
		stats["api_calls_last_hour"] = gin.H{
			"total":           total,
			"successful":      successful,
			"avg_response_ms": avgMs,
		}
	}

	c.JSON(http.StatusOK, stats)
}
