package bgg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/cfg"
	"github.com/edobrenko/bgg-warehouse/app/database"
	"github.com/google/uuid"
)

// ErrUnparsable marks a response that arrived but could not be decoded. The
// fetch executor classifies it differently from a missing response.
var ErrUnparsable = errors.New("unparsable response")

// Client talks to the XML API with client-side rate limiting and retry on
// rate-limit and transport errors. Every call is logged to request_log.
type Client struct {
	httpClient *http.Client
	requestLog database.RequestLogRepository

	baseURL      string
	userAgent    string
	requestDelay time.Duration
	maxRetries   int
	retryDelay   time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

func NewClient(c *cfg.Cfg, requestLog database.RequestLogRepository) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		requestLog:   requestLog,
		baseURL:      strings.TrimSuffix(c.APIBaseURL, "/"),
		userAgent:    c.UserAgent,
		requestDelay: time.Duration(c.RequestDelay) * time.Millisecond,
		maxRetries:   c.MaxRetries,
		retryDelay:   time.Duration(c.RetryDelay) * time.Second,
	}
}

// GetThings performs one batch lookup. The response may contain a subset of
// the requested ids; callers must treat absent ids as unanswered.
func (c *Client) GetThings(ctx context.Context, gameIDs []int) (*Things, error) {
	idStrs := make([]string, len(gameIDs))
	for i, id := range gameIDs {
		idStrs[i] = strconv.Itoa(id)
	}
	idsParam := strings.Join(idStrs, ",")

	endpoint := fmt.Sprintf("%s/thing?%s", c.baseURL, url.Values{
		"id":    {idsParam},
		"stats": {"1"},
		"type":  {"boardgame,boardgameexpansion"},
	}.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		requestID := uuid.NewString()
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			slog.Warn("Retrying API call", "request_id", requestID, "attempt", attempt, "delay", delay.String())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		c.waitForRateLimit()

		start := time.Now()
		body, statusCode, err := c.doRequest(ctx, endpoint)
		duration := time.Since(start)

		if err != nil {
			lastErr = err
			c.logRequest(ctx, requestID, endpoint, idsParam, statusCode, duration, err.Error())
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited for games %s", idsParam)
			c.logRequest(ctx, requestID, endpoint, idsParam, statusCode, duration, "rate limited")
			continue
		}

		if statusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d for games %s", statusCode, idsParam)
			c.logRequest(ctx, requestID, endpoint, idsParam, statusCode, duration, lastErr.Error())
			continue
		}

		things, err := ParseThings(body)
		if err != nil {
			c.logRequest(ctx, requestID, endpoint, idsParam, statusCode, duration, err.Error())
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}

		c.logRequest(ctx, requestID, endpoint, idsParam, statusCode, duration, "")
		return things, nil
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}

// waitForRateLimit enforces the minimum delay between consecutive API calls
func (c *Client) waitForRateLimit() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.requestDelay {
		wait := c.requestDelay - elapsed
		c.mu.Unlock()
		time.Sleep(wait)
		c.mu.Lock()
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func (c *Client) logRequest(ctx context.Context, requestID, endpoint, gameIDs string, statusCode int, duration time.Duration, errMsg string) {
	if c.requestLog == nil {
		return
	}

	entry := database.RequestLogEntry{
		RequestID:        requestID,
		URL:              endpoint,
		Method:           http.MethodGet,
		GameIDs:          gameIDs,
		StatusCode:       statusCode,
		ResponseTime:     duration,
		Error:            errMsg,
		RequestTimestamp: time.Now().UTC(),
	}
	if err := c.requestLog.Insert(ctx, entry); err != nil {
		slog.Warn("Failed to log API request", "request_id", requestID, "error", err)
	}
}
