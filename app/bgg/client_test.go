package bgg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edobrenko/bgg-warehouse/app/cfg"
)

func testClient(serverURL string) *Client {
	return NewClient(&cfg.Cfg{
		APIBaseURL:   serverURL,
		UserAgent:    "bgg-warehouse-test",
		RequestDelay: 0,
		MaxRetries:   2,
		RetryDelay:   0,
	}, nil)
}

func TestGetThings(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<items>
			<item type="boardgame" id="1"><name type="primary" sortindex="1" value="A"/></item>
			<item type="boardgame" id="2"><name type="primary" sortindex="1" value="B"/></item>
		</items>`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	things, err := client.GetThings(context.Background(), []int{1, 2})
	if err != nil {
		t.Fatalf("GetThings failed: %v", err)
	}
	if len(things.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(things.Items))
	}

	query, err := http.NewRequest(http.MethodGet, "/?"+gotQuery, nil)
	if err != nil {
		t.Fatalf("Failed to rebuild query: %v", err)
	}
	params := query.URL.Query()
	if params.Get("id") != "1,2" {
		t.Errorf("Expected id=1,2, got %q", params.Get("id"))
	}
	if params.Get("stats") != "1" {
		t.Errorf("Expected stats=1, got %q", params.Get("stats"))
	}
}

func TestGetThingsRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`<items><item type="boardgame" id="5"><name type="primary" sortindex="1" value="C"/></item></items>`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	things, err := client.GetThings(context.Background(), []int{5})
	if err != nil {
		t.Fatalf("GetThings failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	if len(things.Items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(things.Items))
	}
}

func TestGetThingsExhaustsRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL)
	if _, err := client.GetThings(context.Background(), []int{9}); err == nil {
		t.Fatal("Expected an error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestGetThingsUnparsableResponse(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`this is not xml`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.GetThings(context.Background(), []int{9})
	if !errors.Is(err, ErrUnparsable) {
		t.Fatalf("Expected ErrUnparsable, got %v", err)
	}
	// A decoded-but-garbled body is not retried; the payload will not
	// change on a second request.
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestGetThingsContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := testClient(server.URL)
	if _, err := client.GetThings(ctx, []int{1}); err == nil {
		t.Error("Expected an error for a cancelled context")
	}
}
