package metadata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// testOptions returns options with no effective rate limit and tiny backoffs.
func testOptions(baseURL string) ClientOptions {
	return ClientOptions{
		BaseURL:        baseURL,
		RateLimit:      rate.Inf,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		Workers:        4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/meta/"), ".json")
		if id == "404" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "Token %s", "attributes": [{"trait_type": "id_mod", "value": %s}]}`, id, id)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientOptions{})

	if client.httpClient == nil {
		t.Fatal("HTTP client is nil")
	}
	if client.limiter == nil {
		t.Fatal("Rate limiter is nil")
	}
	if client.opts.Workers != DefaultWorkers {
		t.Errorf("Expected %d workers, got %d", DefaultWorkers, client.opts.Workers)
	}
	if client.opts.UserAgent != DefaultUserAgent {
		t.Errorf("Expected user agent %q, got %q", DefaultUserAgent, client.opts.UserAgent)
	}
}

func TestTokenURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://meta.example/azuki", "https://meta.example/azuki/42.json"},
		{"https://meta.example/azuki/", "https://meta.example/azuki/42.json"},
		{"https://meta.example/token/{id}", "https://meta.example/token/42"},
	}

	for _, tt := range tests {
		got, err := NewClient(ClientOptions{BaseURL: tt.base}).TokenURL("42")
		if err != nil {
			t.Fatalf("TokenURL(%q) error: %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("TokenURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}

	if _, err := NewClient(ClientOptions{}).TokenURL("1"); err == nil {
		t.Error("Expected error for empty base URL")
	}
}

func TestFetchToken_Success(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		tokenHandler(t)(w, r)
	}))
	defer server.Close()

	client := NewClient(testOptions(server.URL + "/meta"))
	item, err := client.FetchToken(context.Background(), "7")
	if err != nil {
		t.Fatalf("FetchToken failed: %v", err)
	}

	if item.TokenID != "7" || item.Name != "Token 7" {
		t.Errorf("Unexpected item: %+v", item)
	}
	if len(item.Attributes) != 1 || item.Attributes[0].Value != "7" {
		t.Errorf("Unexpected attributes: %+v", item.Attributes)
	}
	if ua := userAgent.Load(); ua != DefaultUserAgent {
		t.Errorf("Expected user agent %q, got %v", DefaultUserAgent, ua)
	}
}

func TestFetchToken_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(testOptions(server.URL))
	_, err := client.FetchToken(context.Background(), "1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrNotFound {
		t.Fatalf("Expected not_found APIError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", hits.Load())
	}
}

func TestFetchToken_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"attributes": [{"trait_type": "bg", "value": "red"}]}`)
	}))
	defer server.Close()

	client := NewClient(testOptions(server.URL))
	item, err := client.FetchToken(context.Background(), "1")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if item.Attributes[0].Value != "red" {
		t.Errorf("Unexpected item: %+v", item)
	}

	stats := client.GetStats()
	if stats.Retries != 2 {
		t.Errorf("Expected 2 retries, got %d", stats.Retries)
	}
	if stats.TotalRequests != 3 {
		t.Errorf("Expected 3 requests, got %d", stats.TotalRequests)
	}
}

func TestFetchToken_GivesUpAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testOptions(server.URL))
	_, err := client.FetchToken(context.Background(), "1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrRateLimited {
		t.Fatalf("Expected rate_limited APIError, got %v", err)
	}
}

func TestFetchToken_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	_, err := NewClient(testOptions(server.URL)).FetchToken(context.Background(), "1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrParseError {
		t.Fatalf("Expected parse_error APIError, got %v", err)
	}
}

func TestFetchCollection_PreservesOrderAndCollectsFailures(t *testing.T) {
	server := httptest.NewServer(tokenHandler(t))
	defer server.Close()

	client := NewClient(testOptions(server.URL + "/meta"))
	ids := []string{"1", "2", "404", "3", "4", "5"}

	items, failures := client.FetchCollection(context.Background(), ids)

	if len(failures) != 1 || failures[0].TokenID != "404" {
		t.Fatalf("Expected single failure for 404, got %+v", failures)
	}

	want := []string{"1", "2", "3", "4", "5"}
	if len(items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(items))
	}
	for i, id := range want {
		if items[i].TokenID != id {
			t.Errorf("Item %d: expected token %s, got %s", i, id, items[i].TokenID)
		}
	}
}

func TestFetchCollection_CancelledContext(t *testing.T) {
	server := httptest.NewServer(tokenHandler(t))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, failures := NewClient(testOptions(server.URL+"/meta")).FetchCollection(ctx, []string{"1", "2", "3"})
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
	if len(failures) != 3 {
		t.Errorf("Expected 3 failures, got %d", len(failures))
	}
}

func TestTokenRange(t *testing.T) {
	ids, err := TokenRange(3, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(ids, ","); got != "3,4,5,6" {
		t.Errorf("got %s", got)
	}

	if _, err := TokenRange(5, 4); err == nil {
		t.Error("expected error for reversed range")
	}
	if _, err := TokenRange(-1, 4); err == nil {
		t.Error("expected error for negative start")
	}
	if _, err := TokenRange(0, MaxTokenRange); err == nil {
		t.Error("expected error for oversized range")
	}
	if ids, err := TokenRange(0, MaxTokenRange-1); err != nil || len(ids) != MaxTokenRange {
		t.Errorf("expected %d ids at the limit, got %d (%v)", MaxTokenRange, len(ids), err)
	}
	if _, err := TokenRange(0, math.MaxInt); err == nil {
		t.Error("expected error for range ending at MaxInt")
	}
	if _, err := TokenRange(1, math.MaxInt); err == nil {
		t.Error("expected error for range ending at MaxInt")
	}
}
