package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestTransport(baseURL string, retries int) *transport {
	cache := NewResponseCache(5 * time.Minute)
	limiter := NewRateLimiter(10000, 10000, 100000, time.Second, nil)
	return newTransport(baseURL, "test-key", 2*time.Second, cache, limiter, newPerfCounters(), retries, time.Millisecond)
}

func TestGetCachesWithinTTL(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"users":[{"fid":3}]}`))
	}))
	defer ts.Close()

	tr := newTestTransport(ts.URL, 2)
	ctx := context.Background()
	params := url.Values{"fids": {"3"}}
	first, err := tr.get(ctx, EndpointUserBulk, "/user/bulk", params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tr.get(ctx, EndpointUserBulk, "/user/bulk", params)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", calls)
	}
	if string(first) != string(second) {
		t.Fatalf("cached payload differs")
	}
	stats := tr.counters.snapshot()
	if stats.Requests != 2 || stats.CacheHits != 1 || stats.UpstreamCalls != 1 {
		t.Fatalf("counters = %+v", stats)
	}
}

func TestGetRefetchesAfterTTL(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"users":[]}`))
	}))
	defer ts.Close()

	tr := newTestTransport(ts.URL, 2)
	cur := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.cache.now = func() time.Time { return cur }

	ctx := context.Background()
	if _, err := tr.get(ctx, EndpointFollowers, "/followers", url.Values{"fid": {"3"}}); err != nil {
		t.Fatal(err)
	}
	cur = cur.Add(6 * time.Minute)
	if _, err := tr.get(ctx, EndpointFollowers, "/followers", url.Values{"fid": {"3"}}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("upstream calls = %d, want 2 after TTL expiry", calls)
	}
}

func TestRetryExhaustionBecomesUnavailable(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	tr := newTestTransport(ts.URL, 2)
	_, err := tr.get(context.Background(), EndpointUserCasts, "/feed/user/casts", url.Values{"fid": {"3"}})
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 1 + 2 retries", attempts)
	}
	if tr.counters.snapshot().Retries != 2 {
		t.Fatalf("retry counter = %d, want 2", tr.counters.snapshot().Retries)
	}
}

func TestNotFoundIsNeverRetried(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	tr := newTestTransport(ts.URL, 3)
	_, err := tr.get(context.Background(), EndpointUserBulk, "/user/bulk", url.Values{"fids": {"999"}})
	if !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want exactly 1", attempts)
	}
}

func TestBadRequestIsNotRetried(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	tr := newTestTransport(ts.URL, 3)
	_, err := tr.get(context.Background(), EndpointUserSearch, "/user/search", url.Values{"q": {"x"}})
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Retryable {
		t.Fatalf("expected terminal upstream error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want exactly 1", attempts)
	}
}

func TestUpstream429SurfacesRetryAfter(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	tr := newTestTransport(ts.URL, 3)
	_, err := tr.get(context.Background(), EndpointUserBulk, "/user/bulk", url.Values{"fids": {"3"}})
	if !IsRateLimited(err) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if got := RetryAfterHint(err); got != 7*time.Second {
		t.Fatalf("retry-after = %s, want 7s", got)
	}
	if attempts != 1 {
		t.Fatalf("429 must not be auto-retried, attempts = %d", attempts)
	}
}
