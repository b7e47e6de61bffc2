package indexer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"castdex/internal/metrics"
)

// transport issues upstream calls through the cache and rate limiter,
// retrying transient failures with exponential backoff.
type transport struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	cache     *ResponseCache
	limiter   *RateLimiter
	counters  *perfCounters
	retries   int
	baseDelay time.Duration
	group     singleflight.Group

	sleep func(context.Context, time.Duration) error
}

func newTransport(baseURL, apiKey string, timeout time.Duration, cache *ResponseCache, limiter *RateLimiter, counters *perfCounters, retries int, baseDelay time.Duration) *transport {
	return &transport{
		baseURL:   baseURL,
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
		cache:     cache,
		limiter:   limiter,
		counters:  counters,
		retries:   retries,
		baseDelay: baseDelay,
		sleep:     sleepCtx,
	}
}

// get returns the response body for endpoint, serving from cache when
// fresh. Concurrent misses for the same key are coalesced into one
// upstream call. Counters count one request per logical call here;
// latency is sampled per physical attempt in fetch.
func (t *transport) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	t.counters.request()
	metrics.IncRequest(endpoint)
	key := endpoint + "?" + params.Encode()
	if b, ok := t.cache.Get(key); ok {
		t.counters.cacheHit()
		metrics.IncCacheHit()
		return b, nil
	}
	v, err, _ := t.group.Do(key, func() (any, error) {
		// a coalesced caller may arrive after the winner filled the cache
		if b, ok := t.cache.Get(key); ok {
			return b, nil
		}
		b, err := t.fetch(ctx, endpoint, path, params)
		if err != nil {
			return nil, err
		}
		t.cache.Put(key, b)
		return b, nil
	})
	if err != nil {
		t.counters.failure()
		return nil, err
	}
	return v.([]byte), nil
}

// fetch performs the network call with retry. 4xx statuses are never
// retried; 429 is surfaced with its Retry-After hint since the local
// limiter is expected to prevent most of them.
func (t *transport) fetch(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if err := t.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}
	var last error
	delay := t.baseDelay
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			t.counters.retry()
			metrics.IncRetry(endpoint)
			if err := t.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
		start := time.Now()
		body, status, retryAfter, err := t.do(ctx, path, params)
		t.counters.attempt(time.Since(start))
		metrics.ObserveRequest(endpoint, time.Since(start))
		if err != nil {
			last = err
			continue
		}
		switch {
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", endpoint, ErrNotFound)
		case status == http.StatusTooManyRequests:
			return nil, &RateLimitedError{Endpoint: endpoint, RetryAfter: retryAfter, Upstream: true}
		case status >= 500:
			last = &UpstreamError{Endpoint: endpoint, Status: status, Retryable: true}
		default:
			return nil, &UpstreamError{Endpoint: endpoint, Status: status}
		}
	}
	return nil, &UnavailableError{Endpoint: endpoint, Attempts: t.retries + 1, Last: last}
}

// do performs one physical request and returns body, status, and any
// Retry-After hint.
func (t *transport) do(ctx context.Context, path string, params url.Values) ([]byte, int, time.Duration, error) {
	u := t.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("x-api-key", t.apiKey)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, err
	}
	return body, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
