// Package indexer wraps the remote social-graph API with rate limiting,
// TTL response caching, retry with backoff, batch-splitting for bulk
// lookups, quality filtering, and interaction scoring. One Indexer is
// expected to be shared process-wide; its cache, budgets, and counters
// are common to all callers.
package indexer

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"castdex/internal/model"
	"castdex/internal/quality"
	"castdex/internal/rank"
)

// Endpoint names, tracked independently for rate limiting and caching.
const (
	EndpointUserBulk   = "user-bulk"
	EndpointFollowers  = "followers"
	EndpointFollowing  = "following"
	EndpointUserCasts  = "user-casts"
	EndpointUserSearch = "user-search"
)

const (
	DefaultTopLimit   = 8
	DefaultCastWindow = 25
	maxPageLimit      = 100
)

// Options configures an Indexer. Zero fields take defaults.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	CacheTTL      time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	BatchSize     int
	BatchDelay    time.Duration
	CastWindow    int
	MaxWait       time.Duration
	PartialBulk   bool

	PerMinute       int
	GlobalPerMinute int
	GlobalPerSecond float64
	EndpointLimits  map[string]int

	Filter  quality.Options
	Weights rank.Weights
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.neynar.com/v2/farcaster"
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 750 * time.Millisecond
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 75
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.CastWindow <= 0 {
		o.CastWindow = DefaultCastWindow
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 30 * time.Second
	}
	if o.PerMinute <= 0 {
		o.PerMinute = 300
	}
	if o.GlobalPerMinute <= 0 {
		o.GlobalPerMinute = 500
	}
	if o.GlobalPerSecond <= 0 {
		o.GlobalPerSecond = 5
	}
	if o.Filter == (quality.Options{}) {
		o.Filter = quality.DefaultOptions()
	}
	if o.Weights == (rank.Weights{}) {
		o.Weights = rank.DefaultWeights()
	}
}

// Indexer is the facade over the upstream social-graph API.
type Indexer struct {
	tr       *transport
	limiter  *RateLimiter
	cache    *ResponseCache
	counters *perfCounters
	batch    *batchFetcher
	strict   *batchFetcher
	opts     Options
}

// New builds an Indexer from opts.
func New(opts Options) *Indexer {
	opts.applyDefaults()
	cache := NewResponseCache(opts.CacheTTL)
	limiter := NewRateLimiter(opts.PerMinute, opts.GlobalPerMinute, opts.GlobalPerSecond, opts.MaxWait, opts.EndpointLimits)
	counters := newPerfCounters()
	return &Indexer{
		tr:       newTransport(opts.BaseURL, opts.APIKey, opts.Timeout, cache, limiter, counters, opts.RetryAttempts, opts.RetryDelay),
		limiter:  limiter,
		cache:    cache,
		counters: counters,
		batch:    newBatchFetcher(opts.BatchSize, opts.BatchDelay, opts.PartialBulk),
		strict:   newBatchFetcher(opts.BatchSize, opts.BatchDelay, false),
		opts:     opts,
	}
}

func joinFIDs(fids []uint64) string {
	parts := make([]string, len(fids))
	for i, fid := range fids {
		parts[i] = strconv.FormatUint(fid, 10)
	}
	return strings.Join(parts, ",")
}

// bulkUsers fetches one chunk of fids from the bulk endpoint.
func (ix *Indexer) bulkUsers(ctx context.Context, fids []uint64, viewer uint64) ([]model.User, error) {
	params := url.Values{}
	params.Set("fids", joinFIDs(fids))
	if viewer > 0 {
		params.Set("viewer_fid", strconv.FormatUint(viewer, 10))
	}
	body, err := ix.tr.get(ctx, EndpointUserBulk, "/user/bulk", params)
	if err != nil {
		return nil, err
	}
	users, _, err := decodeUsers(body)
	return users, err
}

// GetUser returns one user snapshot. viewer scopes viewer-dependent
// fields and participates in the cache key; pass 0 for none.
func (ix *Indexer) GetUser(ctx context.Context, fid, viewer uint64) (model.User, error) {
	if fid == 0 {
		return model.User{}, fmt.Errorf("fid must be positive: %w", ErrInvalidInput)
	}
	users, err := ix.bulkUsers(ctx, []uint64{fid}, viewer)
	if err != nil {
		return model.User{}, err
	}
	if len(users) == 0 {
		return model.User{}, fmt.Errorf("fid %d: %w", fid, ErrNotFound)
	}
	return users[0], nil
}

// GetBulkUsers resolves many fids, splitting into rate-limit-friendly
// batches. Order follows batch order; ids missing upstream are absent
// from the result without error.
func (ix *Indexer) GetBulkUsers(ctx context.Context, fids []uint64, viewer uint64) ([]model.User, error) {
	if len(fids) == 0 {
		return nil, fmt.Errorf("empty fid list: %w", ErrInvalidInput)
	}
	for _, fid := range fids {
		if fid == 0 {
			return nil, fmt.Errorf("fid must be positive: %w", ErrInvalidInput)
		}
	}
	return ix.batch.fetch(ctx, fids, func(ctx context.Context, chunk []uint64) ([]model.User, error) {
		return ix.bulkUsers(ctx, chunk, viewer)
	})
}

func (ix *Indexer) pagedUsers(ctx context.Context, endpoint, path string, fid uint64, limit int, cursor string) ([]model.User, string, error) {
	if fid == 0 {
		return nil, "", fmt.Errorf("fid must be positive: %w", ErrInvalidInput)
	}
	params := url.Values{}
	params.Set("fid", strconv.FormatUint(fid, 10))
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	body, err := ix.tr.get(ctx, endpoint, path, params)
	if err != nil {
		return nil, "", err
	}
	return decodeUsers(body)
}

// GetFollowers lists accounts following fid, cursor-paginated.
func (ix *Indexer) GetFollowers(ctx context.Context, fid uint64, limit int, cursor string) ([]model.User, string, error) {
	return ix.pagedUsers(ctx, EndpointFollowers, "/followers", fid, limit, cursor)
}

// GetFollowing lists accounts fid follows, cursor-paginated.
func (ix *Indexer) GetFollowing(ctx context.Context, fid uint64, limit int, cursor string) ([]model.User, string, error) {
	return ix.pagedUsers(ctx, EndpointFollowing, "/following", fid, limit, cursor)
}

// GetUserCasts lists fid's recent casts with embedded reaction lists.
func (ix *Indexer) GetUserCasts(ctx context.Context, fid uint64, limit int, cursor string) ([]model.Cast, string, error) {
	if fid == 0 {
		return nil, "", fmt.Errorf("fid must be positive: %w", ErrInvalidInput)
	}
	params := url.Values{}
	params.Set("fid", strconv.FormatUint(fid, 10))
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	body, err := ix.tr.get(ctx, EndpointUserCasts, "/feed/user/casts", params)
	if err != nil {
		return nil, "", err
	}
	return decodeCasts(body)
}

// SearchUsers runs an upstream username/profile search.
func (ix *Indexer) SearchUsers(ctx context.Context, query string, limit int) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", ErrInvalidInput)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	body, err := ix.tr.get(ctx, EndpointUserSearch, "/user/search", params)
	if err != nil {
		return nil, err
	}
	users, _, err := decodeUsers(body)
	return users, err
}

// ScoreOptions tunes one TopInteractions call. Zero fields fall back to
// the Indexer's configured policy.
type ScoreOptions struct {
	Filter     quality.Options
	Weights    rank.Weights
	CastWindow int
}

// TopInteractions ranks the counterparts who interacted most with fid's
// recent casts. Candidates are quality-filtered before scoring, and any
// failure resolving them aborts the whole call rather than silently
// omitting unresolved users, which would bias the ranking.
func (ix *Indexer) TopInteractions(ctx context.Context, fid uint64, limit int, opts ScoreOptions) ([]rank.RankedInteractor, error) {
	if fid == 0 {
		return nil, fmt.Errorf("fid must be positive: %w", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	window := opts.CastWindow
	if window <= 0 {
		window = ix.opts.CastWindow
	}
	filter := opts.Filter
	if filter == (quality.Options{}) {
		filter = ix.opts.Filter
	}
	weights := opts.Weights
	if weights == (rank.Weights{}) {
		weights = ix.opts.Weights
	}

	casts, _, err := ix.GetUserCasts(ctx, fid, window, "")
	if err != nil {
		return nil, err
	}
	tallies := rank.BuildTallies(casts, fid)
	if len(tallies) == 0 {
		return nil, nil
	}
	ids := make([]uint64, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	// deterministic batches keep cache keys stable across calls
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	candidates, err := ix.strict.fetch(ctx, ids, func(ctx context.Context, chunk []uint64) ([]model.User, error) {
		return ix.bulkUsers(ctx, chunk, fid)
	})
	if err != nil {
		return nil, err
	}
	candidates = quality.Filter(candidates, filter)
	return rank.Rank(candidates, tallies, weights, limit), nil
}

// ReplyGuys ranks counterparts by reply volume over fid's recent casts.
func (ix *Indexer) ReplyGuys(ctx context.Context, fid uint64, limit int) ([]rank.RankedInteractor, error) {
	return ix.TopInteractions(ctx, fid, limit, ScoreOptions{Weights: rank.ReplyGuyWeights()})
}

// CacheStats returns a snapshot of the response cache.
func (ix *Indexer) CacheStats() CacheStats { return ix.cache.Stats() }

// RateLimitStats returns a snapshot of every tracked rate budget.
func (ix *Indexer) RateLimitStats() map[string]BudgetStat { return ix.limiter.Stats() }

// PerformanceStats returns a snapshot of the process-wide counters.
func (ix *Indexer) PerformanceStats() PerfStats { return ix.counters.snapshot() }

// ClearCache drops every cached response.
func (ix *Indexer) ClearCache() { ix.cache.Clear() }

// ResetStats zeroes the performance counters.
func (ix *Indexer) ResetStats() { ix.counters.reset() }

func clampLimit(v int) int {
	if v <= 0 {
		return 25
	}
	if v > maxPageLimit {
		return maxPageLimit
	}
	return v
}
