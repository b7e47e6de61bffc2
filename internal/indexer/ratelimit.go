package indexer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const budgetWindow = time.Minute

// budget is a requests-per-minute counter with a sliding reset.
type budget struct {
	limit   int
	count   int
	resetAt time.Time
}

// refresh resets the counter once the window has elapsed.
func (b *budget) refresh(now time.Time) {
	if !now.Before(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(budgetWindow)
	}
}

// BudgetStat is a read-only snapshot of one rate budget.
type BudgetStat struct {
	Limit   int       `json:"limit"`
	Used    int       `json:"used"`
	ResetAt time.Time `json:"resetAt"`
}

// RateLimiter gates outgoing calls against per-endpoint and global
// minute budgets, then paces admitted calls through a per-second token
// bucket. Shared by all callers of one Indexer.
type RateLimiter struct {
	mu        sync.Mutex
	endpoints map[string]*budget
	global    *budget
	perMinute int
	overrides map[string]int
	pacer     *rate.Limiter
	maxWait   time.Duration

	// injectable for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRateLimiter builds a limiter with the given ceilings. perMinute is
// the default per-endpoint budget; overrides set a different ceiling for
// specific endpoints.
func NewRateLimiter(perMinute, globalPerMinute int, globalPerSecond float64, maxWait time.Duration, overrides map[string]int) *RateLimiter {
	rl := &RateLimiter{
		endpoints: make(map[string]*budget),
		global:    &budget{limit: globalPerMinute},
		perMinute: perMinute,
		overrides: overrides,
		pacer:     rate.NewLimiter(rate.Limit(globalPerSecond), 1),
		maxWait:   maxWait,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	rl.global.resetAt = rl.now().Add(budgetWindow)
	return rl
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *RateLimiter) budgetFor(endpoint string) *budget {
	b, ok := rl.endpoints[endpoint]
	if !ok {
		limit := rl.perMinute
		if v, ok := rl.overrides[endpoint]; ok && v > 0 {
			limit = v
		}
		b = &budget{limit: limit, resetAt: rl.now().Add(budgetWindow)}
		rl.endpoints[endpoint] = b
	}
	return b
}

// Admit blocks until both the endpoint and global budgets have capacity,
// increments both, then paces through the per-second bucket. If capacity
// cannot open within the wait ceiling it fails with RateLimitedError
// instead of blocking indefinitely. Budgets are re-checked on every wake
// since other waiters may have consumed the freed capacity.
func (rl *RateLimiter) Admit(ctx context.Context, endpoint string) error {
	deadline := rl.now().Add(rl.maxWait)
	for {
		rl.mu.Lock()
		now := rl.now()
		eb := rl.budgetFor(endpoint)
		eb.refresh(now)
		rl.global.refresh(now)
		if eb.count < eb.limit && rl.global.count < rl.global.limit {
			eb.count++
			rl.global.count++
			rl.mu.Unlock()
			return rl.pacer.Wait(ctx)
		}
		wait := eb.resetAt.Sub(now)
		if eb.count < eb.limit {
			wait = rl.global.resetAt.Sub(now)
		}
		rl.mu.Unlock()
		if wait <= 0 {
			wait = time.Millisecond
		}
		if now.Add(wait).After(deadline) {
			return &RateLimitedError{Endpoint: endpoint, RetryAfter: wait}
		}
		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Stats returns a snapshot of every tracked budget, keyed by endpoint,
// plus the "global" budget.
func (rl *RateLimiter) Stats() map[string]BudgetStat {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	out := make(map[string]BudgetStat, len(rl.endpoints)+1)
	for name, b := range rl.endpoints {
		out[name] = BudgetStat{Limit: b.limit, Used: b.count, ResetAt: b.resetAt}
	}
	out["global"] = BudgetStat{Limit: rl.global.limit, Used: rl.global.count, ResetAt: rl.global.resetAt}
	return out
}
