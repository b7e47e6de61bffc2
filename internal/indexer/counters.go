package indexer

import (
	"sync"
	"time"
)

// PerfStats is a read-only snapshot of the performance counters.
type PerfStats struct {
	Requests       uint64        `json:"requests"`
	UpstreamCalls  uint64        `json:"upstreamCalls"`
	CacheHits      uint64        `json:"cacheHits"`
	Retries        uint64        `json:"retries"`
	Errors         uint64        `json:"errors"`
	AverageLatency time.Duration `json:"averageLatency"`
	Since          time.Time     `json:"since"`
}

// perfCounters is the process-wide aggregate request state. Constructed
// once with the Indexer and exposed only as snapshots.
type perfCounters struct {
	mu            sync.Mutex
	requests      uint64
	upstreamCalls uint64
	cacheHits     uint64
	retries       uint64
	errors        uint64
	totalLatency  time.Duration
	samples       uint64
	since         time.Time
}

func newPerfCounters() *perfCounters {
	return &perfCounters{since: time.Now()}
}

// request records one logical request (counted once regardless of retries).
func (p *perfCounters) request() {
	p.mu.Lock()
	p.requests++
	p.mu.Unlock()
}

func (p *perfCounters) cacheHit() {
	p.mu.Lock()
	p.cacheHits++
	p.mu.Unlock()
}

func (p *perfCounters) retry() {
	p.mu.Lock()
	p.retries++
	p.mu.Unlock()
}

func (p *perfCounters) failure() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// attempt records one physical network attempt and its latency.
func (p *perfCounters) attempt(d time.Duration) {
	p.mu.Lock()
	p.upstreamCalls++
	p.totalLatency += d
	p.samples++
	p.mu.Unlock()
}

func (p *perfCounters) snapshot() PerfStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PerfStats{
		Requests:      p.requests,
		UpstreamCalls: p.upstreamCalls,
		CacheHits:     p.cacheHits,
		Retries:       p.retries,
		Errors:        p.errors,
		Since:         p.since,
	}
	if p.samples > 0 {
		s.AverageLatency = p.totalLatency / time.Duration(p.samples)
	}
	return s
}

func (p *perfCounters) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests, p.upstreamCalls, p.cacheHits, p.retries, p.errors = 0, 0, 0, 0, 0
	p.totalLatency, p.samples = 0, 0
	p.since = time.Now()
}
