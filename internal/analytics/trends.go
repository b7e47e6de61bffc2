package analytics

import (
	"encoding/json"
	"sort"
	"time"

	"castdex/internal/rank"
	"castdex/internal/store/rankdb"
)

// TrendPoint summarizes one stored ranking run.
type TrendPoint struct {
	TS  time.Time
	Top []string // usernames in rank order
}

// Timeline decodes stored snapshots into trend points, oldest first.
// Snapshots with undecodable payloads are skipped.
func Timeline(snaps []rankdb.Snapshot) []TrendPoint {
	out := make([]TrendPoint, 0, len(snaps))
	for _, s := range snaps {
		var ranked []rank.RankedInteractor
		if err := json.Unmarshal([]byte(s.Payload), &ranked); err != nil {
			continue
		}
		p := TrendPoint{TS: s.TS}
		for _, r := range ranked {
			p.Top = append(p.Top, r.User.Username)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out
}

// Diff reports who entered and who left the top list between two runs.
func Diff(prev, next TrendPoint) (entered, left []string) {
	was := make(map[string]struct{}, len(prev.Top))
	for _, u := range prev.Top {
		was[u] = struct{}{}
	}
	is := make(map[string]struct{}, len(next.Top))
	for _, u := range next.Top {
		is[u] = struct{}{}
		if _, ok := was[u]; !ok {
			entered = append(entered, u)
		}
	}
	for _, u := range prev.Top {
		if _, ok := is[u]; !ok {
			left = append(left, u)
		}
	}
	return entered, left
}

// DailyBuckets groups trend points into per-day buckets.
func DailyBuckets(points []TrendPoint) map[time.Time][]TrendPoint {
	buckets := make(map[time.Time][]TrendPoint)
	for _, p := range points {
		key := time.Date(p.TS.Year(), p.TS.Month(), p.TS.Day(), 0, 0, 0, 0, time.UTC)
		buckets[key] = append(buckets[key], p)
	}
	return buckets
}

// SortedBucketKeys returns sorted day keys.
func SortedBucketKeys(m map[time.Time][]TrendPoint) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
