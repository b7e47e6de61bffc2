// Package rank turns raw reaction data from a user's recent casts into a
// ranked list of top interacting counterparts.
package rank

import (
	"math"
	"sort"
	"time"

	"castdex/internal/model"
)

// Tally counts one counterpart's interactions across a window of casts.
type Tally struct {
	Likes   int       `json:"likes"`
	Replies int       `json:"replies"`
	Recasts int       `json:"recasts"`
	Last    time.Time `json:"last"`
}

// Total is the raw interaction count, used for tie-breaking.
func (t Tally) Total() int { return t.Likes + t.Replies + t.Recasts }

// Weights is the scoring policy. Every weight is non-negative, which
// keeps the score monotonically increasing in interaction volume,
// counterpart quality, and follower count.
type Weights struct {
	Like          float64 `yaml:"like"`
	Reply         float64 `yaml:"reply"`
	Recast        float64 `yaml:"recast"`
	Quality       float64 `yaml:"quality"`
	Follower      float64 `yaml:"follower"`
	VerifiedBonus float64 `yaml:"verifiedBonus"`
}

// DefaultWeights is the balanced "top friends" policy.
func DefaultWeights() Weights {
	return Weights{Like: 1, Reply: 3, Recast: 2, Quality: 2, Follower: 0.5, VerifiedBonus: 1}
}

// ReplyGuyWeights ranks almost entirely by reply volume.
func ReplyGuyWeights() Weights {
	return Weights{Like: 0.1, Reply: 3, Recast: 0.25, Quality: 0.5}
}

// BuildTallies aggregates per-counterpart interaction counts over casts,
// excluding the subject's own reactions to their own casts. Likes carry
// no timestamp upstream, so the cast timestamp stands in.
func BuildTallies(casts []model.Cast, subject uint64) map[uint64]Tally {
	tallies := make(map[uint64]Tally)
	bump := func(fid uint64, ts time.Time, f func(*Tally)) {
		if fid == subject || fid == 0 {
			return
		}
		t := tallies[fid]
		f(&t)
		if ts.After(t.Last) {
			t.Last = ts
		}
		tallies[fid] = t
	}
	for _, c := range casts {
		for _, fid := range c.Likes {
			bump(fid, c.Timestamp, func(t *Tally) { t.Likes++ })
		}
		for _, r := range c.Replies {
			bump(r.FID, r.Timestamp, func(t *Tally) { t.Replies++ })
		}
		for _, r := range c.Recasts {
			bump(r.FID, r.Timestamp, func(t *Tally) { t.Recasts++ })
		}
	}
	return tallies
}

// RankedInteractor is one scored counterpart.
type RankedInteractor struct {
	User  model.User `json:"user"`
	Tally Tally      `json:"tally"`
	Score float64    `json:"score"`
}

// Score combines type-weighted interaction volume with the counterpart's
// own quality score, log-scaled reach, and a verification bonus.
func Score(u model.User, t Tally, w Weights) float64 {
	s := w.Like*float64(t.Likes) + w.Reply*float64(t.Replies) + w.Recast*float64(t.Recasts)
	s += w.Quality * u.Score
	s += w.Follower * math.Log1p(float64(u.FollowerCount))
	if u.Verified {
		s += w.VerifiedBonus
	}
	return s
}

// Rank scores each candidate with a nonzero tally and returns them in
// descending score order, truncated to limit. Ties break by raw
// interaction count, then by ascending fid for determinism.
func Rank(candidates []model.User, tallies map[uint64]Tally, w Weights, limit int) []RankedInteractor {
	out := make([]RankedInteractor, 0, len(candidates))
	for _, u := range candidates {
		t, ok := tallies[u.FID]
		if !ok || t.Total() == 0 {
			continue
		}
		out = append(out, RankedInteractor{User: u, Tally: t, Score: Score(u, t, w)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Tally.Total() != b.Tally.Total() {
			return a.Tally.Total() > b.Tally.Total()
		}
		return a.User.FID < b.User.FID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
