package model

import "time"

// User is an immutable snapshot of a social-graph account as reported by
// the upstream API. Refreshed by re-fetch, never mutated in place.
type User struct {
	FID            uint64 `json:"fid"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url"`
	Bio            string `json:"bio"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	CastCount      int    `json:"cast_count"`
	// Score is the provider's account-quality estimate in [0,1].
	Score        float64        `json:"score"`
	Verified     bool           `json:"verified"`
	Experimental map[string]any `json:"experimental,omitempty"`
}

// Reaction is a single reply or recast attributed to an actor.
type Reaction struct {
	FID       uint64    `json:"fid"`
	Timestamp time.Time `json:"timestamp"`
}

// Cast is a post with its reaction collections. The author is a weak
// reference by fid; resolve it through the indexer when needed.
type Cast struct {
	Hash      string     `json:"hash"`
	AuthorFID uint64     `json:"author_fid"`
	Timestamp time.Time  `json:"timestamp"`
	Likes     []uint64   `json:"likes,omitempty"`
	Replies   []Reaction `json:"replies,omitempty"`
	Recasts   []Reaction `json:"recasts,omitempty"`
}

// Interactions returns the total reaction count across all three kinds.
func (c Cast) Interactions() int {
	return len(c.Likes) + len(c.Replies) + len(c.Recasts)
}
