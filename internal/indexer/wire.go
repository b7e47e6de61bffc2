package indexer

import (
	"encoding/json"
	"time"

	"castdex/internal/model"
	"castdex/internal/util"
)

// Upstream JSON shapes. The client depends only on the users/casts
// arrays, the embedded reaction lists, and next.cursor pagination.

type wireUser struct {
	FID         uint64 `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
	Profile     struct {
		Bio struct {
			Text string `json:"text"`
		} `json:"bio"`
	} `json:"profile"`
	FollowerCount  int            `json:"follower_count"`
	FollowingCount int            `json:"following_count"`
	CastCount      int            `json:"cast_count"`
	Score          float64        `json:"score"`
	Verified       bool           `json:"verified"`
	Experimental   map[string]any `json:"experimental"`
}

func (w wireUser) toModel() model.User {
	return model.User{
		FID:            w.FID,
		Username:       w.Username,
		DisplayName:    w.DisplayName,
		AvatarURL:      w.PfpURL,
		Bio:            util.NormalizeWhitespace(w.Profile.Bio.Text),
		FollowerCount:  w.FollowerCount,
		FollowingCount: w.FollowingCount,
		CastCount:      w.CastCount,
		Score:          w.Score,
		Verified:       w.Verified,
		Experimental:   w.Experimental,
	}
}

type wireReactor struct {
	FID       uint64    `json:"fid"`
	Timestamp time.Time `json:"timestamp"`
}

type wireCast struct {
	Hash   string `json:"hash"`
	Author struct {
		FID uint64 `json:"fid"`
	} `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Reactions struct {
		Likes   []wireReactor `json:"likes"`
		Recasts []wireReactor `json:"recasts"`
	} `json:"reactions"`
	Replies []wireReactor `json:"replies"`
}

func (w wireCast) toModel() model.Cast {
	c := model.Cast{
		Hash:      w.Hash,
		AuthorFID: w.Author.FID,
		Timestamp: w.Timestamp,
	}
	for _, l := range w.Reactions.Likes {
		c.Likes = append(c.Likes, l.FID)
	}
	for _, r := range w.Replies {
		c.Replies = append(c.Replies, model.Reaction{FID: r.FID, Timestamp: r.Timestamp})
	}
	for _, r := range w.Reactions.Recasts {
		c.Recasts = append(c.Recasts, model.Reaction{FID: r.FID, Timestamp: r.Timestamp})
	}
	return c
}

type wireNext struct {
	Cursor string `json:"cursor"`
}

func decodeUsers(body []byte) ([]model.User, string, error) {
	var raw struct {
		Users []wireUser `json:"users"`
		Next  wireNext   `json:"next"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", err
	}
	out := make([]model.User, 0, len(raw.Users))
	for _, u := range raw.Users {
		out = append(out, u.toModel())
	}
	return out, raw.Next.Cursor, nil
}

func decodeCasts(body []byte) ([]model.Cast, string, error) {
	var raw struct {
		Casts []wireCast `json:"casts"`
		Next  wireNext   `json:"next"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", err
	}
	out := make([]model.Cast, 0, len(raw.Casts))
	for _, c := range raw.Casts {
		out = append(out, c.toModel())
	}
	return out, raw.Next.Cursor, nil
}
