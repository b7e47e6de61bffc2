package rank

import (
	"testing"
	"time"

	"castdex/internal/model"
)

func tallyCasts() []model.Cast {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []model.Cast{
		{
			Hash:      "0xa",
			AuthorFID: 1,
			Timestamp: ts,
			Likes:     []uint64{2, 3, 1}, // includes a self-like
			Replies:   []model.Reaction{{FID: 4, Timestamp: ts.Add(time.Minute)}},
			Recasts:   []model.Reaction{{FID: 2, Timestamp: ts.Add(2 * time.Minute)}},
		},
		{
			Hash:      "0xb",
			AuthorFID: 1,
			Timestamp: ts.Add(time.Hour),
			Likes:     []uint64{2},
			Replies:   []model.Reaction{{FID: 4, Timestamp: ts.Add(90 * time.Minute)}},
		},
	}
}

func TestBuildTalliesExcludesSelf(t *testing.T) {
	tallies := BuildTallies(tallyCasts(), 1)
	if _, ok := tallies[1]; ok {
		t.Fatalf("self-interactions must be excluded")
	}
	if got := tallies[2]; got.Likes != 2 || got.Recasts != 1 {
		t.Fatalf("tally for 2 = %+v", got)
	}
	if got := tallies[4]; got.Replies != 2 {
		t.Fatalf("tally for 4 = %+v", got)
	}
}

func TestBuildTalliesTracksLastInteraction(t *testing.T) {
	tallies := BuildTallies(tallyCasts(), 1)
	want := time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC)
	if !tallies[4].Last.Equal(want) {
		t.Fatalf("last = %s, want %s", tallies[4].Last, want)
	}
}

func TestScoreMonotonicInInteractions(t *testing.T) {
	u := model.User{FID: 2, Score: 0.8, FollowerCount: 100}
	w := DefaultWeights()
	a := Score(u, Tally{Likes: 5, Replies: 2}, w)
	b := Score(u, Tally{Likes: 4, Replies: 2}, w)
	if a <= b {
		t.Fatalf("more interactions must score strictly higher: %f <= %f", a, b)
	}
}

func TestScoreMonotonicInQualityAndReach(t *testing.T) {
	w := DefaultWeights()
	tally := Tally{Likes: 3}
	lo := Score(model.User{Score: 0.4, FollowerCount: 100}, tally, w)
	hi := Score(model.User{Score: 0.9, FollowerCount: 100}, tally, w)
	if hi <= lo {
		t.Fatalf("higher quality must not score lower")
	}
	small := Score(model.User{Score: 0.5, FollowerCount: 10}, tally, w)
	big := Score(model.User{Score: 0.5, FollowerCount: 10000}, tally, w)
	if big <= small {
		t.Fatalf("more followers must not score lower")
	}
	plain := Score(model.User{Score: 0.5}, tally, w)
	verified := Score(model.User{Score: 0.5, Verified: true}, tally, w)
	if verified <= plain {
		t.Fatalf("verification bonus missing")
	}
}

func TestRankOrdersAndTruncates(t *testing.T) {
	users := []model.User{
		{FID: 2, Username: "two", Score: 0.8},
		{FID: 3, Username: "three", Score: 0.8},
		{FID: 4, Username: "four", Score: 0.8},
	}
	tallies := map[uint64]Tally{
		2: {Replies: 5},
		3: {Replies: 1},
		4: {Replies: 3},
	}
	got := Rank(users, tallies, DefaultWeights(), 2)
	if len(got) != 2 || got[0].User.FID != 2 || got[1].User.FID != 4 {
		t.Fatalf("rank order = %+v", got)
	}
}

func TestRankTieBreaksByFID(t *testing.T) {
	users := []model.User{
		{FID: 9, Score: 0.5},
		{FID: 3, Score: 0.5},
	}
	tallies := map[uint64]Tally{
		9: {Likes: 2},
		3: {Likes: 2},
	}
	got := Rank(users, tallies, DefaultWeights(), 0)
	if got[0].User.FID != 3 || got[1].User.FID != 9 {
		t.Fatalf("ties must break by ascending fid: %+v", got)
	}
}

func TestRankSkipsCandidatesWithoutTallies(t *testing.T) {
	users := []model.User{{FID: 2}, {FID: 8}}
	tallies := map[uint64]Tally{2: {Likes: 1}}
	got := Rank(users, tallies, DefaultWeights(), 10)
	if len(got) != 1 || got[0].User.FID != 2 {
		t.Fatalf("candidates without interactions must be skipped: %+v", got)
	}
}

func TestReplyGuyWeightsFavorRepliers(t *testing.T) {
	users := []model.User{
		{FID: 2, Username: "liker", Score: 0.9, FollowerCount: 5000, Verified: true},
		{FID: 3, Username: "replier", Score: 0.4, FollowerCount: 10},
	}
	tallies := map[uint64]Tally{
		2: {Likes: 10},
		3: {Replies: 4},
	}
	got := Rank(users, tallies, ReplyGuyWeights(), 0)
	if got[0].User.FID != 3 {
		t.Fatalf("reply-guy ranking must favor the replier: %+v", got)
	}
}
