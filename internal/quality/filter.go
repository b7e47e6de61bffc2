// Package quality classifies fetched user records against spam, hateful
// content, and low-quality-account heuristics. Everything here is a pure
// predicate over already-fetched records; no network I/O. These are
// conservative pattern heuristics, not a classifier: false negatives are
// expected and accepted.
package quality

import (
	"strings"

	"castdex/internal/model"
	"castdex/internal/util"
)

// Reason identifies which heuristic rejected a user.
type Reason string

const (
	ReasonLowScore     Reason = "low_score"
	ReasonHateful      Reason = "hateful"
	ReasonSpamUsername Reason = "spam_username"
	ReasonLowQuality   Reason = "low_quality"
)

// Options selects which heuristics apply.
type Options struct {
	MinUserScore     float64
	FilterHateful    bool
	FilterSpam       bool
	FilterLowQuality bool
}

// DefaultOptions returns the standard filter policy.
func DefaultOptions() Options {
	return Options{
		MinUserScore:     0.3,
		FilterHateful:    true,
		FilterSpam:       true,
		FilterLowQuality: true,
	}
}

// hatefulPatterns is a fixed denylist of hate-speech and
// violent-incitement markers matched against display name and bio.
var hatefulPatterns = []string{
	"kill all",
	"death to",
	"exterminate the",
	"subhuman",
	"ethnic cleansing",
	"lynch",
	"gas the",
}

// spamTokens flag usernames that begin or end with a known throwaway marker.
var spamTokens = []string{"bot", "fake", "scam", "test", "spam"}

const (
	digitsOnlyMin  = 10
	longAlnumRun   = 16
	lowFollowerMax = 10
	highFollowing  = 500
	followRatioMin = 0.1
)

type heuristic struct {
	reason  Reason
	enabled func(Options) bool
	match   func(model.User, Options) bool
}

// Heuristics run in order; the first match wins. Low-score rejection is
// unconditional, the rest are switchable via Options.
var heuristics = []heuristic{
	{
		reason:  ReasonLowScore,
		enabled: func(Options) bool { return true },
		match:   func(u model.User, o Options) bool { return u.Score < o.MinUserScore },
	},
	{
		reason:  ReasonHateful,
		enabled: func(o Options) bool { return o.FilterHateful },
		match:   func(u model.User, _ Options) bool { return HatefulText(u.DisplayName) || HatefulText(u.Bio) },
	},
	{
		reason:  ReasonSpamUsername,
		enabled: func(o Options) bool { return o.FilterSpam },
		match:   func(u model.User, _ Options) bool { return SpamUsername(u.Username) },
	},
	{
		reason:  ReasonLowQuality,
		enabled: func(o Options) bool { return o.FilterLowQuality },
		match:   lowQuality,
	},
}

// HatefulText reports whether text matches the denylist.
func HatefulText(text string) bool {
	return util.ContainsAnyCaseInsensitive(text, hatefulPatterns)
}

// SpamUsername applies the throwaway-account username heuristics.
func SpamUsername(username string) bool {
	name := strings.ToLower(strings.TrimSpace(username))
	if name == "" {
		return false
	}
	if util.IsDigitsOnly(name) && len(name) >= digitsOnlyMin {
		return true
	}
	if util.LongestAlnumRun(name) >= longAlnumRun {
		return true
	}
	for _, tok := range spamTokens {
		if strings.HasPrefix(name, tok) || strings.HasSuffix(name, tok) {
			return true
		}
	}
	return false
}

// lowQuality is a composite signal: weak score, a follow graph that
// looks like follow-farming, or hateful profile text.
func lowQuality(u model.User, o Options) bool {
	if u.Score < o.MinUserScore {
		return true
	}
	if u.FollowingCount > 0 {
		ratio := float64(u.FollowerCount) / float64(u.FollowingCount)
		if ratio < followRatioMin {
			return true
		}
	}
	if u.FollowerCount < lowFollowerMax && u.FollowingCount > highFollowing {
		return true
	}
	return HatefulText(u.DisplayName) || HatefulText(u.Bio)
}

// Classify returns the rejection reason for u under opts, if any.
func Classify(u model.User, opts Options) (Reason, bool) {
	for _, h := range heuristics {
		if h.enabled(opts) && h.match(u, opts) {
			return h.reason, true
		}
	}
	return "", false
}

// Filter removes users rejected by the enabled heuristics, preserving
// input order. Filtering an already-filtered list is a no-op.
func Filter(users []model.User, opts Options) []model.User {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if _, rejected := Classify(u, opts); !rejected {
			out = append(out, u)
		}
	}
	return out
}
