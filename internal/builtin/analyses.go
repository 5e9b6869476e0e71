package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// activityInput is the shape of "mitre/activity"'s input key: a target's
// observed days since its last commit. A real plugin would compute this
// from repository history; this stand-in takes the number directly so
// tests and example policy files can drive it without a VCS.
type activityInput struct {
	DaysSinceLastCommit int `json:"days_since_last_commit"`
}

// activityDaysSinceLastCommit echoes its input's day count back out as the
// analysis output, for a policy expression like "(lte $ 30)" to judge.
func activityDaysSinceLastCommit(_ context.Context, key json.RawMessage) (json.RawMessage, error) {
	var in activityInput
	if err := json.Unmarshal(key, &in); err != nil {
		return nil, fmt.Errorf("decoding activity input: %w", err)
	}
	return json.Marshal(in.DaysSinceLastCommit)
}

// typoInput names a package alongside a list of well-known package names to
// compare it against.
type typoInput struct {
	Name      string   `json:"name"`
	Popular   []string `json:"popular"`
}

// typoDistanceToPopularNames reports whether Name is exactly one edit
// (Levenshtein distance 1, case-insensitive) away from one of the popular
// names; an exact case-insensitive match is not flagged. It is a trivial
// stand-in for a real Damerau-Levenshtein typosquat detector, outputting a
// bool for a policy like "(eq $ #f)".
func typoDistanceToPopularNames(_ context.Context, key json.RawMessage) (json.RawMessage, error) {
	var in typoInput
	if err := json.Unmarshal(key, &in); err != nil {
		return nil, fmt.Errorf("decoding typo input: %w", err)
	}
	suspicious := false
	for _, p := range in.Popular {
		if strings.EqualFold(p, in.Name) {
			continue
		}
		if levenshtein(strings.ToLower(p), strings.ToLower(in.Name)) == 1 {
			suspicious = true
			break
		}
	}
	return json.Marshal(suspicious)
}

// levenshtein computes classic edit distance; the typo stand-in only
// needs to flag names one edit away from a popular package.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			min := cur[j-1] + 1
			if prev[j]+1 < min {
				min = prev[j] + 1
			}
			if prev[j-1]+cost < min {
				min = prev[j-1] + cost
			}
			cur[j] = min
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}
