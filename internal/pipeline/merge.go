package pipeline

import (
	"poflow/internal"
	"poflow/internal/session"
)

type MergeOptions struct {
	// AutoSelect picks the best candidate for items with no selection when
	// its score reaches AutoSelectMinScore.
	AutoSelect         bool
	AutoSelectMinScore float64
}

// MatchQueries returns the distinct non-empty descriptions in item order.
func MatchQueries(items []internal.LineItem) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(items))
	for _, item := range items {
		desc := session.Description(item)
		if desc == "" {
			continue
		}
		if _, ok := seen[desc]; ok {
			continue
		}
		seen[desc] = struct{}{}
		out = append(out, desc)
	}
	return out
}

// MergeMatches attaches candidates to items by description. Every item ends
// up with a non-nil candidate list; items sharing a description get equal
// lists, and items with no description get an empty one.
func MergeMatches(items []internal.LineItem, results map[string][]internal.Match, opts MergeOptions) []internal.LineItem {
	out := make([]internal.LineItem, 0, len(items))
	for _, item := range items {
		desc := session.Description(item)
		var found []internal.Match
		if desc != "" {
			found = results[desc]
		}
		item.Matches = append(make([]internal.Match, 0, len(found)), found...)

		if opts.AutoSelect && item.SelectedMatch == "" {
			if best, ok := bestMatch(item.Matches); ok && best.Score >= opts.AutoSelectMinScore {
				item.SelectedMatch = best.Match
			}
		}
		out = append(out, item)
	}
	return out
}

func bestMatch(matches []internal.Match) (internal.Match, bool) {
	if len(matches) == 0 {
		return internal.Match{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Score > best.Score {
			best = m
		}
	}
	return best, true
}
