package session

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/jask/flowcanvas/internal/flow"
)

type scoredItem struct {
	index int
	exact bool
	score int
}

// Rank returns the indexes of items matching query, best first. Items whose
// label or id contains the query come first, ordered by match position;
// the rest are ordered by edit distance and dropped when the distance is
// as long as the query itself. An empty query matches everything in order.
func Rank(items []flow.Item, query string) []int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]int, len(items))
		for i := range items {
			out[i] = i
		}
		return out
	}
	limit := utf8.RuneCountInString(q)

	scored := make([]scoredItem, 0, len(items))
	for i, it := range items {
		label := strings.ToLower(it.Label)
		id := strings.ToLower(it.NodeID)

		if pos := substringPos(q, label, id); pos >= 0 {
			scored = append(scored, scoredItem{index: i, exact: true, score: pos})
			continue
		}
		d := min(levenshtein.ComputeDistance(q, label), levenshtein.ComputeDistance(q, id))
		if d >= limit {
			continue
		}
		scored = append(scored, scoredItem{index: i, score: d})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].exact != scored[j].exact {
			return scored[i].exact
		}
		return scored[i].score < scored[j].score
	})
	out := make([]int, len(scored))
	for i, s := range scored {
		out[i] = s.index
	}
	return out
}

func substringPos(q string, fields ...string) int {
	best := -1
	for _, f := range fields {
		if i := strings.Index(f, q); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}
