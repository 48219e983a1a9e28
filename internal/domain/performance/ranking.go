package performance

import (
	"cmp"
	"slices"
	"time"
)

// Group is the set of evaluations ranked against each other.
type Group struct {
	Year           int    `json:"year"`
	Week           int    `json:"week_number"`
	EvaluationType string `json:"evaluation_type"`
}

type RankEntry struct {
	ID           string
	TotalScore   int
	AverageScore float64
	ReviewDate   *time.Time
	CreatedAt    time.Time
}

type RankAssignment struct {
	ID   string
	Rank int
}

// AssignRanks orders entries best first and applies standard competition
// ranking: equal totals share a rank and the following rank skips ahead
// (1, 2, 2, 4). The remaining sort keys only make the order deterministic.
func AssignRanks(entries []RankEntry) []RankAssignment {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, compareEntries)

	out := make([]RankAssignment, len(sorted))
	for i, e := range sorted {
		rank := i + 1
		if i > 0 && e.TotalScore == sorted[i-1].TotalScore {
			rank = out[i-1].Rank
		}
		out[i] = RankAssignment{ID: e.ID, Rank: rank}
	}
	return out
}

func compareEntries(a, b RankEntry) int {
	if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
		return c
	}
	if c := cmp.Compare(b.AverageScore, a.AverageScore); c != 0 {
		return c
	}
	switch {
	case a.ReviewDate != nil && b.ReviewDate == nil:
		return -1
	case a.ReviewDate == nil && b.ReviewDate != nil:
		return 1
	case a.ReviewDate != nil && b.ReviewDate != nil:
		if c := a.ReviewDate.Compare(*b.ReviewDate); c != 0 {
			return c
		}
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// orderedGroups drops duplicates and sorts by (year, week, type), the order
// in which writers take group locks.
func orderedGroups(groups []Group) []Group {
	out := slices.Clone(groups)
	slices.SortFunc(out, func(a, b Group) int {
		return cmp.Or(
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.Week, b.Week),
			cmp.Compare(a.EvaluationType, b.EvaluationType),
		)
	})
	return slices.Compact(out)
}
