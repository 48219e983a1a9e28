package performance

import (
	"testing"
	"time"
)

func ranksByID(out []RankAssignment) map[string]int {
	m := map[string]int{}
	for _, a := range out {
		m[a.ID] = a.Rank
	}
	return m
}

func TestAssignRanksCompetition(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []RankEntry{
		{ID: "a", TotalScore: 900, CreatedAt: base},
		{ID: "b", TotalScore: 1200, CreatedAt: base},
		{ID: "c", TotalScore: 1200, CreatedAt: base.Add(time.Minute)},
		{ID: "d", TotalScore: 1000, CreatedAt: base},
		{ID: "e", TotalScore: 900, CreatedAt: base.Add(time.Minute)},
	}
	out := AssignRanks(entries)
	got := ranksByID(out)
	want := map[string]int{"b": 1, "c": 1, "d": 3, "a": 4, "e": 4}
	for id, rank := range want {
		if got[id] != rank {
			t.Fatalf("rank of %s = %d, want %d (all: %v)", id, got[id], rank, got)
		}
	}
	if out[0].ID != "b" || out[1].ID != "c" {
		t.Fatalf("ties should order by created_at, got %+v", out)
	}
	if entries[0].ID != "a" {
		t.Fatal("input slice must not be reordered")
	}
}

func TestAssignRanksTieBreakOrder(t *testing.T) {
	early := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	late := early.AddDate(0, 0, 2)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []RankEntry{
		{ID: "no-date", TotalScore: 500, CreatedAt: created},
		{ID: "late", TotalScore: 500, ReviewDate: &late, CreatedAt: created},
		{ID: "early", TotalScore: 500, ReviewDate: &early, CreatedAt: created},
		{ID: "z-same", TotalScore: 500, ReviewDate: &early, CreatedAt: created},
	}
	out := AssignRanks(entries)
	order := []string{"early", "z-same", "late", "no-date"}
	for i, id := range order {
		if out[i].ID != id || out[i].Rank != 1 {
			t.Fatalf("position %d: got %+v, want %s at rank 1", i, out[i], id)
		}
	}
}

func TestAssignRanksEmpty(t *testing.T) {
	if out := AssignRanks(nil); len(out) != 0 {
		t.Fatalf("expected no assignments, got %+v", out)
	}
}

func TestOrderedGroups(t *testing.T) {
	in := []Group{
		{Year: 2024, Week: 11, EvaluationType: "Manager"},
		{Year: 2023, Week: 52, EvaluationType: "Self"},
		{Year: 2024, Week: 10, EvaluationType: "Peer"},
		{Year: 2024, Week: 11, EvaluationType: "Manager"},
		{Year: 2024, Week: 10, EvaluationType: "HR"},
	}
	want := []Group{
		{Year: 2023, Week: 52, EvaluationType: "Self"},
		{Year: 2024, Week: 10, EvaluationType: "HR"},
		{Year: 2024, Week: 10, EvaluationType: "Peer"},
		{Year: 2024, Week: 11, EvaluationType: "Manager"},
	}
	got := orderedGroups(in)
	if len(got) != len(want) {
		t.Fatalf("expected %d groups, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("group %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if in[0].Week != 11 {
		t.Fatalf("input must not be reordered")
	}
}
