package search

import "testing"

func TestFuseRRFCombinesAndSorts(t *testing.T) {
	listA := []*scoredResult{
		{noteID: "a", title: "A", score: 0.9, searchType: "fts"},
		{noteID: "b", title: "B", score: 0.5, searchType: "fts"},
	}
	listB := []*scoredResult{
		{noteID: "b", title: "B", score: 0.95, searchType: "semantic"},
		{noteID: "c", title: "C", score: 0.8, searchType: "semantic"},
	}

	fused := FuseRRF(60, listA, listB)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(fused))
	}
	// b appears rank 2 in listA (1/62) and rank 1 in listB (1/61): highest combined score.
	if fused[0].noteID != "b" {
		t.Fatalf("expected b to rank first, got %s", fused[0].noteID)
	}
	for _, r := range fused {
		if r.searchType != "hybrid" {
			t.Errorf("expected hybrid label, got %s", r.searchType)
		}
	}
}

func TestFuseRRFSingleList(t *testing.T) {
	list := []*scoredResult{{noteID: "a", score: 1.0}}
	fused := FuseRRF(60, list)
	if len(fused) != 1 || fused[0].noteID != "a" {
		t.Fatalf("expected single passthrough result, got %+v", fused)
	}
}

func TestFuseRRFDefaultK(t *testing.T) {
	list := []*scoredResult{{noteID: "a", score: 1.0}}
	fused := FuseRRF(0, list)
	want := 1.0 / float64(DefaultRRFK+1)
	if fused[0].score != want {
		t.Fatalf("expected score %f with default k, got %f", want, fused[0].score)
	}
}
