// Package search implements the hybrid retrieval pipeline: query preprocessing hands
// off to the FTS, trigram, and semantic engines; the judge decides whether semantic is
// worth running; reciprocal rank fusion merges whatever ran; an optional cross-encoder
// reranker reorders the top results.
package search

import "sort"

// DefaultRRFK is the reciprocal-rank-fusion constant used when the caller does not
// override it via configuration.
const DefaultRRFK = 60

// FuseRRF combines one or more ranked result lists by reciprocal rank fusion:
// fused_score(doc) = sum(1 / (k + rank_in_list_i(doc))) over every list doc appears in.
// Each input list must already be sorted by descending relevance (rank 1 = best).
// Duplicates across lists are merged into a single result, retaining the higher-ranking
// snippet (the snippet from whichever list ranked the note higher). Ties in fused score
// are broken by the best original engine-specific score. Every returned result is
// labeled "hybrid".
func FuseRRF(k int, lists ...[]*scoredResult) []*scoredResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	type accum struct {
		result    *scoredResult
		fused     float64
		bestRank  int
		bestScore float64
	}
	byID := make(map[string]*accum)
	var order []string

	for _, list := range lists {
		for i, r := range list {
			rank := i + 1
			a, ok := byID[r.noteID]
			if !ok {
				a = &accum{result: cloneResult(r), bestRank: rank, bestScore: r.score}
				byID[r.noteID] = a
				order = append(order, r.noteID)
			} else if rank < a.bestRank {
				// A higher (better) rank in a later list means a better snippet source.
				a.bestRank = rank
				a.result.snippet = r.snippet
				a.result.title = r.title
			}
			if r.score > a.bestScore {
				a.bestScore = r.score
			}
			a.fused += 1.0 / float64(k+rank)
		}
	}

	fused := make([]*scoredResult, 0, len(order))
	for _, id := range order {
		a := byID[id]
		a.result.score = a.fused
		a.result.searchType = "hybrid"
		fused = append(fused, a.result)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return byID[fused[i].noteID].bestScore > byID[fused[j].noteID].bestScore
	})

	return fused
}

func cloneResult(r *scoredResult) *scoredResult {
	cp := *r
	return &cp
}
