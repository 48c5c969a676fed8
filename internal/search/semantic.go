package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/labnoted/internal/embedding"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/storage"
	"github.com/hyperjump/labnoted/internal/vector"
)

// semanticEngine embeds the query and performs nearest-neighbor search over the
// embedding table by cosine distance, grouping matches by note (one top chunk per note).
type semanticEngine struct {
	embedder embedding.Embedder
	index    vector.VectorIndex
	storage  storage.Storage
}

// candidateMultiplier over-fetches vector hits before grouping by note, since several
// chunks from the same note may appear among the nearest neighbors.
const candidateMultiplier = 4

func (e *semanticEngine) search(ctx context.Context, rawQuery string, limit int) ([]*scoredResult, error) {
	if strings.TrimSpace(rawQuery) == "" {
		return nil, nil
	}
	qVec, err := e.embedder.Embed(ctx, rawQuery)
	if err != nil {
		return nil, err
	}

	hits, err := e.index.Search(ctx, qVec, limit*candidateMultiplier)
	if err != nil {
		return nil, err
	}

	type best struct {
		score      float64
		chunkIndex int
	}
	bestByHandle := make(map[int64]best)
	var order []int64
	for _, h := range hits {
		handle, chunkIdx, ok := parseVectorID(h.ID)
		if !ok {
			continue
		}
		if prev, exists := bestByHandle[handle]; !exists || h.Score > prev.score {
			if !exists {
				order = append(order, handle)
			}
			bestByHandle[handle] = best{score: h.Score, chunkIndex: chunkIdx}
		}
	}

	results := make([]*scoredResult, 0, len(order))
	for _, handle := range order {
		note, err := e.storage.GetNoteByHandle(ctx, handle)
		if err != nil || note == nil {
			continue
		}
		b := bestByHandle[handle]
		snippet := note.BodyText
		if embs, err := e.storage.GetEmbeddingsByNote(ctx, handle); err == nil {
			for _, emb := range embs {
				if emb.ChunkIndex == b.chunkIndex {
					snippet = emb.ChunkText
					break
				}
			}
		}
		results = append(results, &scoredResult{
			noteID:     note.ExternalID,
			title:      note.Title,
			snippet:    Highlight(snippet, 200),
			score:      b.score,
			searchType: models.SearchSemantic,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// parseVectorID parses the indexer's "<noteHandle>:<chunkIndex>" vector ID format.
func parseVectorID(id string) (handle int64, chunkIndex int, ok bool) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	c, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return h, c, true
}
