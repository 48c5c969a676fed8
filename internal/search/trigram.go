package search

import (
	"context"
	"sort"
	"strings"

	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/storage"
)

// trigramScanBatchSize bounds how many notes are pulled from storage per page while
// computing trigram similarity; the corpus is scanned in full regardless of search limit.
const trigramScanBatchSize = 500

// trigramEngine runs a character-3-gram similarity search over note title/body text.
// It is used when FTS returns nothing for a query that may contain typos or partial forms.
type trigramEngine struct {
	storage storage.Storage
}

// search scores every note by trigram similarity to the raw query and returns the top
// `limit` notes with non-zero similarity.
func (e *trigramEngine) search(ctx context.Context, rawQuery string, limit int) ([]*scoredResult, error) {
	queryTrigrams := trigrams(rawQuery)
	if len(queryTrigrams) == 0 {
		return nil, nil
	}

	var results []*scoredResult
	offset := 0
	for {
		notes, err := e.storage.ListNotes(ctx, offset, trigramScanBatchSize)
		if err != nil {
			return nil, err
		}
		if len(notes) == 0 {
			break
		}
		for _, n := range notes {
			haystack := n.Title + " " + n.BodyText
			sim := trigramSimilarity(queryTrigrams, trigrams(haystack))
			if sim <= 0 {
				continue
			}
			results = append(results, &scoredResult{
				noteID:     n.ExternalID,
				title:      n.Title,
				snippet:    Highlight(n.BodyText, 200),
				score:      sim,
				searchType: models.SearchTrigram,
			})
		}
		if len(notes) < trigramScanBatchSize {
			break
		}
		offset += trigramScanBatchSize
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// trigrams returns the set of lowercased, whitespace-collapsed 3-character substrings of s.
func trigrams(s string) map[string]bool {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	r := []rune(s)
	set := make(map[string]bool)
	for i := 0; i+3 <= len(r); i++ {
		set[string(r[i:i+3])] = true
	}
	return set
}

// trigramSimilarity returns the Dice coefficient between two trigram sets: 2*|A∩B| / (|A|+|B|).
func trigramSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
