package search

import (
	"context"
	"sync"
	"time"

	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/embedding"
	"github.com/hyperjump/labnoted/internal/keyword"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/queryproc"
	"github.com/hyperjump/labnoted/internal/storage"
	"github.com/hyperjump/labnoted/internal/vector"
	"go.uber.org/zap"
)

// Engine runs the hybrid retrieval pipeline: query preprocessing, the FTS/trigram/
// semantic engines, the adaptive judge, reciprocal rank fusion, and optional reranking.
type Engine struct {
	storage  storage.Storage
	config   *config.SearchConfig
	logger   *zap.Logger
	fts      *ftsEngine
	trigram  *trigramEngine
	semantic *semanticEngine
	reranker *Reranker
}

// NewEngine creates a search engine over the given dependencies.
func NewEngine(
	st storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		storage:  st,
		config:   cfg,
		logger:   logger,
		fts:      &ftsEngine{index: keywordIndex, storage: st},
		trigram:  &trigramEngine{storage: st},
		semantic: &semanticEngine{embedder: embedder, index: vectorIndex, storage: st},
		reranker: NewReranker(cfg.RerankerAPIKey, cfg.RerankerModel),
	}
}

// Search runs the full pipeline for one query and returns the externally-visible response.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	analysis := queryproc.Analyze(query.Query)

	var (
		results []*scoredResult
		decision JudgeDecision
		err      error
	)

	switch query.Type {
	case models.SearchFTS:
		results, err = e.fts.search(ctx, analysis, query.Limit)
	case models.SearchTrigram:
		results, err = e.trigram.search(ctx, query.Query, query.Limit)
	case models.SearchSemantic:
		results, err = e.semantic.search(ctx, query.Query, query.Limit)
	default:
		results, decision, err = e.hybridSearch(ctx, query, analysis)
	}
	if err != nil {
		return nil, err
	}

	if e.reranker.Enabled() && len(results) > 0 {
		results = e.reranker.Rerank(ctx, query.Query, results, query.Limit)
	}
	if len(results) > query.Limit {
		results = results[:query.Limit]
	}

	response := &models.SearchResponse{
		Results:    toModels(results),
		Query:      query.Query,
		SearchType: query.Type,
		Total:      len(results),
	}

	e.recordEvent(query, decision, len(results), time.Since(start))

	return response, nil
}

// hybridSearch runs FTS, lets the judge decide whether semantic is worth its cost, falls
// back to trigram when FTS finds nothing, and fuses whatever ran with reciprocal rank
// fusion. Trigram and semantic retrieval, when both needed, run concurrently.
func (e *Engine) hybridSearch(ctx context.Context, query *models.SearchQuery, analysis queryproc.Analysis) ([]*scoredResult, JudgeDecision, error) {
	ftsResults, err := e.fts.search(ctx, analysis, query.Limit)
	if err != nil {
		return nil, JudgeDecision{}, err
	}

	decision := Judge(e.config, analysis, ftsResults)
	needsTrigram := len(ftsResults) == 0

	var (
		trigramResults  []*scoredResult
		semanticResults []*scoredResult
		wg              sync.WaitGroup
		trigramErr      error
		semanticErr     error
	)

	if needsTrigram {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trigramResults, trigramErr = e.trigram.search(ctx, query.Query, query.Limit)
		}()
	}
	if decision.RunSemantic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semanticResults, semanticErr = e.semantic.search(ctx, query.Query, query.Limit)
		}()
	}
	wg.Wait()

	if trigramErr != nil {
		return nil, decision, trigramErr
	}
	if semanticErr != nil {
		return nil, decision, semanticErr
	}

	lists := make([][]*scoredResult, 0, 3)
	if len(ftsResults) > 0 {
		lists = append(lists, ftsResults)
	}
	if len(trigramResults) > 0 {
		lists = append(lists, trigramResults)
	}
	if len(semanticResults) > 0 {
		lists = append(lists, semanticResults)
	}

	switch len(lists) {
	case 0:
		return nil, decision, nil
	case 1:
		return lists[0], decision, nil
	default:
		return FuseRRF(e.config.RRFK, lists...), decision, nil
	}
}

// recordEvent writes a fire-and-forget search telemetry record. Failures are logged,
// never propagated: search events are a side observation, not part of the request contract.
func (e *Engine) recordEvent(query *models.SearchQuery, decision JudgeDecision, resultCount int, elapsed time.Duration) {
	event := &models.SearchEvent{
		Query:            query.Query,
		SearchType:       string(query.Type),
		ResultCount:      resultCount,
		LatencyMS:        elapsed.Milliseconds(),
		JudgeRanSemantic: decision.RunSemantic,
	}
	go func() {
		if err := e.storage.RecordSearchEvent(context.Background(), event); err != nil && e.logger != nil {
			e.logger.Warn("record search event failed", zap.Error(err))
		}
	}()
}
