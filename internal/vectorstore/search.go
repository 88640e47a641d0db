package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Search modes, used as metric labels and for error classification.
const (
	searchModeVector = "vector"
	searchModeText   = "text"
	searchModeHybrid = "hybrid"
)

const (
	// unrecognizedStageCode is what a deployment without Atlas Vector
	// Search answers to a $vectorSearch stage.
	unrecognizedStageCode = 40324
	// indexNotFoundCode is what the server answers to a $text query when
	// no text index exists.
	indexNotFoundCode = 27

	// candidateMultiplier sets numCandidates from the limit when the
	// caller does not; maxNumCandidates is the Atlas ceiling.
	candidateMultiplier = 10
	maxNumCandidates    = 10000
)

// SearchConfig holds index names and search tuning.
type SearchConfig struct {
	// VectorIndex is the Atlas Vector Search index name.
	// Default: "vector_index".
	VectorIndex string
	// TextIndex is the text index name. Default: "content_text".
	TextIndex string
	// DefaultLimit applies when a request does not set a limit. Default: 10.
	DefaultLimit int
	// MaxLimit caps per-request limits. Default: 100.
	MaxLimit int
	// VectorWeight and TextWeight blend hybrid scores when the request
	// leaves them unset. Defaults: 0.7 and 0.3.
	VectorWeight float64
	TextWeight   float64
}

// ApplyDefaults sets default values for unset fields.
func (c *SearchConfig) ApplyDefaults() {
	if c.VectorIndex == "" {
		c.VectorIndex = "vector_index"
	}
	if c.TextIndex == "" {
		c.TextIndex = IndexContentText
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 100
	}
	if c.VectorWeight == 0 && c.TextWeight == 0 {
		c.VectorWeight = 0.7
		c.TextWeight = 0.3
	}
}

// Validate validates the configuration.
func (c SearchConfig) Validate() error {
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("%w: default limit must be positive, got %d", ErrInvalidConfig, c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("%w: max limit %d below default limit %d", ErrInvalidConfig, c.MaxLimit, c.DefaultLimit)
	}
	if c.VectorWeight < 0 || c.TextWeight < 0 || c.VectorWeight+c.TextWeight <= 0 {
		return fmt.Errorf("%w: hybrid weights must be non-negative and sum above zero, got %.2f/%.2f",
			ErrInvalidConfig, c.VectorWeight, c.TextWeight)
	}
	return nil
}

// normalize clamps request options into configured bounds.
func (c SearchConfig) normalize(opts SearchOptions) SearchOptions {
	if opts.Limit <= 0 {
		opts.Limit = c.DefaultLimit
	}
	if opts.Limit > c.MaxLimit {
		opts.Limit = c.MaxLimit
	}
	if opts.NumCandidates <= 0 {
		opts.NumCandidates = opts.Limit * candidateMultiplier
	}
	if opts.NumCandidates < opts.Limit {
		opts.NumCandidates = opts.Limit
	}
	if opts.NumCandidates > maxNumCandidates {
		opts.NumCandidates = maxNumCandidates
	}
	return opts
}

// VectorSearch runs approximate nearest-neighbour search over document
// embeddings. The query vector must carry exactly EmbeddingDimensions
// entries. A deployment without the vector index answers with an error
// wrapping ErrSearchUnavailable, never with a silent empty result.
func (s *Store) VectorSearch(ctx context.Context, queryVector []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Store.VectorSearch")
	defer span.End()

	start := time.Now()
	if err := ValidateQueryVector(queryVector); err != nil {
		s.metrics.RecordSearch(searchModeVector, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	opts = s.cfg.Search.normalize(opts)
	span.SetAttributes(
		attribute.Int("limit", opts.Limit),
		attribute.Int("num_candidates", opts.NumCandidates),
	)

	key := GenerateKey(opVectorSearch, queryVector, opts)
	if hit, ok := s.cachedResults(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		span.SetStatus(codes.Ok, "cache hit")
		return hit, nil
	}

	results, err := s.runSearch(ctx, searchModeVector, vectorSearchPipeline(s.cfg.Search.VectorIndex, queryVector, opts))
	s.metrics.RecordSearch(searchModeVector, err)
	s.metrics.RecordOperation(opVectorSearch, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.counters.vectorSearches.Add(1)
	s.cache.Set(key, results, 0)
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "searched")
	return results, nil
}

// TextSearch runs keyword search over document content through the text
// index. A deployment without the index answers with an error wrapping
// ErrSearchUnavailable, never with a silent empty result.
func (s *Store) TextSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Store.TextSearch")
	defer span.End()

	start := time.Now()
	if strings.TrimSpace(query) == "" {
		err := fmt.Errorf("%w: search query cannot be empty", ErrValidation)
		s.metrics.RecordSearch(searchModeText, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	opts = s.cfg.Search.normalize(opts)
	span.SetAttributes(attribute.Int("limit", opts.Limit))

	key := GenerateKey(opTextSearch, query, opts)
	if hit, ok := s.cachedResults(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		span.SetStatus(codes.Ok, "cache hit")
		return hit, nil
	}

	results, err := s.runSearch(ctx, searchModeText, textSearchPipeline(query, opts))
	s.metrics.RecordSearch(searchModeText, err)
	s.metrics.RecordOperation(opTextSearch, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.counters.textSearches.Add(1)
	s.cache.Set(key, results, 0)
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "searched")
	return results, nil
}

// HybridSearch runs vector and text search concurrently and blends the two
// rankings by weight. Both branches must be able to run: if either index is
// missing the call fails with that branch's ErrSearchUnavailable instead of
// quietly returning half the evidence.
func (s *Store) HybridSearch(ctx context.Context, queryVector []float32, query string, opts HybridOptions) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Store.HybridSearch")
	defer span.End()

	start := time.Now()
	if err := ValidateQueryVector(queryVector); err != nil {
		s.metrics.RecordSearch(searchModeHybrid, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		err := fmt.Errorf("%w: search query cannot be empty", ErrValidation)
		s.metrics.RecordSearch(searchModeHybrid, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	opts.SearchOptions = s.cfg.Search.normalize(opts.SearchOptions)
	if opts.VectorWeight == 0 && opts.TextWeight == 0 {
		opts.VectorWeight = s.cfg.Search.VectorWeight
		opts.TextWeight = s.cfg.Search.TextWeight
	}
	if opts.VectorWeight < 0 || opts.TextWeight < 0 || opts.VectorWeight+opts.TextWeight <= 0 {
		err := fmt.Errorf("%w: hybrid weights must be non-negative and sum above zero, got %.2f/%.2f",
			ErrValidation, opts.VectorWeight, opts.TextWeight)
		s.metrics.RecordSearch(searchModeHybrid, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("limit", opts.Limit),
		attribute.Float64("vector_weight", opts.VectorWeight),
		attribute.Float64("text_weight", opts.TextWeight),
	)

	key := GenerateKey(opHybridSearch, hybridKeyParams{Vector: queryVector, Query: query}, opts)
	if hit, ok := s.cachedResults(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		span.SetStatus(codes.Ok, "cache hit")
		return hit, nil
	}

	var vectorResults, textResults []SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.runSearch(gctx, searchModeVector, vectorSearchPipeline(s.cfg.Search.VectorIndex, queryVector, opts.SearchOptions))
		if err != nil {
			return err
		}
		vectorResults = r
		return nil
	})
	g.Go(func() error {
		r, err := s.runSearch(gctx, searchModeText, textSearchPipeline(query, opts.SearchOptions))
		if err != nil {
			return err
		}
		textResults = r
		return nil
	})
	err := g.Wait()
	s.metrics.RecordSearch(searchModeHybrid, err)
	s.metrics.RecordOperation(opHybridSearch, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := mergeHybrid(vectorResults, textResults, opts.VectorWeight, opts.TextWeight, opts.Limit)
	s.counters.hybridSearches.Add(1)
	s.cache.Set(key, results, 0)
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "searched")
	return results, nil
}

// hybridKeyParams pins the cache-key layout for hybrid queries.
type hybridKeyParams struct {
	Vector []float32 `json:"vector"`
	Query  string    `json:"query"`
}

// runSearch executes a search pipeline behind the breaker gate and shapes
// server refusals into the unavailability sentinels.
func (s *Store) runSearch(ctx context.Context, mode string, pipeline mongo.Pipeline) ([]SearchResult, error) {
	var results []SearchResult
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		cursor, err := coll.Aggregate(ctx, pipeline)
		if err != nil {
			return s.classifySearchError(mode, err)
		}
		if err := cursor.All(ctx, &results); err != nil {
			return s.classifySearchError(mode, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// classifySearchError recognizes the server's "this search cannot run here"
// answers and maps them onto the unavailability sentinels, naming the index
// the deployment is missing. Anything else passes through untouched.
func (s *Store) classifySearchError(mode string, err error) error {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	switch mode {
	case searchModeVector:
		if cmdErr.Code == unrecognizedStageCode ||
			strings.Contains(cmdErr.Message, "Unrecognized pipeline stage") ||
			strings.Contains(cmdErr.Message, "$vectorSearch") {
			return fmt.Errorf("%w (index %q): %s", ErrVectorSearchUnavailable, s.cfg.Search.VectorIndex, cmdErr.Message)
		}
	case searchModeText:
		if cmdErr.Code == indexNotFoundCode ||
			strings.Contains(cmdErr.Message, "text index required") {
			return fmt.Errorf("%w (index %q): %s", ErrTextSearchUnavailable, s.cfg.Search.TextIndex, cmdErr.Message)
		}
	}
	return err
}

// cachedResults looks up a search result set by key.
func (s *Store) cachedResults(key string) ([]SearchResult, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	results, ok := v.([]SearchResult)
	return results, ok
}

// vectorSearchPipeline builds the $vectorSearch aggregation. The score is
// surfaced through $meta and the raw embedding is stripped from results.
func vectorSearchPipeline(index string, queryVector []float32, opts SearchOptions) mongo.Pipeline {
	stage := bson.D{
		{Key: "index", Value: index},
		{Key: "path", Value: "embedding"},
		{Key: "queryVector", Value: queryVector},
		{Key: "numCandidates", Value: opts.NumCandidates},
		{Key: "limit", Value: opts.Limit},
	}
	if filter := buildVectorFilter(opts.Filter); len(filter) > 0 {
		stage = append(stage, bson.E{Key: "filter", Value: filter})
	}
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: stage}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
		{{Key: "$unset", Value: "embedding"}},
	}
}

// textSearchPipeline builds the $text aggregation. $match with $text must be
// the first stage; results are ranked by relevance score.
func textSearchPipeline(query string, opts SearchOptions) mongo.Pipeline {
	match := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: query}}}}
	match = append(match, buildSearchFilter(opts.Filter)...)
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "score", Value: -1}}}},
		{{Key: "$limit", Value: opts.Limit}},
		{{Key: "$unset", Value: "embedding"}},
	}
}

// buildSearchFilter translates a SearchFilter into match conditions for
// regular queries.
func buildSearchFilter(f SearchFilter) bson.D {
	var match bson.D
	if f.SiteID != "" {
		match = append(match, bson.E{Key: "siteId", Value: f.SiteID})
	}
	if f.TeamID != "" {
		match = append(match, bson.E{Key: "teamId", Value: f.TeamID})
	}
	switch len(f.SourceTypes) {
	case 0:
	case 1:
		match = append(match, bson.E{Key: "sourceType", Value: f.SourceTypes[0]})
	default:
		match = append(match, bson.E{Key: "sourceType", Value: bson.D{{Key: "$in", Value: f.SourceTypes}}})
	}
	if f.Status != "" {
		match = append(match, bson.E{Key: "status", Value: f.Status})
	}
	if f.Timeframe != "" {
		match = append(match, bson.E{Key: "metadata.timeframe", Value: f.Timeframe})
	}
	return match
}

// buildVectorFilter translates a SearchFilter into the $vectorSearch filter
// syntax, which wants explicit comparison operators on indexed filter paths.
func buildVectorFilter(f SearchFilter) bson.D {
	var filter bson.D
	eq := func(key string, value any) {
		filter = append(filter, bson.E{Key: key, Value: bson.D{{Key: "$eq", Value: value}}})
	}
	if f.SiteID != "" {
		eq("siteId", f.SiteID)
	}
	if f.TeamID != "" {
		eq("teamId", f.TeamID)
	}
	switch len(f.SourceTypes) {
	case 0:
	case 1:
		eq("sourceType", f.SourceTypes[0])
	default:
		filter = append(filter, bson.E{Key: "sourceType", Value: bson.D{{Key: "$in", Value: f.SourceTypes}}})
	}
	if f.Status != "" {
		eq("status", f.Status)
	}
	if f.Timeframe != "" {
		eq("metadata.timeframe", f.Timeframe)
	}
	return filter
}

// mergeHybrid blends two ranked lists into one. Scores are min-max
// normalized per list so cosine similarity and text relevance become
// comparable, then weighted; a document found by both modes sums its
// contributions. Ties break on documentId so the ordering is stable.
func mergeHybrid(vector, text []SearchResult, vectorWeight, textWeight float64, limit int) []SearchResult {
	type merged struct {
		result SearchResult
		score  float64
	}
	byID := make(map[string]*merged, len(vector)+len(text))

	accumulate := func(list []SearchResult, weight float64) {
		if len(list) == 0 || weight <= 0 {
			return
		}
		lo, hi := list[0].Score, list[0].Score
		for _, r := range list[1:] {
			if r.Score < lo {
				lo = r.Score
			}
			if r.Score > hi {
				hi = r.Score
			}
		}
		span := hi - lo
		for _, r := range list {
			norm := 1.0
			if span > 0 {
				norm = (r.Score - lo) / span
			}
			m, ok := byID[r.DocumentID]
			if !ok {
				m = &merged{result: r}
				byID[r.DocumentID] = m
			}
			m.score += weight * norm
		}
	}
	accumulate(vector, vectorWeight)
	accumulate(text, textWeight)

	out := make([]SearchResult, 0, len(byID))
	for _, m := range byID {
		m.result.Score = m.score
		out = append(out, m.result)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
