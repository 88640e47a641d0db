package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// docElem fetches a key from a bson.D, mirroring how the server would read
// the stage documents the pipeline builders produce.
func docElem(t *testing.T, d bson.D, key string) any {
	t.Helper()
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	t.Fatalf("key %q not found in %v", key, d)
	return nil
}

func TestSearchConfig_Defaults(t *testing.T) {
	var cfg SearchConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "vector_index", cfg.VectorIndex)
	assert.Equal(t, "content_text", cfg.TextIndex)
	assert.Equal(t, 10, cfg.DefaultLimit)
	assert.Equal(t, 100, cfg.MaxLimit)
	assert.Equal(t, 0.7, cfg.VectorWeight)
	assert.Equal(t, 0.3, cfg.TextWeight)
}

func TestSearchConfig_Validate(t *testing.T) {
	cfg := SearchConfig{}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxLimit = 5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.VectorWeight = -0.2
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestSearchConfig_Normalize(t *testing.T) {
	cfg := SearchConfig{}
	cfg.ApplyDefaults()

	testCases := []struct {
		name           string
		in             SearchOptions
		wantLimit      int
		wantCandidates int
	}{
		{name: "zero_takes_defaults", in: SearchOptions{}, wantLimit: 10, wantCandidates: 100},
		{name: "limit_respected", in: SearchOptions{Limit: 25}, wantLimit: 25, wantCandidates: 250},
		{name: "limit_capped", in: SearchOptions{Limit: 5000}, wantLimit: 100, wantCandidates: 1000},
		{name: "candidates_respected", in: SearchOptions{Limit: 10, NumCandidates: 500}, wantLimit: 10, wantCandidates: 500},
		{name: "candidates_at_least_limit", in: SearchOptions{Limit: 50, NumCandidates: 7}, wantLimit: 50, wantCandidates: 50},
		{name: "candidates_ceiling", in: SearchOptions{Limit: 10, NumCandidates: 50000}, wantLimit: 10, wantCandidates: maxNumCandidates},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := cfg.normalize(tc.in)
			assert.Equal(t, tc.wantLimit, got.Limit)
			assert.Equal(t, tc.wantCandidates, got.NumCandidates)
		})
	}
}

func TestVectorSearchPipeline(t *testing.T) {
	vector := make([]float32, EmbeddingDimensions)
	opts := SearchOptions{Limit: 10, NumCandidates: 100}

	pipeline := vectorSearchPipeline("vector_index", vector, opts)
	require.Len(t, pipeline, 3)

	stage, ok := docElem(t, pipeline[0], "$vectorSearch").(bson.D)
	require.True(t, ok)
	assert.Equal(t, "vector_index", docElem(t, stage, "index"))
	assert.Equal(t, "embedding", docElem(t, stage, "path"))
	assert.Equal(t, 100, docElem(t, stage, "numCandidates"))
	assert.Equal(t, 10, docElem(t, stage, "limit"))

	// No filter requested: the stage must not carry an empty filter clause.
	for _, e := range stage {
		assert.NotEqual(t, "filter", e.Key)
	}

	// Score surfaces via $meta, raw embeddings never leave the store.
	addFields, ok := docElem(t, pipeline[1], "$addFields").(bson.D)
	require.True(t, ok)
	score, ok := docElem(t, addFields, "score").(bson.D)
	require.True(t, ok)
	assert.Equal(t, "vectorSearchScore", docElem(t, score, "$meta"))
	assert.Equal(t, "embedding", docElem(t, pipeline[2], "$unset"))
}

func TestVectorSearchPipeline_WithFilter(t *testing.T) {
	opts := SearchOptions{
		Limit:         5,
		NumCandidates: 50,
		Filter: SearchFilter{
			SiteID:      "site-1",
			SourceTypes: []SourceType{SourceAnalytics},
		},
	}

	pipeline := vectorSearchPipeline("vector_index", make([]float32, EmbeddingDimensions), opts)
	stage := docElem(t, pipeline[0], "$vectorSearch").(bson.D)
	filter, ok := docElem(t, stage, "filter").(bson.D)
	require.True(t, ok)

	siteClause, ok := docElem(t, filter, "siteId").(bson.D)
	require.True(t, ok)
	assert.Equal(t, "site-1", docElem(t, siteClause, "$eq"),
		"vector filters use explicit comparison operators")
}

func TestTextSearchPipeline(t *testing.T) {
	opts := SearchOptions{Limit: 7, Filter: SearchFilter{TeamID: "team-9"}}
	pipeline := textSearchPipeline("conversion funnel", opts)
	require.Len(t, pipeline, 5)

	// $match with $text must be the first stage; tenant filters ride along.
	match, ok := docElem(t, pipeline[0], "$match").(bson.D)
	require.True(t, ok)
	textClause, ok := docElem(t, match, "$text").(bson.D)
	require.True(t, ok)
	assert.Equal(t, "conversion funnel", docElem(t, textClause, "$search"))
	assert.Equal(t, "team-9", docElem(t, match, "teamId"))

	assert.Equal(t, 7, docElem(t, pipeline[3], "$limit"))
	assert.Equal(t, "embedding", docElem(t, pipeline[4], "$unset"))
}

func TestBuildSearchFilter(t *testing.T) {
	assert.Empty(t, buildSearchFilter(SearchFilter{}), "zero filter matches everything")

	filter := buildSearchFilter(SearchFilter{
		SiteID:      "site-1",
		TeamID:      "team-1",
		SourceTypes: []SourceType{SourceAnalytics, SourceCampaign},
		Status:      StatusActive,
		Timeframe:   "30d",
	})

	assert.Equal(t, "site-1", docElem(t, filter, "siteId"))
	assert.Equal(t, "team-1", docElem(t, filter, "teamId"))
	in, ok := docElem(t, filter, "sourceType").(bson.D)
	require.True(t, ok)
	assert.Equal(t, []SourceType{SourceAnalytics, SourceCampaign}, docElem(t, in, "$in"))
	assert.Equal(t, StatusActive, docElem(t, filter, "status"))
	assert.Equal(t, "30d", docElem(t, filter, "metadata.timeframe"))

	// A single source type collapses to plain equality.
	single := buildSearchFilter(SearchFilter{SourceTypes: []SourceType{SourceSession}})
	assert.Equal(t, SourceSession, docElem(t, single, "sourceType"))
}

func TestClassifySearchError(t *testing.T) {
	s := newTestStore(t)

	t.Run("vector_unrecognized_stage", func(t *testing.T) {
		err := s.classifySearchError(searchModeVector, mongo.CommandError{
			Code:    unrecognizedStageCode,
			Message: "Unrecognized pipeline stage name: '$vectorSearch'",
		})
		require.ErrorIs(t, err, ErrSearchUnavailable)
		require.ErrorIs(t, err, ErrVectorSearchUnavailable)
		assert.Contains(t, err.Error(), "vector_index", "the error must name the missing index")
	})

	t.Run("vector_message_match", func(t *testing.T) {
		err := s.classifySearchError(searchModeVector, mongo.CommandError{
			Code:    8000,
			Message: "$vectorSearch is not allowed on this deployment",
		})
		assert.ErrorIs(t, err, ErrVectorSearchUnavailable)
	})

	t.Run("text_index_not_found", func(t *testing.T) {
		err := s.classifySearchError(searchModeText, mongo.CommandError{
			Code:    indexNotFoundCode,
			Message: "text index required for $text query",
		})
		require.ErrorIs(t, err, ErrTextSearchUnavailable)
		assert.Contains(t, err.Error(), "content_text")
	})

	t.Run("mode_scopes_the_mapping", func(t *testing.T) {
		cmdErr := mongo.CommandError{Code: indexNotFoundCode, Message: "index not found"}
		err := s.classifySearchError(searchModeVector, cmdErr)
		assert.NotErrorIs(t, err, ErrSearchUnavailable,
			"a text-index refusal during vector search is not a vector-index gap")
	})

	t.Run("other_errors_pass_through", func(t *testing.T) {
		plain := errors.New("cursor exhausted")
		assert.Equal(t, plain, s.classifySearchError(searchModeVector, plain))

		cmdErr := mongo.CommandError{Code: 13, Message: "unauthorized"}
		got := s.classifySearchError(searchModeVector, cmdErr)
		assert.NotErrorIs(t, got, ErrSearchUnavailable)
	})
}

func TestMergeHybrid_WeightedBlend(t *testing.T) {
	doc := func(id string) Document {
		d := validDocument()
		d.DocumentID = id
		return d
	}
	vector := []SearchResult{
		{Document: doc("a"), Score: 0.95},
		{Document: doc("b"), Score: 0.80},
		{Document: doc("c"), Score: 0.65},
	}
	text := []SearchResult{
		{Document: doc("b"), Score: 12.0},
		{Document: doc("d"), Score: 8.0},
	}

	results := mergeHybrid(vector, text, 0.7, 0.3, 10)
	require.Len(t, results, 4)

	// "b" is found by both branches: normalized vector 0.5 * 0.7 plus
	// normalized text 1.0 * 0.3 = 0.65. "a" tops the vector list: 0.7.
	assert.Equal(t, "a", results[0].DocumentID)
	assert.InDelta(t, 0.7, results[0].Score, 1e-9)
	assert.Equal(t, "b", results[1].DocumentID)
	assert.InDelta(t, 0.65, results[1].Score, 1e-9)

	// Ranking is strictly descending.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestMergeHybrid_SingleBranch(t *testing.T) {
	doc := func(id string) Document {
		d := validDocument()
		d.DocumentID = id
		return d
	}
	vector := []SearchResult{
		{Document: doc("a"), Score: 0.9},
		{Document: doc("b"), Score: 0.4},
	}

	// Text branch empty (no matches): vector ranking survives, scaled by
	// its weight.
	results := mergeHybrid(vector, nil, 0.7, 0.3, 10)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].DocumentID)
	assert.InDelta(t, 0.7, results[0].Score, 1e-9)
	assert.InDelta(t, 0.0, results[1].Score, 1e-9, "min-max squashes the worst hit to zero")

	// Both empty: empty result, not nil panic.
	assert.Empty(t, mergeHybrid(nil, nil, 0.7, 0.3, 10))
}

func TestMergeHybrid_LimitAndTies(t *testing.T) {
	doc := func(id string) Document {
		d := validDocument()
		d.DocumentID = id
		return d
	}
	// All scores equal: every normalized score is 1.0, so ordering falls
	// back to documentId and must be deterministic.
	vector := []SearchResult{
		{Document: doc("z"), Score: 0.5},
		{Document: doc("m"), Score: 0.5},
		{Document: doc("a"), Score: 0.5},
	}

	first := mergeHybrid(vector, nil, 1.0, 0.0, 2)
	second := mergeHybrid(vector, nil, 1.0, 0.0, 2)
	require.Len(t, first, 2)
	assert.Equal(t, first, second, "merge must be deterministic")
	assert.Equal(t, "a", first[0].DocumentID)
	assert.Equal(t, "m", first[1].DocumentID)
}

func TestHybridSearch_RejectsBadWeights(t *testing.T) {
	s := newTestStore(t)

	_, err := s.HybridSearch(context.Background(),
		make([]float32, EmbeddingDimensions), "growth",
		HybridOptions{VectorWeight: -1, TextWeight: 0.5})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearchSentinels(t *testing.T) {
	// Both specific sentinels match the family; callers rely on this to
	// catch "any search gap" in one errors.Is.
	assert.ErrorIs(t, ErrVectorSearchUnavailable, ErrSearchUnavailable)
	assert.ErrorIs(t, ErrTextSearchUnavailable, ErrSearchUnavailable)
	assert.NotErrorIs(t, ErrVectorSearchUnavailable, ErrTextSearchUnavailable)

	wrapped := fmt.Errorf("%w (index %q): refused", ErrVectorSearchUnavailable, "vector_index")
	assert.ErrorIs(t, wrapped, ErrSearchUnavailable)
}
