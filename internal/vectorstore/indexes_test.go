package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestDocumentIndexModels(t *testing.T) {
	models := documentIndexModels()
	require.Len(t, models, 5)

	byName := make(map[string]mongo.IndexModel, len(models))
	for _, m := range models {
		require.NotNil(t, m.Options)
		require.NotNil(t, m.Options.Name)
		byName[*m.Options.Name] = m
	}

	t.Run("unique_document_id", func(t *testing.T) {
		m, ok := byName[IndexDocumentID]
		require.True(t, ok)
		keys := m.Keys.(bson.D)
		require.Len(t, keys, 1)
		assert.Equal(t, "documentId", keys[0].Key)
		require.NotNil(t, m.Options.Unique)
		assert.True(t, *m.Options.Unique)
	})

	t.Run("tenant_source_status_compound", func(t *testing.T) {
		m, ok := byName[IndexTenantSourceStatus]
		require.True(t, ok)
		keys := m.Keys.(bson.D)
		require.Len(t, keys, 4)
		// Key order is the index contract: tenant first, then source, then
		// lifecycle.
		assert.Equal(t, "siteId", keys[0].Key)
		assert.Equal(t, "teamId", keys[1].Key)
		assert.Equal(t, "sourceType", keys[2].Key)
		assert.Equal(t, "status", keys[3].Key)
	})

	t.Run("created_status_compound", func(t *testing.T) {
		m, ok := byName[IndexCreatedStatus]
		require.True(t, ok)
		keys := m.Keys.(bson.D)
		require.Len(t, keys, 2)
		assert.Equal(t, "createdAt", keys[0].Key)
		assert.Equal(t, -1, keys[0].Value, "recency queries read newest first")
		assert.Equal(t, "status", keys[1].Key)
	})

	t.Run("content_text", func(t *testing.T) {
		m, ok := byName[IndexContentText]
		require.True(t, ok)
		keys := m.Keys.(bson.D)
		require.Len(t, keys, 1)
		assert.Equal(t, "content", keys[0].Key)
		assert.Equal(t, "text", keys[0].Value)
	})

	t.Run("expiry_ttl", func(t *testing.T) {
		m, ok := byName[IndexExpiresTTL]
		require.True(t, ok)
		keys := m.Keys.(bson.D)
		require.Len(t, keys, 1)
		assert.Equal(t, "expiresAt", keys[0].Key)
		require.NotNil(t, m.Options.ExpireAfterSeconds)
		assert.Equal(t, int32(0), *m.Options.ExpireAfterSeconds,
			"each document carries its own expiry timestamp")
	})
}

func TestVectorSearchIndexDefinition(t *testing.T) {
	def := vectorSearchIndexDefinition()
	fields, ok := docElem(t, def, "fields").(bson.A)
	require.True(t, ok)
	require.Len(t, fields, 6, "one vector field plus five filter paths")

	vector := fields[0].(bson.D)
	assert.Equal(t, "vector", docElem(t, vector, "type"))
	assert.Equal(t, "embedding", docElem(t, vector, "path"))
	assert.Equal(t, EmbeddingDimensions, docElem(t, vector, "numDimensions"))
	assert.Equal(t, "cosine", docElem(t, vector, "similarity"))

	wantFilters := []string{"siteId", "teamId", "sourceType", "status", "metadata.timeframe"}
	for i, path := range wantFilters {
		field := fields[i+1].(bson.D)
		assert.Equal(t, "filter", docElem(t, field, "type"))
		assert.Equal(t, path, docElem(t, field, "path"))
	}
}

func TestClassifyEnsureSearchError(t *testing.T) {
	s := newTestStore(t)

	t.Run("already_exists_is_success", func(t *testing.T) {
		err := s.classifyEnsureSearchError(mongo.CommandError{
			Code: 68, Message: "index \"vector_index\" already exists",
		})
		assert.NoError(t, err)
	})

	t.Run("non_atlas_deployment", func(t *testing.T) {
		err := s.classifyEnsureSearchError(mongo.CommandError{
			Code:    115,
			Name:    "CommandNotSupported",
			Message: "Search index commands are only supported with Atlas",
		})
		require.ErrorIs(t, err, ErrVectorSearchUnavailable)
		assert.Contains(t, err.Error(), "vector_index")
	})

	t.Run("other_command_errors_pass_through", func(t *testing.T) {
		in := mongo.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}
		got := s.classifyEnsureSearchError(in)
		assert.NotErrorIs(t, got, ErrSearchUnavailable)
	})

	t.Run("non_command_errors_pass_through", func(t *testing.T) {
		plain := errors.New("network blip")
		assert.Equal(t, plain, s.classifyEnsureSearchError(plain))
		assert.NoError(t, s.classifyEnsureSearchError(nil))
	})
}
