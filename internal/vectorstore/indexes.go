package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Index names on the primary collection.
const (
	IndexDocumentID         = "documentId_unique"
	IndexTenantSourceStatus = "tenant_source_status"
	IndexCreatedStatus      = "created_status"
	IndexContentText        = "content_text"
	IndexExpiresTTL         = "expiresAt_ttl"
)

// namespaceExistsCode is the server's answer to creating a collection that
// already exists.
const namespaceExistsCode = 48

// EnsureCollections creates the primary and auxiliary collections, skipping
// the ones that already exist.
func (s *Store) EnsureCollections(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.EnsureCollections")
	defer span.End()

	if !s.initialized.Load() {
		return fmt.Errorf("%w: call Initialize first", ErrNotInitialized)
	}
	if err := s.conn.Allow(time.Now()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	db := s.conn.Database()
	if db == nil {
		err := fmt.Errorf("%w: not connected", ErrConnection)
		s.conn.HandleError(err)
		return err
	}

	names := []string{
		s.cfg.Connection.Collection,
		CollectionEmbeddingJobs,
		CollectionEmbeddingStats,
		CollectionBackups,
	}
	for _, name := range names {
		err := db.CreateCollection(ctx, name)
		if err != nil {
			var cmdErr mongo.CommandError
			if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExistsCode {
				continue
			}
			err = classifyError(err)
			s.observe(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		s.log.Info("collection created", zap.String("collection", name))
	}

	s.observe(nil)
	span.SetStatus(codes.Ok, "ensured")
	return nil
}

// EnsureIndexes builds the primary collection's indexes: the unique document
// id, the tenant/source/status compound, the time/status compound, the text
// index over content, and the TTL index on the expiry timestamp. CreateMany
// is a no-op for indexes that already exist with the same definition. Index
// builds are bounded by ctx, not the per-operation timeout.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.EnsureIndexes")
	defer span.End()

	coll, err := s.gate(s.cfg.Connection.Collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	names, err := coll.Indexes().CreateMany(ctx, documentIndexModels())
	err = classifyError(err)
	s.observe(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
	}

	s.log.Info("indexes ensured",
		zap.String("collection", coll.Name()),
		zap.Strings("indexes", names),
	)
	span.SetStatus(codes.Ok, "ensured")
	return nil
}

// EnsureVectorSearchIndex creates the Atlas Vector Search index over the
// embedding field. Only Atlas deployments accept search index commands;
// anywhere else this fails with an error wrapping ErrSearchUnavailable so
// setup tooling can report the gap instead of guessing.
func (s *Store) EnsureVectorSearchIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.EnsureVectorSearchIndex")
	defer span.End()

	coll, err := s.gate(s.cfg.Connection.Collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	model := mongo.SearchIndexModel{
		Definition: vectorSearchIndexDefinition(),
		Options: options.SearchIndexes().
			SetName(s.cfg.Search.VectorIndex).
			SetType("vectorSearch"),
	}
	name, err := coll.SearchIndexes().CreateOne(ctx, model)
	err = s.classifyEnsureSearchError(classifyError(err))
	s.observe(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.log.Info("vector search index ensured",
		zap.String("collection", coll.Name()),
		zap.String("index", name),
		zap.Int("dimensions", EmbeddingDimensions),
	)
	span.SetStatus(codes.Ok, "ensured")
	return nil
}

// classifyEnsureSearchError maps "this deployment has no search service"
// refusals onto the vector unavailability sentinel. An index that already
// exists is success.
func (s *Store) classifyEnsureSearchError(err error) error {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	msg := cmdErr.Message
	switch {
	case strings.Contains(msg, "already exists"):
		return nil
	case cmdErr.Name == "CommandNotSupported",
		cmdErr.Name == "SearchNotEnabled",
		strings.Contains(msg, "Atlas"),
		strings.Contains(msg, "search index"):
		return fmt.Errorf("%w (index %q): %s", ErrVectorSearchUnavailable, s.cfg.Search.VectorIndex, msg)
	default:
		return err
	}
}

// documentIndexModels returns the index set for the primary collection. The
// TTL index uses expireAfterSeconds zero: each document carries its own
// expiry timestamp, so the reaper fires as soon as expiresAt passes.
func documentIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "documentId", Value: 1}},
			Options: options.Index().SetName(IndexDocumentID).SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "siteId", Value: 1},
				{Key: "teamId", Value: 1},
				{Key: "sourceType", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName(IndexTenantSourceStatus),
		},
		{
			Keys: bson.D{
				{Key: "createdAt", Value: -1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName(IndexCreatedStatus),
		},
		{
			Keys:    bson.D{{Key: "content", Value: "text"}},
			Options: options.Index().SetName(IndexContentText),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName(IndexExpiresTTL).SetExpireAfterSeconds(0),
		},
	}
}

// vectorSearchIndexDefinition describes the Atlas Vector Search index:
// cosine similarity over the embedding field plus the filterable tenant and
// lifecycle paths.
func vectorSearchIndexDefinition() bson.D {
	filterPaths := []string{"siteId", "teamId", "sourceType", "status", "metadata.timeframe"}

	fields := bson.A{
		bson.D{
			{Key: "type", Value: "vector"},
			{Key: "path", Value: "embedding"},
			{Key: "numDimensions", Value: EmbeddingDimensions},
			{Key: "similarity", Value: "cosine"},
		},
	}
	for _, path := range filterPaths {
		fields = append(fields, bson.D{
			{Key: "type", Value: "filter"},
			{Key: "path", Value: path},
		})
	}
	return bson.D{{Key: "fields", Value: fields}}
}
