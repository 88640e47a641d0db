package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InsertDocument validates doc, stamps timestamps and the expiry date, and
// writes it to the primary collection. The documentId must be unique; a
// second insert with the same id returns ErrDuplicateKey.
func (s *Store) InsertDocument(ctx context.Context, doc Document) (*InsertResult, error) {
	ctx, span := tracer.Start(ctx, "Store.InsertDocument")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", doc.DocumentID),
		attribute.String("source_type", string(doc.SourceType)),
	)

	start := time.Now()
	if err := ValidateDocument(doc); err != nil {
		s.metrics.RecordOperation(opInsert, err, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stampForInsert(&doc, time.Now().UTC(), s.cfg.Retention)

	var result InsertResult
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		res, err := coll.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		result = InsertResult{DocumentID: doc.DocumentID}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			result.InsertedID = oid.Hex()
		}
		return nil
	})
	s.metrics.RecordOperation(opInsert, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.counters.inserts.Add(1)
	s.invalidateAfterWrite(doc.DocumentID)
	span.SetStatus(codes.Ok, "inserted")
	return &result, nil
}

// InsertDocuments writes a batch unordered, so one duplicate does not sink
// its neighbours. Duplicates are counted and skipped; any other write error
// fails the call. Every document is validated before the first write.
func (s *Store) InsertDocuments(ctx context.Context, docs []Document) (*BulkInsertResult, error) {
	ctx, span := tracer.Start(ctx, "Store.InsertDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(docs)))

	start := time.Now()
	if len(docs) == 0 {
		err := fmt.Errorf("%w: documents cannot be empty", ErrValidation)
		s.metrics.RecordOperation(opBulkInsert, err, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for i := range docs {
		if err := ValidateDocument(docs[i]); err != nil {
			err = fmt.Errorf("document %d (%s): %w", i, docs[i].DocumentID, err)
			s.metrics.RecordOperation(opBulkInsert, err, time.Since(start))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	now := time.Now().UTC()
	models := make([]interface{}, len(docs))
	for i := range docs {
		stampForInsert(&docs[i], now, s.cfg.Retention)
		models[i] = docs[i]
	}

	var result BulkInsertResult
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		_, err := coll.InsertMany(ctx, models, options.InsertMany().SetOrdered(false))
		if err == nil {
			result.InsertedCount = int64(len(docs))
			return nil
		}
		inserted, duplicates, failed := resolveBulkWrite(err, int64(len(docs)))
		if failed != nil {
			return failed
		}
		result.InsertedCount = inserted
		result.DuplicateCount = duplicates
		return nil
	})
	s.metrics.RecordOperation(opBulkInsert, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.counters.bulkInserts.Add(1)
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].DocumentID
	}
	s.invalidateAfterWrite(ids...)
	span.SetAttributes(
		attribute.Int64("inserted", result.InsertedCount),
		attribute.Int64("duplicates", result.DuplicateCount),
	)
	span.SetStatus(codes.Ok, "inserted")
	return &result, nil
}

// GetDocument fetches one document by its documentId, consulting the cache
// first. Returns ErrNotFound when no document matches.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	ctx, span := tracer.Start(ctx, "Store.GetDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	if documentID == "" {
		err := fmt.Errorf("%w: documentId cannot be empty", ErrValidation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	key := documentCacheKey(documentID)
	if v, ok := s.cache.Get(key); ok {
		if doc, ok := v.(Document); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			span.SetStatus(codes.Ok, "cache hit")
			return &doc, nil
		}
	}

	start := time.Now()
	var doc Document
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		return coll.FindOne(ctx, bson.M{"documentId": documentID}).Decode(&doc)
	})
	s.metrics.RecordOperation(opGet, err, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrNotFound, documentID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.counters.reads.Add(1)
	s.cache.Set(key, doc, 0)
	span.SetStatus(codes.Ok, "found")
	return &doc, nil
}

// UpdateDocument applies a partial update to one document. Content and
// status replace their fields; metadata keys merge into the existing map.
// The embedding is immutable after insert. A zero MatchedCount means no
// document carries that id; the caller decides whether that is an error.
func (s *Store) UpdateDocument(ctx context.Context, documentID string, patch DocumentPatch) (*UpdateResult, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	start := time.Now()
	if documentID == "" {
		err := fmt.Errorf("%w: documentId cannot be empty", ErrValidation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ValidatePatch(patch); err != nil {
		s.metrics.RecordOperation(opUpdate, err, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	update := buildPatchUpdate(patch, time.Now().UTC())

	var result UpdateResult
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		res, err := coll.UpdateOne(ctx, bson.M{"documentId": documentID}, update)
		if err != nil {
			return err
		}
		result = UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}
		return nil
	})
	s.metrics.RecordOperation(opUpdate, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.counters.updates.Add(1)
	s.invalidateAfterWrite(documentID)
	span.SetAttributes(attribute.Int64("matched", result.MatchedCount))
	span.SetStatus(codes.Ok, "updated")
	return &result, nil
}

// DeleteDocument removes one document by its documentId. Deleting an absent
// document is not an error; the result reports DeletedCount zero.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	if documentID == "" {
		err := fmt.Errorf("%w: documentId cannot be empty", ErrValidation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	var result DeleteResult
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		res, err := coll.DeleteOne(ctx, bson.M{"documentId": documentID})
		if err != nil {
			return err
		}
		result = DeleteResult{DeletedCount: res.DeletedCount}
		return nil
	})
	s.metrics.RecordOperation(opDelete, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.counters.deletes.Add(1)
	s.invalidateAfterWrite(documentID)
	span.SetAttributes(attribute.Int64("deleted", result.DeletedCount))
	span.SetStatus(codes.Ok, "deleted")
	return &result, nil
}

// stampForInsert sets the server-side fields a caller must not control:
// object id, timestamps, expiry, and the default status.
func stampForInsert(doc *Document, now time.Time, retention time.Duration) {
	doc.ID = primitive.NilObjectID
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.ExpiresAt = now.Add(retention)
	if doc.Status == "" {
		doc.Status = StatusActive
	}
}

// buildPatchUpdate translates a patch into a $set document. Metadata keys
// use dotted paths so existing keys survive a partial update.
func buildPatchUpdate(patch DocumentPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	for k, v := range patch.Metadata {
		set["metadata."+k] = v
	}
	return bson.M{"$set": set}
}

// resolveBulkWrite resolves an unordered InsertMany error. A batch whose only
// write errors are duplicate keys is a success with skips; any other write
// error fails the whole call with the original error.
func resolveBulkWrite(err error, batch int64) (inserted, duplicates int64, failed error) {
	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return 0, 0, err
	}
	for _, writeErr := range bulkErr.WriteErrors {
		if writeErr.Code != duplicateKeyCode {
			return 0, 0, err
		}
	}
	duplicates = int64(len(bulkErr.WriteErrors))
	return batch - duplicates, duplicates, nil
}
