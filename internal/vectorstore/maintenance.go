package vectorstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// exportBatchSize is the cursor batch size for streaming walks.
const exportBatchSize = 500

// SweepExpired deletes documents whose expiry timestamp has passed. The
// server's TTL monitor does this on its own schedule; the sweep is for
// operators who want the space back now.
func (s *Store) SweepExpired(ctx context.Context) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "Store.SweepExpired")
	defer span.End()

	start := time.Now()
	var result DeleteResult
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		res, err := coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": time.Now().UTC()}})
		if err != nil {
			return err
		}
		result = DeleteResult{DeletedCount: res.DeletedCount}
		return nil
	})
	s.metrics.RecordOperation(opSweep, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// A sweep removes arbitrary documents, so every cached read shape is
	// suspect. Clear the lot.
	if result.DeletedCount > 0 {
		if removed := s.cache.Invalidate(""); removed > 0 {
			s.log.Debug("cache cleared after sweep", zap.Int("entries", removed))
		}
	}
	span.SetAttributes(attribute.Int64("deleted", result.DeletedCount))
	span.SetStatus(codes.Ok, "swept")
	return &result, nil
}

// ExportDocuments streams every document matching filter to fn in insertion
// order. The walk bypasses the cache and skips the per-operation timeout:
// exports take as long as they take, bounded only by ctx. Returns how many
// documents reached fn; fn returning an error aborts the walk.
func (s *Store) ExportDocuments(ctx context.Context, filter SearchFilter, fn func(Document) error) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.ExportDocuments")
	defer span.End()

	if fn == nil {
		err := fmt.Errorf("%w: export callback cannot be nil", ErrValidation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	coll, err := s.gate(s.cfg.Connection.Collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	match := buildSearchFilter(filter)
	if match == nil {
		match = bson.D{}
	}

	start := time.Now()
	var count int64
	walkErr := func() error {
		cursor, err := coll.Find(ctx, match, options.Find().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetBatchSize(exportBatchSize))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc Document
			if err := cursor.Decode(&doc); err != nil {
				return err
			}
			if err := fn(doc); err != nil {
				return fmt.Errorf("export callback: %w", err)
			}
			count++
		}
		return cursor.Err()
	}()
	walkErr = classifyError(walkErr)
	s.observe(walkErr)
	s.metrics.RecordOperation(opExport, walkErr, time.Since(start))
	if walkErr != nil {
		span.RecordError(walkErr)
		span.SetStatus(codes.Error, walkErr.Error())
		return count, walkErr
	}

	span.SetAttributes(attribute.Int64("documents", count))
	span.SetStatus(codes.Ok, "exported")
	return count, nil
}

// RecordBackupRun appends a backup audit record to the vectorbackups
// collection.
func (s *Store) RecordBackupRun(ctx context.Context, run BackupRun) error {
	ctx, span := tracer.Start(ctx, "Store.RecordBackupRun")
	defer span.End()
	span.SetAttributes(attribute.String("backup_id", run.BackupID))

	start := time.Now()
	if run.BackupID == "" {
		err := fmt.Errorf("%w: backupId cannot be empty", ErrValidation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if run.Collection == "" {
		run.Collection = s.cfg.Connection.Collection
	}

	err := s.guarded(ctx, CollectionBackups, func(ctx context.Context, coll *mongo.Collection) error {
		_, err := coll.InsertOne(ctx, run)
		return err
	})
	s.metrics.RecordOperation(opRecordBackup, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "recorded")
	return nil
}

// ListBackupRuns returns the most recent backup audit records, newest first.
func (s *Store) ListBackupRuns(ctx context.Context, limit int) ([]BackupRun, error) {
	ctx, span := tracer.Start(ctx, "Store.ListBackupRuns")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	var runs []BackupRun
	err := s.guarded(ctx, CollectionBackups, func(ctx context.Context, coll *mongo.Collection) error {
		cursor, err := coll.Find(ctx, bson.D{}, options.Find().
			SetSort(bson.D{{Key: "startedAt", Value: -1}}).
			SetLimit(int64(limit)))
		if err != nil {
			return err
		}
		return cursor.All(ctx, &runs)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if runs == nil {
		runs = []BackupRun{}
	}
	span.SetAttributes(attribute.Int("runs", len(runs)))
	span.SetStatus(codes.Ok, "listed")
	return runs, nil
}
