package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

const defaultRestoreBatch = 100

// RestoreOptions tunes a restore run.
type RestoreOptions struct {
	// Path is the archive directory written by Backup.
	Path string

	// Rate throttles inserts in documents per second; zero or negative
	// means unthrottled. Burst is the token bucket size.
	Rate  int
	Burst int

	// BatchSize is how many documents go into one bulk insert.
	// Default: 100.
	BatchSize int
}

// RestoreResult reports what a restore run did. Duplicates are documents
// whose documentId already existed; they are skipped, not overwritten.
type RestoreResult struct {
	BackupID       string `json:"backupId"`
	ReadCount      int64  `json:"readCount"`
	InsertedCount  int64  `json:"insertedCount"`
	DuplicateCount int64  `json:"duplicateCount"`
}

// Restore reads an archive directory and bulk-inserts its documents in
// rate-limited batches. Restored documents are stamped as new inserts, so
// they get a full retention window instead of expiring on their original
// clock. Duplicate documentIds are counted and skipped.
func (a *Archiver) Restore(ctx context.Context, opts RestoreOptions) (*RestoreResult, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("restore path cannot be empty")
	}

	manifest, err := ReadManifest(filepath.Join(opts.Path, manifestName))
	if err != nil {
		return nil, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultRestoreBatch
	}
	limit := rate.Inf
	burst := opts.Burst
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
		if burst <= 0 {
			burst = opts.Rate
		}
	}
	limiter := rate.NewLimiter(limit, burst)

	f, err := os.Open(filepath.Join(opts.Path, archiveName))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	result := &RestoreResult{BackupID: manifest.BackupID}
	batch := make([]vectorstore.Document, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := a.store.InsertDocuments(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		result.InsertedCount += res.InsertedCount
		result.DuplicateCount += res.DuplicateCount
		batch = batch[:0]
		return nil
	}

	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var doc vectorstore.Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return result, fmt.Errorf("decode archive: %w", err)
		}
		if err := limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("rate limiter: %w", err)
		}
		batch = append(batch, doc)
		result.ReadCount++
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	if result.ReadCount != manifest.DocumentCount {
		a.log.Warn("archive document count does not match manifest",
			zap.Int64("manifest", manifest.DocumentCount),
			zap.Int64("read", result.ReadCount),
		)
	}

	a.log.Info("restore complete",
		zap.String("backup_id", result.BackupID),
		zap.Int64("read", result.ReadCount),
		zap.Int64("inserted", result.InsertedCount),
		zap.Int64("duplicates", result.DuplicateCount),
	)
	return result, nil
}
