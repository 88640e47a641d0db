// Package backup writes and restores JSONL archives of the document
// collection. An archive is a directory holding documents.jsonl (one
// document per line, embeddings included) and manifest.toml describing what
// was captured. Every backup is also recorded in the vectorbackups
// collection for auditing.
package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

const (
	archiveName  = "documents.jsonl"
	manifestName = "manifest.toml"
)

// Archiver runs backups and restores against one store.
type Archiver struct {
	store *vectorstore.Store
	log   *zap.Logger
}

// New creates an Archiver. A nil logger is replaced with a no-op one.
func New(store *vectorstore.Store, log *zap.Logger) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{store: store, log: log}, nil
}

// Options selects what a backup captures and where it lands.
type Options struct {
	// Dir is the parent directory; each run writes into a fresh
	// subdirectory named by its backup id.
	Dir string

	// Filter restricts the export. The zero value captures everything.
	Filter vectorstore.SearchFilter
}

// Result describes a completed backup.
type Result struct {
	BackupID      string    `json:"backupId"`
	Path          string    `json:"path"`
	DocumentCount int64     `json:"documentCount"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Backup streams every matching document into a JSONL archive, writes the
// manifest beside it, and records the run in the vectorbackups collection.
// A failed export removes the partial archive directory. If the archive is
// written but the audit record cannot be stored, the Result is returned
// alongside the error so the caller still knows where the data is.
func (a *Archiver) Backup(ctx context.Context, opts Options) (*Result, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("backup directory cannot be empty")
	}

	started := time.Now().UTC()
	backupID := uuid.New().String()
	dir := filepath.Join(opts.Dir, backupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	count, err := a.writeArchive(ctx, filepath.Join(dir, archiveName), opts.Filter)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			a.log.Warn("failed to remove partial backup", zap.String("path", dir), zap.Error(rmErr))
		}
		return nil, err
	}
	finished := time.Now().UTC()

	manifest := Manifest{
		BackupID:      backupID,
		Database:      a.store.Database(),
		Collection:    a.store.Collection(),
		DocumentCount: count,
		StartedAt:     started,
		FinishedAt:    finished,
		Filter:        filterFrom(opts.Filter),
	}
	if err := writeManifest(filepath.Join(dir, manifestName), manifest); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			a.log.Warn("failed to remove partial backup", zap.String("path", dir), zap.Error(rmErr))
		}
		return nil, err
	}

	result := &Result{
		BackupID:      backupID,
		Path:          dir,
		DocumentCount: count,
		StartedAt:     started,
		FinishedAt:    finished,
	}

	a.log.Info("backup complete",
		zap.String("backup_id", backupID),
		zap.Int64("documents", count),
		zap.String("path", dir),
	)

	run := vectorstore.BackupRun{
		BackupID:      backupID,
		Collection:    manifest.Collection,
		DocumentCount: count,
		Path:          dir,
		StartedAt:     started,
		FinishedAt:    finished,
	}
	if err := a.store.RecordBackupRun(ctx, run); err != nil {
		return result, fmt.Errorf("archive written to %s but audit record failed: %w", dir, err)
	}
	return result, nil
}

// writeArchive streams the export into a JSONL file. Returns the number of
// documents written.
func (a *Archiver) writeArchive(ctx context.Context, path string, filter vectorstore.SearchFilter) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	count, exportErr := a.store.ExportDocuments(ctx, filter, func(doc vectorstore.Document) error {
		return enc.Encode(doc)
	})
	if exportErr != nil {
		f.Close()
		return count, fmt.Errorf("export documents: %w", exportErr)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return count, fmt.Errorf("flush archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return count, fmt.Errorf("close archive: %w", err)
	}
	return count, nil
}
