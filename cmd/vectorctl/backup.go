package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cqanalytics/vectord/internal/backup"
	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// backup command flags
var (
	backupDir         string
	backupSiteID      string
	backupTeamID      string
	backupSourceTypes []string
	backupStatus      string
)

// restore command flags
var (
	restoreRate  int
	restoreBurst int
	restoreBatch int
)

// backupCmd archives documents to a JSONL file with a TOML manifest
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive documents to a JSONL backup",
	Long: `Stream documents into a JSONL archive with a TOML manifest, and record
the run in the vectorbackups collection.

The archive lands in <dir>/<backup-id>/documents.jsonl. Filters scope the
archive; without filters the whole collection is archived.

Examples:
  # Full backup
  vectorctl backup --dir /var/backups/vectord

  # One tenant's analytics documents
  vectorctl backup --dir /var/backups/vectord --team-id team-1 --source-type analytics`,
	RunE: runBackup,
}

// restoreCmd loads a JSONL backup back into the store
var restoreCmd = &cobra.Command{
	Use:   "restore <backup-dir>",
	Short: "Restore documents from a JSONL backup",
	Long: `Read a backup directory (manifest.toml + documents.jsonl) and insert its
documents in rate-limited batches. Documents that already exist are skipped
and counted, not overwritten.

Examples:
  # Restore at full speed
  vectorctl restore /var/backups/vectord/3f2a...

  # Throttle to 500 documents/second
  vectorctl restore /var/backups/vectord/3f2a... --rate 500`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	backupCmd.Flags().StringVar(&backupDir, "dir", "", "backup directory (default backup.dir from config)")
	backupCmd.Flags().StringVar(&backupSiteID, "site-id", "", "only archive documents for this site")
	backupCmd.Flags().StringVar(&backupTeamID, "team-id", "", "only archive documents for this team")
	backupCmd.Flags().StringSliceVar(&backupSourceTypes, "source-type", nil, "only archive documents with these source types")
	backupCmd.Flags().StringVar(&backupStatus, "status", "", "only archive documents with this status")

	restoreCmd.Flags().IntVar(&restoreRate, "rate", 0, "documents per second (default backup.restore_rate from config; 0 = unthrottled)")
	restoreCmd.Flags().IntVar(&restoreBurst, "burst", 0, "rate limiter burst size (default backup.restore_burst from config)")
	restoreCmd.Flags().IntVar(&restoreBatch, "batch-size", 0, "documents per insert batch (default 100)")
}

// buildBackupFilter assembles the archive scope from the backup flags.
func buildBackupFilter() (vectorstore.SearchFilter, error) {
	filter := vectorstore.SearchFilter{
		SiteID: backupSiteID,
		TeamID: backupTeamID,
	}

	for _, raw := range backupSourceTypes {
		st := vectorstore.SourceType(raw)
		if !st.Valid() {
			return vectorstore.SearchFilter{}, fmt.Errorf("unknown source type %q", raw)
		}
		filter.SourceTypes = append(filter.SourceTypes, st)
	}

	if backupStatus != "" {
		status := vectorstore.Status(backupStatus)
		if !status.Valid() {
			return vectorstore.SearchFilter{}, fmt.Errorf("unknown status %q", backupStatus)
		}
		filter.Status = status
	}

	return filter, nil
}

// runBackup handles the backup command
func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	filter, err := buildBackupFilter()
	if err != nil {
		return err
	}

	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	dir := backupDir
	if dir == "" {
		dir = cfg.Backup.Dir
	}
	if dir == "" {
		return fmt.Errorf("backup directory required (--dir flag or backup.dir in config)")
	}

	logger, err := newToolLogger()
	if err != nil {
		return err
	}

	archiver, err := backup.New(store, logger.Underlying())
	if err != nil {
		return err
	}

	result, err := archiver.Backup(ctx, backup.Options{Dir: dir, Filter: filter})
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Printf("Backup complete\n")
	fmt.Printf("  ID:        %s\n", result.BackupID)
	fmt.Printf("  Path:      %s\n", result.Path)
	fmt.Printf("  Documents: %d\n", result.DocumentCount)
	fmt.Printf("  Duration:  %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return nil
}

// runRestore handles the restore command
func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	rate := restoreRate
	if rate == 0 {
		rate = cfg.Backup.RestoreRate
	}
	burst := restoreBurst
	if burst == 0 {
		burst = cfg.Backup.RestoreBurst
	}

	logger, err := newToolLogger()
	if err != nil {
		return err
	}

	archiver, err := backup.New(store, logger.Underlying())
	if err != nil {
		return err
	}

	result, err := archiver.Restore(ctx, backup.RestoreOptions{
		Path:      args[0],
		Rate:      rate,
		Burst:     burst,
		BatchSize: restoreBatch,
	})
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Printf("Restore complete\n")
	fmt.Printf("  Backup:     %s\n", result.BackupID)
	fmt.Printf("  Read:       %d\n", result.ReadCount)
	fmt.Printf("  Inserted:   %d\n", result.InsertedCount)
	fmt.Printf("  Duplicates: %d (skipped)\n", result.DuplicateCount)
	return nil
}
