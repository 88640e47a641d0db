package backup

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// Manifest describes one backup archive. It travels beside the JSONL file
// so an archive directory is self-describing.
type Manifest struct {
	BackupID      string    `toml:"backup_id"`
	Database      string    `toml:"database"`
	Collection    string    `toml:"collection"`
	DocumentCount int64     `toml:"document_count"`
	StartedAt     time.Time `toml:"started_at"`
	FinishedAt    time.Time `toml:"finished_at"`
	Filter        Filter    `toml:"filter"`
}

// Filter records which slice of the collection the backup captured. Empty
// fields mean no restriction.
type Filter struct {
	SiteID      string   `toml:"site_id,omitempty"`
	TeamID      string   `toml:"team_id,omitempty"`
	SourceTypes []string `toml:"source_types,omitempty"`
	Status      string   `toml:"status,omitempty"`
	Timeframe   string   `toml:"timeframe,omitempty"`
}

func filterFrom(f vectorstore.SearchFilter) Filter {
	out := Filter{
		SiteID:    f.SiteID,
		TeamID:    f.TeamID,
		Status:    string(f.Status),
		Timeframe: f.Timeframe,
	}
	for _, st := range f.SourceTypes {
		out.SourceTypes = append(out.SourceTypes, string(st))
	}
	return out
}

// ReadManifest loads and validates the manifest of an archive directory.
func ReadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m.BackupID == "" {
		return nil, fmt.Errorf("invalid manifest %s: backup_id is empty", path)
	}
	if m.Collection == "" {
		return nil, fmt.Errorf("invalid manifest %s: collection is empty", path)
	}
	return &m, nil
}

func writeManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	return nil
}
