package vectorstore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Schema constants for the primary collection. EmbeddingDimensions matches
// the platform's embedding model output; both are load-bearing contracts
// enforced by ValidateDocument.
const (
	EmbeddingDimensions = 1536
	MaxContentLength    = 8000
)

// Collection names used by the platform. The store operates on
// CollectionDocuments; the others are created by setup and written by
// adjacent tooling (backup runs, embedding pipeline bookkeeping).
const (
	CollectionDocuments      = "vectordocuments"
	CollectionEmbeddingJobs  = "embeddingjobs"
	CollectionEmbeddingStats = "embeddingstats"
	CollectionBackups        = "vectorbackups"
)

// SourceType identifies the originating record kind of a document.
type SourceType string

// Enumerated source types.
const (
	SourceAnalytics     SourceType = "analytics"
	SourceTransaction   SourceType = "transaction"
	SourceSession       SourceType = "session"
	SourceCampaign      SourceType = "campaign"
	SourceWebsite       SourceType = "website"
	SourceUserJourney   SourceType = "user_journey"
	SourceSmartContract SourceType = "smart_contract"
)

// Valid reports whether s is one of the enumerated source types.
func (s SourceType) Valid() bool {
	switch s {
	case SourceAnalytics, SourceTransaction, SourceSession, SourceCampaign,
		SourceWebsite, SourceUserJourney, SourceSmartContract:
		return true
	}
	return false
}

// Status is the lifecycle state of a stored document.
type Status string

// Enumerated document statuses.
const (
	StatusActive     Status = "active"
	StatusArchived   Status = "archived"
	StatusDeprecated Status = "deprecated"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusDeprecated:
		return true
	}
	return false
}

// Document is the stored unit of the primary collection.
//
// DocumentID is caller-assigned and unique; ID is the storage-internal
// identifier. CreatedAt, UpdatedAt, and ExpiresAt are set by the store on
// write and never accepted from callers. Embedding length is exactly
// EmbeddingDimensions, enforced at write time.
type Document struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	DocumentID string             `bson:"documentId" json:"documentId"`
	SourceType SourceType         `bson:"sourceType" json:"sourceType"`
	SourceID   string             `bson:"sourceId" json:"sourceId"`
	SiteID     string             `bson:"siteId" json:"siteId"`
	TeamID     string             `bson:"teamId" json:"teamId"`
	Embedding  []float32          `bson:"embedding,omitempty" json:"embedding,omitempty"`
	Content    string             `bson:"content" json:"content"`
	Status     Status             `bson:"status" json:"status"`
	Metadata   map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
	ExpiresAt  time.Time          `bson:"expiresAt" json:"expiresAt"`
}

// DocumentPatch is a partial update to an existing document. Content and
// Status replace; Metadata merges per key. Embeddings are immutable after
// insert, so the patch carries none.
type DocumentPatch struct {
	Content  *string        `json:"content,omitempty"`
	Status   *Status        `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// InsertResult is the acknowledgement of a single insert.
type InsertResult struct {
	DocumentID string `json:"documentId"`
	InsertedID string `json:"insertedId"`
}

// BulkInsertResult is the acknowledgement of a bulk insert. Duplicates are
// skipped and counted rather than aborting the batch.
type BulkInsertResult struct {
	InsertedCount  int64 `json:"insertedCount"`
	DuplicateCount int64 `json:"duplicateCount"`
}

// UpdateResult reports how many documents an update matched and changed.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult reports how many documents a delete removed.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// SearchFilter scopes a search to tenant and source dimensions. Zero-value
// fields are not applied. Tenant scoping (SiteID/TeamID) is mandatory
// practice for callers; this layer applies whatever is given.
type SearchFilter struct {
	SiteID      string       `json:"siteId,omitempty"`
	TeamID      string       `json:"teamId,omitempty"`
	SourceTypes []SourceType `json:"sourceTypes,omitempty"`
	Status      Status       `json:"status,omitempty"`
	Timeframe   string       `json:"timeframe,omitempty"`
}

// SearchOptions tunes a single search.
type SearchOptions struct {
	// Limit bounds the number of results. Defaults to
	// SearchConfig.DefaultLimit, capped at SearchConfig.MaxLimit.
	Limit int `json:"limit,omitempty"`

	// NumCandidates is the vector-search candidate pool size. Defaults to
	// Limit*10.
	NumCandidates int `json:"numCandidates,omitempty"`

	// Filter scopes the search.
	Filter SearchFilter `json:"filter,omitempty"`
}

// HybridOptions tunes a hybrid search. Weights apply to normalized branch
// scores and default to SearchConfig.VectorWeight/TextWeight.
type HybridOptions struct {
	SearchOptions
	VectorWeight float64 `json:"vectorWeight,omitempty"`
	TextWeight   float64 `json:"textWeight,omitempty"`
}

// SearchResult is one ranked hit. The document's fields inline at the BSON
// top level, matching the aggregation output where score sits beside them;
// the embedding is projected out of search payloads.
type SearchResult struct {
	Document `bson:",inline" json:"document"`
	Score    float64 `bson:"score" json:"score"`
}

// BackupRun records one backup of the primary collection in the
// vectorbackups auxiliary collection.
type BackupRun struct {
	BackupID      string    `bson:"backupId" json:"backupId"`
	Collection    string    `bson:"collection" json:"collection"`
	DocumentCount int64     `bson:"documentCount" json:"documentCount"`
	Path          string    `bson:"path" json:"path"`
	StartedAt     time.Time `bson:"startedAt" json:"startedAt"`
	FinishedAt    time.Time `bson:"finishedAt" json:"finishedAt"`
}
