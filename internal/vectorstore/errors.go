package vectorstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations. Wrap with fmt.Errorf("%w: ...") and
// match with errors.Is.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrValidation is returned when a document or query fails schema
	// validation. Deterministic, never retried, never counted by the breaker.
	ErrValidation = errors.New("validation failed")

	// ErrConnection indicates the backing store is unreachable or the
	// operation timed out. Counted by the circuit breaker.
	ErrConnection = errors.New("store connection failed")

	// ErrCircuitOpen is returned without any network attempt while the
	// circuit breaker is open. Signals "do not retry yet".
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrDuplicateKey is returned when an insert conflicts on documentId.
	// Surfaced distinctly so bulk callers can skip instead of aborting.
	ErrDuplicateKey = errors.New("duplicate document id")

	// ErrNotFound is returned when a documentId does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrNotInitialized is returned when an operation runs before
	// Initialize or after Shutdown.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrSearchUnavailable is the common ancestor of the two index-missing
	// errors below. Callers that treat both the same match against this.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// The two search errors wrap ErrSearchUnavailable so callers can match
// either the specific capability or the family. Their messages name the
// missing capability; other components key off that.
var (
	// ErrVectorSearchUnavailable indicates the native vector search index is
	// absent or the deployment does not support $vectorSearch.
	ErrVectorSearchUnavailable = fmt.Errorf("%w: vector search index not configured", ErrSearchUnavailable)

	// ErrTextSearchUnavailable indicates the text index on content is absent.
	ErrTextSearchUnavailable = fmt.Errorf("%w: text index not configured", ErrSearchUnavailable)
)
