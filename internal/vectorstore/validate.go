package vectorstore

import (
	"fmt"
	"unicode/utf8"
)

// ValidateDocument checks a candidate document against the collection schema
// before it reaches the store. Pure function of the candidate: no I/O, no
// mutation.
//
// Rejections carry ErrValidation:
//   - a missing required field, named in the message
//   - an embedding whose length is not exactly EmbeddingDimensions; the
//     message states the expected dimensionality ("1536 dimensions") and
//     callers rely on that phrasing
//   - content longer than MaxContentLength characters (never truncated)
//   - an unknown sourceType or status
//
// Timestamps are ignored here: the store sets them on write regardless of
// what the caller supplied.
func ValidateDocument(doc Document) error {
	required := []struct {
		name string
		set  bool
	}{
		{"documentId", doc.DocumentID != ""},
		{"sourceType", doc.SourceType != ""},
		{"sourceId", doc.SourceID != ""},
		{"siteId", doc.SiteID != ""},
		{"teamId", doc.TeamID != ""},
		{"embedding", len(doc.Embedding) != 0},
		{"content", doc.Content != ""},
	}
	for _, f := range required {
		if !f.set {
			return fmt.Errorf("%w: missing required field %q", ErrValidation, f.name)
		}
	}

	if !doc.SourceType.Valid() {
		return fmt.Errorf("%w: unknown sourceType %q", ErrValidation, doc.SourceType)
	}
	if err := validateEmbedding("embedding", doc.Embedding); err != nil {
		return err
	}
	if err := validateContent(doc.Content); err != nil {
		return err
	}
	if doc.Status != "" && !doc.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, doc.Status)
	}
	return nil
}

// ValidatePatch checks a partial update. An empty patch is rejected; content
// and status obey the same rules as on insert.
func ValidatePatch(patch DocumentPatch) error {
	if patch.Content == nil && patch.Status == nil && len(patch.Metadata) == 0 {
		return fmt.Errorf("%w: patch must set at least one of content, status, metadata", ErrValidation)
	}
	if patch.Content != nil {
		if *patch.Content == "" {
			return fmt.Errorf("%w: content cannot be set to empty", ErrValidation)
		}
		if err := validateContent(*patch.Content); err != nil {
			return err
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *patch.Status)
	}
	return nil
}

// ValidateQueryVector checks the dimensionality of a search query vector.
func ValidateQueryVector(vector []float32) error {
	return validateEmbedding("query vector", vector)
}

func validateEmbedding(field string, embedding []float32) error {
	if len(embedding) != EmbeddingDimensions {
		return fmt.Errorf("%w: %s must contain exactly %d dimensions, got %d",
			ErrValidation, field, EmbeddingDimensions, len(embedding))
	}
	return nil
}

func validateContent(content string) error {
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return fmt.Errorf("%w: content exceeds maximum length of %d characters, got %d",
			ErrValidation, MaxContentLength, n)
	}
	return nil
}
