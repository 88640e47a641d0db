package http

import "github.com/cqanalytics/vectord/internal/vectorstore"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is the error body returned by every failing endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BulkInsertRequest is the request body for POST /v1/documents/bulk.
type BulkInsertRequest struct {
	Documents []vectorstore.Document `json:"documents"`
}

// SearchRequest is the request body shared by the three search endpoints.
// Vector is required for vector and hybrid search; Query for text and
// hybrid. Weights apply to hybrid only.
type SearchRequest struct {
	Vector        []float32                `json:"vector,omitempty"`
	Query         string                   `json:"query,omitempty"`
	Limit         int                      `json:"limit,omitempty"`
	NumCandidates int                      `json:"numCandidates,omitempty"`
	Filter        vectorstore.SearchFilter `json:"filter,omitempty"`
	VectorWeight  float64                  `json:"vectorWeight,omitempty"`
	TextWeight    float64                  `json:"textWeight,omitempty"`
}

// options shapes the request into store search options.
func (r SearchRequest) options() vectorstore.SearchOptions {
	return vectorstore.SearchOptions{
		Limit:         r.Limit,
		NumCandidates: r.NumCandidates,
		Filter:        r.Filter,
	}
}

// SearchResponse is the response body for the search endpoints.
type SearchResponse struct {
	Results []vectorstore.SearchResult `json:"results"`
	Count   int                        `json:"count"`
}
