// Package tool provides the external capabilities agents call into:
// document stores, web search, page fetching, and markdown handling.
//
// Each capability is defined as a small interface so agents can be wired
// against in-memory fakes in tests and real backends in production.
package tool

import "context"

// SearchResult is a document store hit.
type SearchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// DocumentStore abstracts a searchable document collection. Every call
// carries the acting user's identity; implementations decide what it means
// (ownership, audit, quota). Anonymous callers pass turn.AnonymousUser.
type DocumentStore interface {
	// SearchDocuments returns the documents matching the query, best first.
	SearchDocuments(ctx context.Context, query, userID string, limit int) ([]SearchResult, error)

	// GetDocumentContent returns the full body of a document.
	GetDocumentContent(ctx context.Context, id, userID string) (string, error)

	// CreateFile stores a new document owned by userID and returns its id.
	CreateFile(ctx context.Context, title, content, userID string) (string, error)

	// UpdateDocumentContent replaces the body of an existing document.
	UpdateDocumentContent(ctx context.Context, id, content, userID string) error
}

// WebResult is a single web search hit.
type WebResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// WebSearcher abstracts a web search backend.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}
