package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memoryDoc struct {
	id      string
	title   string
	content string
	owner   string
}

// InMemoryDocumentStore is a DocumentStore backed by a map. It scores
// documents by naive term overlap, which is enough for tests and demos.
// Documents created with an empty owner are visible to everyone; otherwise
// only the owning user can see them.
type InMemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*memoryDoc
}

var _ DocumentStore = (*InMemoryDocumentStore)(nil)

// NewInMemoryDocumentStore creates an empty store.
func NewInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{docs: make(map[string]*memoryDoc)}
}

func (s *InMemoryDocumentStore) SearchDocuments(ctx context.Context, query, userID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	terms := strings.Fields(strings.ToLower(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, d := range s.docs {
		if !d.visibleTo(userID) {
			continue
		}
		score := overlapScore(terms, strings.ToLower(d.title+" "+d.content))
		if score == 0 {
			continue
		}
		results = append(results, SearchResult{
			ID:      d.id,
			Title:   d.title,
			Snippet: snippet(d.content, 200),
			Score:   score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *InMemoryDocumentStore) GetDocumentContent(ctx context.Context, id, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok || !d.visibleTo(userID) {
		return "", fmt.Errorf("document %s not found", id)
	}
	return d.content, nil
}

func (s *InMemoryDocumentStore) CreateFile(ctx context.Context, title, content, userID string) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[id] = &memoryDoc{id: id, title: title, content: content, owner: userID}
	return id, nil
}

func (s *InMemoryDocumentStore) UpdateDocumentContent(ctx context.Context, id, content, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok || !d.visibleTo(userID) {
		return fmt.Errorf("document %s not found", id)
	}
	d.content = content
	return nil
}

func (d *memoryDoc) visibleTo(userID string) bool {
	return d.owner == "" || d.owner == userID
}

func overlapScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
