package index

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex keeps documents in a map keyed by URL.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]Document
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]Document)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, doc Document) error {
	if doc.URL == "" {
		return fmt.Errorf("upsert: document has no url")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.URL] = doc
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, q Query) ([]Document, error) {
	return filterDocuments(m.snapshot(), q), nil
}

func (m *MemoryIndex) Cities(ctx context.Context) ([]string, error) {
	return distinctCities(m.snapshot()), nil
}

// Get returns the document stored under url.
func (m *MemoryIndex) Get(url string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[url]
	return d, ok
}

// Len returns the number of documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Close() error {
	return nil
}

func (m *MemoryIndex) snapshot() []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	return docs
}
