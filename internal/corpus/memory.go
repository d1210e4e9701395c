package corpus

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/quorumsearch/quorumsearch/pkg/errors"
)

// MemoryStore keeps documents in a map. It backs single-node deployments
// and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[uint32]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[uint32]Document)}
}

func (s *MemoryStore) Put(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) Document(_ context.Context, id uint32) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}
