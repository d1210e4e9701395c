// Package corpus stores the documents the index points at. Query winners
// resolve back to documents through a Store once evaluation completes.
package corpus

import (
	"context"
	"time"
)

type Document struct {
	ID        uint32    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Store is the document storage contract. Implementations must be safe for
// concurrent readers; Document returns ErrDocumentNotFound for unknown ids.
type Store interface {
	Put(ctx context.Context, doc Document) error
	Document(ctx context.Context, id uint32) (Document, error)
	Count(ctx context.Context) (int, error)
}
