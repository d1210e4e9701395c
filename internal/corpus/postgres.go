package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "github.com/quorumsearch/quorumsearch/pkg/errors"
	"github.com/quorumsearch/quorumsearch/pkg/postgres"
	"github.com/quorumsearch/quorumsearch/pkg/resilience"
)

// PostgresStore persists documents in the documents table, shared with the
// ingestion service:
//
//	CREATE TABLE documents (
//	    id           BIGSERIAL PRIMARY KEY,
//	    title        TEXT NOT NULL,
//	    body         TEXT NOT NULL,
//	    tags         TEXT[],
//	    content_hash TEXT UNIQUE,
//	    ingested_at  TIMESTAMPTZ,
//	    indexed_at   TIMESTAMPTZ
//	);
//
// Ingestion fills content_hash and ingested_at when it assigns an id;
// indexing stamps indexed_at once the document is searchable. Reads retry
// on transient failures; writes are idempotent upserts so replaying an
// ingestion event is harmless.
type PostgresStore struct {
	client *postgres.Client
	retry  resilience.RetryConfig
}

func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{client: client}
}

func (s *PostgresStore) Put(ctx context.Context, doc Document) error {
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO documents (id, title, body, tags, indexed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, body = EXCLUDED.body,
		    tags = EXCLUDED.tags, indexed_at = EXCLUDED.indexed_at`,
		int64(doc.ID), doc.Title, doc.Body, pq.Array(doc.Tags), doc.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting document %d: %w", doc.ID, err)
	}
	return nil
}

func (s *PostgresStore) Document(ctx context.Context, id uint32) (Document, error) {
	var doc Document
	var docID int64
	notFound := false
	err := resilience.Retry(ctx, "corpus-read", s.retry, func() error {
		row := s.client.DB.QueryRowContext(ctx, `
			SELECT id, title, body, tags, indexed_at
			FROM documents WHERE id = $1`, int64(id))
		scanErr := row.Scan(&docID, &doc.Title, &doc.Body, pq.Array(&doc.Tags), &doc.IndexedAt)
		if errors.Is(scanErr, sql.ErrNoRows) {
			// Not transient, stop retrying.
			notFound = true
			return nil
		}
		return scanErr
	})
	if err != nil {
		return Document{}, fmt.Errorf("reading document %d: %w", id, err)
	}
	if notFound {
		return Document{}, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	doc.ID = uint32(docID)
	return doc, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}
