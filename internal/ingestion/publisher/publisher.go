// Package publisher persists accepted documents to PostgreSQL and publishes
// document events to Kafka for the search replicas to index. Ids are
// assigned by the database; identical content maps onto the same id, so
// replayed requests stay idempotent.
package publisher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/quorumsearch/quorumsearch/internal/ingestion"
	"github.com/quorumsearch/quorumsearch/pkg/kafka"
	"github.com/quorumsearch/quorumsearch/pkg/postgres"
)

// Publisher coordinates document persistence and Kafka event production.
type Publisher struct {
	db       *postgres.Client
	producer *kafka.Producer
	logger   *slog.Logger
}

// New creates a Publisher with the given database and Kafka producer.
func New(db *postgres.Client, producer *kafka.Producer) *Publisher {
	return &Publisher{
		db:       db,
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest stores the document, assigns its id, and publishes a DocumentEvent
// to Kafka. Re-submitting identical content returns the existing id and
// republishes the event, which indexing absorbs as an upsert.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	contentHash := hashContent(req.Title, req.Body)

	var docID int64
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO documents (title, body, tags, content_hash, ingested_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (content_hash) DO UPDATE SET tags = EXCLUDED.tags
			 RETURNING id`,
			req.Title, req.Body, pq.Array(req.Tags), contentHash,
		).Scan(&docID)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	event := kafka.Event{
		Key: strconv.FormatInt(docID, 10),
		Value: ingestion.DocumentEvent{
			ID:         uint32(docID),
			Title:      req.Title,
			Body:       req.Body,
			Tags:       req.Tags,
			IngestedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		// The row exists but no replica will see it until the same
		// content is submitted again. Surface it loudly.
		p.logger.Error("failed to publish document event",
			"doc_id", docID,
			"error", err,
		)
	}

	return &ingestion.IngestResponse{
		DocumentID: uint32(docID),
		Status:     "queued",
	}, nil
}

// hashContent fingerprints a document. The separator keeps distinct
// title/body splits from colliding.
func hashContent(title, body string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return fmt.Sprintf("%x", h.Sum(nil))
}
