// Package consumer reads document events from Kafka and applies them to
// the indexer engine. Offsets are committed only after a document is fully
// applied, so a replica restart replays anything unacknowledged.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quorumsearch/quorumsearch/internal/corpus"
	"github.com/quorumsearch/quorumsearch/internal/indexer"
	"github.com/quorumsearch/quorumsearch/internal/ingestion"
	"github.com/quorumsearch/quorumsearch/pkg/kafka"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
)

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that applies document events
// to engine. Undecodable events are counted and skipped; indexing failures
// are returned so the offset stays uncommitted and the event is retried.
// If m is non-nil, indexing progress is reported to it.
func HandleMessage(engine *indexer.Engine, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event",
				"error", err,
				"key", string(key),
			)
			if m != nil {
				m.DocsIndexedTotal.WithLabelValues("decode_error").Inc()
			}
			return nil
		}

		doc := corpus.Document{
			ID:    event.ID,
			Title: event.Title,
			Body:  event.Body,
			Tags:  event.Tags,
		}
		if err := engine.IndexDocument(ctx, doc); err != nil {
			if m != nil {
				m.DocsIndexedTotal.WithLabelValues("failed").Inc()
			}
			return fmt.Errorf("indexing document %d: %w", event.ID, err)
		}

		if m != nil {
			m.DocsIndexedTotal.WithLabelValues("indexed").Inc()
			m.IndexDocuments.Set(float64(engine.Index().DocCount()))
			m.IndexTerms.Set(float64(engine.Index().TermCount()))
		}
		logger.Info("document indexed", "doc_id", event.ID)
		return nil
	}
}
