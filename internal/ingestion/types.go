// Package ingestion defines the request/response types and the Kafka event
// schema used by the document ingestion pipeline.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
type IngestRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

// IngestResponse is returned to the caller after a document is accepted.
type IngestResponse struct {
	DocumentID uint32 `json:"document_id"`
	Status     string `json:"status"`
}

// DocumentEvent is the Kafka message payload produced once a document has
// an id and is queued for indexing. Search replicas consume these events to
// build their local indexes.
type DocumentEvent struct {
	ID         uint32    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Tags       []string  `json:"tags,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}
