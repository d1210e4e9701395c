package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quorumsearch/quorumsearch/internal/ingestion"
	apperrors "github.com/quorumsearch/quorumsearch/pkg/errors"
)

type fakeIngestor struct {
	gotReq *ingestion.IngestRequest
	resp   *ingestion.IngestResponse
	err    error
}

func (f *fakeIngestor) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func postDocument(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	return rec
}

func TestIngestAcceptsDocument(t *testing.T) {
	fake := &fakeIngestor{resp: &ingestion.IngestResponse{DocumentID: 42, Status: "queued"}}
	h := New(fake, nil)

	rec := postDocument(t, h, `{"title":"Kafka primer","body":"partitions and offsets","tags":["Event Streaming"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	var resp ingestion.IngestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DocumentID != 42 || resp.Status != "queued" {
		t.Errorf("response = %+v, want id 42 status queued", resp)
	}
	if fake.gotReq == nil || fake.gotReq.Title != "Kafka primer" {
		t.Errorf("publisher saw request %+v", fake.gotReq)
	}
	if len(fake.gotReq.Tags) != 1 || fake.gotReq.Tags[0] != "Event Streaming" {
		t.Errorf("publisher saw tags %v", fake.gotReq.Tags)
	}
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	fake := &fakeIngestor{}
	h := New(fake, nil)

	rec := postDocument(t, h, `{"title": "broken`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if fake.gotReq != nil {
		t.Error("publisher called for malformed body")
	}
}

func TestIngestRejectsInvalidFields(t *testing.T) {
	fake := &fakeIngestor{}
	h := New(fake, nil)

	rec := postDocument(t, h, `{"title":"","body":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "validation failed" {
		t.Errorf("error = %q, want validation failed", resp.Error)
	}
	if _, ok := resp.Fields["title"]; !ok {
		t.Error("expected a title field error")
	}
	if _, ok := resp.Fields["body"]; !ok {
		t.Error("expected a body field error")
	}
	if fake.gotReq != nil {
		t.Error("publisher called for invalid request")
	}
}

func TestIngestMapsPublisherErrors(t *testing.T) {
	fake := &fakeIngestor{err: apperrors.ErrUnavailable}
	h := New(fake, nil)

	rec := postDocument(t, h, `{"title":"ok","body":"ok"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "ingestion failed" {
		t.Errorf("error = %q, want ingestion failed", resp["error"])
	}
}

func TestHealthReportsOK(t *testing.T) {
	h := New(&fakeIngestor{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); !strings.Contains(got, `"ok"`) {
		t.Errorf("body = %s, want status ok", got)
	}
}
