package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/quorumsearch/quorumsearch/internal/corpus"
	"github.com/quorumsearch/quorumsearch/internal/searcher/executor"
	"github.com/quorumsearch/quorumsearch/internal/searcher/ranker"
	"github.com/quorumsearch/quorumsearch/internal/searcher/sieve"
	"github.com/quorumsearch/quorumsearch/pkg/config"
	apperrors "github.com/quorumsearch/quorumsearch/pkg/errors"
)

type fakeExecutor struct {
	gotQuery string
	gotOpts  executor.Options
	result   *executor.SearchResult
	err      error
	delay    time.Duration
}

func (f *fakeExecutor) Execute(ctx context.Context, query string, opts executor.Options, rkr ranker.Ranker) (*executor.SearchResult, error) {
	f.gotQuery = query
	f.gotOpts = opts
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &executor.SearchResult{Query: query, Terms: []string{}, Hits: []executor.Hit{}}, nil
}

type fakePhrases struct {
	winners []sieve.Winner
	err     error
}

func (f *fakePhrases) Search(ctx context.Context, phrase string, limit int) ([]sieve.Winner, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.winners) > limit {
		return f.winners[:limit], nil
	}
	return f.winners, nil
}

type fakeCorpus map[uint32]corpus.Document

func (f fakeCorpus) Document(ctx context.Context, id uint32) (corpus.Document, error) {
	doc, ok := f[id]
	if !ok {
		return corpus.Document{}, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	return doc, nil
}

type fakeStats struct{}

func (fakeStats) DocCount() int           { return 3 }
func (fakeStats) DocFrequency(string) int { return 1 }
func (fakeStats) DocLength(uint32) int    { return 12 }
func (fakeStats) AvgDocLength() float64   { return 12 }

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultThreshold: 1.0,
		DefaultLimit:     10,
		MaxLimit:         100,
		DefaultRanker:    "tfidf",
		QueryTimeout:     time.Second,
	}
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/phrase", h.Phrase)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("GET /health", h.Health)
	return mux
}

func get(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	newMux(h).ServeHTTP(rec, req)
	return rec
}

func TestSearchReturnsExecutorResult(t *testing.T) {
	exec := &fakeExecutor{result: &executor.SearchResult{
		Query:     "graph databases",
		Terms:     []string{"graph", "databas"},
		Required:  1,
		TotalHits: 2,
		Hits: []executor.Hit{
			{Score: 2.4, Document: corpus.Document{ID: 3, Title: "Graph stores"}},
			{Score: 1.1, Document: corpus.Document{ID: 1, Title: "Relational engines"}},
		},
	}}
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: testSearchConfig()})

	rec := get(t, h, "/api/v1/search?q=graph+databases&threshold=0.5&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if exec.gotQuery != "graph databases" {
		t.Errorf("executor query = %q, want %q", exec.gotQuery, "graph databases")
	}
	if exec.gotOpts.Threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", exec.gotOpts.Threshold)
	}
	if exec.gotOpts.HitCount != 5 {
		t.Errorf("hit count = %d, want 5", exec.gotOpts.HitCount)
	}

	var body executor.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.TotalHits != 2 || len(body.Hits) != 2 {
		t.Fatalf("body = %+v, want 2 hits", body)
	}
	if body.Hits[0].Document.Title != "Graph stores" {
		t.Errorf("top hit = %q, want %q", body.Hits[0].Document.Title, "Graph stores")
	}
}

func TestSearchFoldsOperatorsIntoOptions(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: testSearchConfig()})

	params := url.Values{}
	params.Set("q", `Databases NOT relational "memory model"`)
	rec := get(t, h, "/api/v1/search?"+params.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if exec.gotQuery != "Databases memory model" {
		t.Errorf("executor query = %q, want exclusions and quotes folded out", exec.gotQuery)
	}
	if want := []string{"relat"}; !reflect.DeepEqual(exec.gotOpts.Exclude, want) {
		t.Errorf("exclude = %v, want %v", exec.gotOpts.Exclude, want)
	}
}

func TestSearchOperatorOverridesThreshold(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: testSearchConfig()})

	rec := get(t, h, "/api/v1/search?q=go+OR+rust&threshold=0.9")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if exec.gotOpts.Threshold != 0 {
		t.Errorf("threshold = %v, want 0 for an OR query", exec.gotOpts.Threshold)
	}
}

func TestSearchDefaultsFromConfig(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: testSearchConfig()})

	rec := get(t, h, "/api/v1/search?q=kafka")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if exec.gotOpts.Threshold != 1.0 {
		t.Errorf("threshold = %v, want config default 1.0", exec.gotOpts.Threshold)
	}
	if exec.gotOpts.HitCount != 10 {
		t.Errorf("hit count = %d, want config default 10", exec.gotOpts.HitCount)
	}
}

func TestSearchCapsLimitAtMax(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: testSearchConfig()})

	rec := get(t, h, "/api/v1/search?q=kafka&limit=1000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if exec.gotOpts.HitCount != 100 {
		t.Errorf("hit count = %d, want capped at 100", exec.gotOpts.HitCount)
	}
}

func TestSearchRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{"missing query", "/api/v1/search"},
		{"limit not a number", "/api/v1/search?q=x+y&limit=abc"},
		{"limit zero", "/api/v1/search?q=x+y&limit=0"},
		{"limit negative", "/api/v1/search?q=x+y&limit=-3"},
		{"threshold not a number", "/api/v1/search?q=x+y&threshold=high"},
		{"unknown ranker", "/api/v1/search?q=x+y&ranker=pagerank"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(Deps{Executor: &fakeExecutor{}, Stats: fakeStats{}, Search: testSearchConfig()})
			rec := get(t, h, tc.target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSearchSurfacesOptionValidation(t *testing.T) {
	exec := &fakeExecutor{err: apperrors.Newf(apperrors.ErrInvalidConfiguration, http.StatusBadRequest,
		"match threshold 1.5 outside [0,1]")}
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: testSearchConfig()})

	rec := get(t, h, "/api/v1/search?q=kafka&threshold=1.5")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "threshold") {
		t.Errorf("body = %s, want the validation message surfaced", rec.Body.String())
	}
}

func TestSearchHidesInternalErrors(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("postings file corrupt at offset 12")}
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: testSearchConfig()})

	rec := get(t, h, "/api/v1/search?q=kafka")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "offset 12") {
		t.Errorf("body = %s, leaked internal error detail", rec.Body.String())
	}
}

func TestSearchTimesOut(t *testing.T) {
	exec := &fakeExecutor{delay: 200 * time.Millisecond}
	cfg := testSearchConfig()
	cfg.QueryTimeout = 10 * time.Millisecond
	h := New(Deps{Executor: exec, Stats: fakeStats{}, Search: cfg})

	rec := get(t, h, "/api/v1/search?q=kafka")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "timed out") {
		t.Errorf("body = %s, want timeout message", rec.Body.String())
	}
}

func TestPhraseResolvesMatches(t *testing.T) {
	h := New(Deps{
		Executor: &fakeExecutor{},
		Phrases: &fakePhrases{winners: []sieve.Winner{
			{Score: 2, DocID: 2},
			{Score: 1, DocID: 1},
		}},
		Corpus: fakeCorpus{
			1: {ID: 1, Title: "Inverted index structures"},
			2: {ID: 2, Title: "Search engine internals"},
		},
		Stats:  fakeStats{},
		Search: testSearchConfig(),
	})

	params := url.Values{}
	params.Set("q", "search engine")
	rec := get(t, h, "/api/v1/phrase?"+params.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var body PhraseResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	want := PhraseResult{
		Query: "search engine",
		Total: 2,
		Matches: []PhraseMatch{
			{DocID: 2, Title: "Search engine internals", Occurrences: 2},
			{DocID: 1, Title: "Inverted index structures", Occurrences: 1},
		},
	}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}

func TestPhraseRequiresQuery(t *testing.T) {
	h := New(Deps{Executor: &fakeExecutor{}, Phrases: &fakePhrases{}, Stats: fakeStats{}, Search: testSearchConfig()})
	rec := get(t, h, "/api/v1/phrase")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPhraseFailsWhenMatchUnresolvable(t *testing.T) {
	h := New(Deps{
		Executor: &fakeExecutor{},
		Phrases:  &fakePhrases{winners: []sieve.Winner{{Score: 1, DocID: 9}}},
		Corpus:   fakeCorpus{},
		Stats:    fakeStats{},
		Search:   testSearchConfig(),
	})
	rec := get(t, h, "/api/v1/phrase?q=missing")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestDocumentLookup(t *testing.T) {
	h := New(Deps{
		Executor: &fakeExecutor{},
		Corpus:   fakeCorpus{7: {ID: 7, Title: "Postings on disk", Body: "long body"}},
		Stats:    fakeStats{},
		Search:   testSearchConfig(),
	})

	rec := get(t, h, "/api/v1/documents/7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var doc corpus.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if doc.ID != 7 || doc.Title != "Postings on disk" {
		t.Errorf("doc = %+v, want id 7", doc)
	}

	if rec := get(t, h, "/api/v1/documents/8"); rec.Code != http.StatusNotFound {
		t.Errorf("missing document status = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/api/v1/documents/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, want 400", rec.Code)
	}
}

func TestCacheStatsReportsDisabled(t *testing.T) {
	h := New(Deps{Executor: &fakeExecutor{}, Stats: fakeStats{}, Search: testSearchConfig()})
	rec := get(t, h, "/api/v1/cache/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("body = %s, want disabled marker", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := New(Deps{Executor: &fakeExecutor{}, Stats: fakeStats{}, Search: testSearchConfig()})
	rec := get(t, h, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
