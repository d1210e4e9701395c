// Package integration exercises the full in-process pipeline: document
// events are applied through the index consumer's message handler exactly
// as Kafka delivery would, then queried back through the executor and the
// HTTP search handler.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/quorumsearch/quorumsearch/internal/corpus"
	"github.com/quorumsearch/quorumsearch/internal/dictionary"
	"github.com/quorumsearch/quorumsearch/internal/indexer"
	"github.com/quorumsearch/quorumsearch/internal/indexer/consumer"
	"github.com/quorumsearch/quorumsearch/internal/ingestion"
	"github.com/quorumsearch/quorumsearch/internal/searcher/executor"
	"github.com/quorumsearch/quorumsearch/internal/searcher/handler"
	"github.com/quorumsearch/quorumsearch/internal/searcher/parser"
	"github.com/quorumsearch/quorumsearch/internal/searcher/ranker"
	"github.com/quorumsearch/quorumsearch/pkg/config"
)

// The seeded corpus realizes a fixed term/frequency matrix after
// tokenization (title and body together): kafka={1:2, 3:1},
// golang={2:5, 3:2}, quorum={3:1, 4:4}. Doc 3 is the only document
// containing all three terms.
var pipelineEvents = []ingestion.DocumentEvent{
	{ID: 1, Title: "Kafka overview", Body: "Getting started with kafka brokers"},
	{ID: 2, Title: "Golang deep dive", Body: "golang routines, golang channels, golang maps, golang slices"},
	{ID: 3, Title: "Kafka pipelines in Golang", Body: "reaching quorum with golang workers", Tags: []string{"Event Streaming"}},
	{ID: 4, Title: "Quorum reads and quorum writes", Body: "a quorum of replicas acknowledges each quorum decision"},
}

// seedPipeline builds an engine and delivers every seed event through the
// consumer's message handler.
func seedPipeline(t *testing.T) (*indexer.Engine, corpus.Store) {
	t.Helper()
	store := corpus.NewMemoryStore()
	engine := indexer.NewEngine(store, dictionary.New("quorum"))
	handle := consumer.HandleMessage(engine, nil)
	ctx := context.Background()
	for _, event := range pipelineEvents {
		value, err := json.Marshal(event)
		if err != nil {
			t.Fatal(err)
		}
		key := []byte(strconv.Itoa(int(event.ID)))
		if err := handle(ctx, key, value); err != nil {
			t.Fatalf("applying event %d: %v", event.ID, err)
		}
	}
	return engine, store
}

func execute(t *testing.T, engine *indexer.Engine, store corpus.Store, query string, threshold float64) *executor.SearchResult {
	t.Helper()
	exec := executor.New(engine.Index(), store)
	rkr := ranker.NewTFIDFRanker(engine.Index())
	res, err := exec.Execute(context.Background(), query, executor.Options{
		Threshold: threshold,
		HitCount:  10,
	}, rkr)
	if err != nil {
		t.Fatalf("executing %q: %v", query, err)
	}
	return res
}

func hitIDs(res *executor.SearchResult) []uint32 {
	ids := make([]uint32, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.Document.ID
	}
	return ids
}

func TestPipelineThresholdScenario(t *testing.T) {
	engine, store := seedPipeline(t)

	t.Run("two_of_three", func(t *testing.T) {
		res := execute(t, engine, store, "kafka golang quorum", 0.67)
		if res.Required != 2 {
			t.Fatalf("required = %d, want 2", res.Required)
		}
		if res.TotalHits != 1 || len(res.Hits) != 1 || res.Hits[0].Document.ID != 3 {
			t.Errorf("hits = %v, want only doc 3", hitIDs(res))
		}
	})

	t.Run("one_of_three", func(t *testing.T) {
		res := execute(t, engine, store, "kafka golang quorum", 0)
		if res.Required != 1 {
			t.Fatalf("required = %d, want 1", res.Required)
		}
		if res.TotalHits != 4 || len(res.Hits) != 4 {
			t.Fatalf("hits = %v, want all four documents", hitIDs(res))
		}
		// Doc 3 matches every query term, so coverage-weighted scoring
		// puts it first.
		if res.Hits[0].Document.ID != 3 {
			t.Errorf("top hit = %d, want doc 3", res.Hits[0].Document.ID)
		}
	})

	t.Run("all_of_three", func(t *testing.T) {
		res := execute(t, engine, store, "kafka golang quorum", 1.0)
		if res.Required != 3 {
			t.Fatalf("required = %d, want 3", res.Required)
		}
		if res.TotalHits != 1 || len(res.Hits) != 1 || res.Hits[0].Document.ID != 3 {
			t.Errorf("hits = %v, want only doc 3", hitIDs(res))
		}
	})

	t.Run("half_of_four_with_unknown_term", func(t *testing.T) {
		// erlang is absent from the corpus: it still counts toward M,
		// so half of four terms means two matches required.
		res := execute(t, engine, store, "kafka golang quorum erlang", 0.5)
		if len(res.Terms) != 4 {
			t.Fatalf("terms = %v, want 4 unique terms", res.Terms)
		}
		if res.Required != 2 {
			t.Fatalf("required = %d, want 2", res.Required)
		}
		if res.TotalHits != 1 || len(res.Hits) != 1 || res.Hits[0].Document.ID != 3 {
			t.Errorf("hits = %v, want only doc 3", hitIDs(res))
		}
	})
}

func TestPipelineEntityTags(t *testing.T) {
	engine, store := seedPipeline(t)

	// The dictionary found "quorum" in docs 3 and 4, so both carry the tag
	// and answer the entity lookup.
	res := execute(t, engine, store, "entity:quorum", 0)
	if res.TotalHits != 2 {
		t.Fatalf("entity:quorum hits = %v, want docs 3 and 4", hitIDs(res))
	}

	// The client-supplied tag on doc 3 is addressable too, with separators
	// and case normalized away.
	res = execute(t, engine, store, "entity:Event-Streaming", 0)
	if res.TotalHits != 1 || res.Hits[0].Document.ID != 3 {
		t.Errorf("entity:Event-Streaming hits = %v, want doc 3", hitIDs(res))
	}
}

func TestPipelineExclusion(t *testing.T) {
	engine, store := seedPipeline(t)
	exec := executor.New(engine.Index(), store)

	plan := parser.Parse("kafka NOT entity:event_streaming")
	rkr := ranker.NewTFIDFRanker(engine.Index())
	res, err := exec.Execute(context.Background(), plan.EffectiveQuery(), executor.Options{
		Threshold: plan.Threshold(0),
		HitCount:  10,
		Exclude:   plan.Exclude,
	}, rkr)
	if err != nil {
		t.Fatalf("executing exclusion query: %v", err)
	}
	// kafka matches docs 1 and 3; the tag exclusion removes doc 3.
	if res.TotalHits != 1 || len(res.Hits) != 1 || res.Hits[0].Document.ID != 1 {
		t.Errorf("hits = %v, want only doc 1", hitIDs(res))
	}
}

func TestPipelineSearchHandler(t *testing.T) {
	engine, store := seedPipeline(t)
	h := handler.New(handler.Deps{
		Executor: executor.New(engine.Index(), store),
		Phrases:  engine.Phrases(),
		Corpus:   store,
		Stats:    engine.Index(),
		Search: config.SearchConfig{
			DefaultThreshold: 1.0,
			DefaultLimit:     10,
			MaxLimit:         100,
			DefaultRanker:    "tfidf",
			QueryTimeout:     time.Second,
		},
	})

	t.Run("search", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=kafka+golang+quorum&threshold=0.67", nil)
		rec := httptest.NewRecorder()
		h.Search(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var res executor.SearchResult
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if res.Required != 2 || res.TotalHits != 1 || res.Hits[0].Document.ID != 3 {
			t.Errorf("response = %+v, want doc 3 at two-of-three", res)
		}
	})

	t.Run("search_rejects_bad_threshold", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=kafka&threshold=1.5", nil)
		rec := httptest.NewRecorder()
		h.Search(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 for threshold outside [0,1]", rec.Code)
		}
	})

	t.Run("phrase", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/phrase?q=quorum+of+replicas", nil)
		rec := httptest.NewRecorder()
		h.Phrase(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var res handler.PhraseResult
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if res.Total != 1 || res.Matches[0].DocID != 4 {
			t.Errorf("phrase matches = %+v, want doc 4", res.Matches)
		}
		if res.Matches[0].Title != "Quorum reads and quorum writes" {
			t.Errorf("match title = %q", res.Matches[0].Title)
		}
	})
}

func TestPipelineReplayedEventUpserts(t *testing.T) {
	engine, store := seedPipeline(t)
	handle := consumer.HandleMessage(engine, nil)
	ctx := context.Background()

	// Redelivery of doc 2 with revised content must not grow the corpus.
	revised := ingestion.DocumentEvent{
		ID:    2,
		Title: "Golang deep dive",
		Body:  "golang services publishing to kafka",
	}
	value, err := json.Marshal(revised)
	if err != nil {
		t.Fatal(err)
	}
	if err := handle(ctx, []byte("2"), value); err != nil {
		t.Fatalf("replaying event: %v", err)
	}

	if n := engine.Index().DocCount(); n != 4 {
		t.Errorf("DocCount = %d, want 4 after replay", n)
	}
	res := execute(t, engine, store, "kafka", 1.0)
	found := false
	for _, id := range hitIDs(res) {
		if id == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("kafka hits = %v, want doc 2 after its revision mentions kafka", hitIDs(res))
	}
	doc, err := store.Document(ctx, 2)
	if err != nil {
		t.Fatalf("resolving doc 2: %v", err)
	}
	if doc.Body != revised.Body {
		t.Errorf("stored body = %q, want the revision", doc.Body)
	}
}
