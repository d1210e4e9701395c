// Package indexer coordinates everything a document passes through on its
// way into the search-side state: dictionary tag extraction, the document
// store, the inverted index and the phrase index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quorumsearch/quorumsearch/internal/corpus"
	"github.com/quorumsearch/quorumsearch/internal/dictionary"
	"github.com/quorumsearch/quorumsearch/internal/indexer/index"
	"github.com/quorumsearch/quorumsearch/internal/indexer/tokenizer"
	"github.com/quorumsearch/quorumsearch/internal/searcher/phrase"
)

type Engine struct {
	idx     *index.MemoryIndex
	docs    corpus.Store
	phrases *phrase.SuffixIndex
	dict    *dictionary.Dictionary
	logger  *slog.Logger
}

func NewEngine(docs corpus.Store, dict *dictionary.Dictionary) *Engine {
	if dict == nil {
		dict = dictionary.New()
	}
	return &Engine{
		idx:     index.NewMemoryIndex(),
		docs:    docs,
		phrases: phrase.NewSuffixIndex(),
		dict:    dict,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Index exposes the inverted index for query evaluation.
func (e *Engine) Index() *index.MemoryIndex { return e.idx }

// Phrases exposes the phrase index for exact-phrase queries.
func (e *Engine) Phrases() *phrase.SuffixIndex { return e.phrases }

// IndexDocument makes doc searchable. Vocabulary entries found in the text
// are folded into its tags, the document is stored, and the term and
// phrase indexes are updated. The store write comes first so that every
// document the index can return is resolvable. Tags are posted under
// entity terms alongside the body terms, so a query can address them
// exactly with the entity: prefix.
func (e *Engine) IndexDocument(ctx context.Context, doc corpus.Document) error {
	text := doc.Title + " " + doc.Body
	tokens := tokenizer.Tokenize(text)
	doc.Tags = mergeTags(doc.Tags, dictionary.Entries(e.dict.Scan(text)))
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now().UTC()
	}

	if err := e.docs.Put(ctx, doc); err != nil {
		return fmt.Errorf("storing document %d: %w", doc.ID, err)
	}
	counts := tokenizer.TermCounts(tokens)
	for _, tag := range doc.Tags {
		if term := tokenizer.EntityTerm(tag); term != "" {
			counts[term]++
		}
	}
	e.idx.IndexTerms(doc.ID, counts, len(tokens))
	e.phrases.Add(doc.ID, text)

	e.logger.Debug("document indexed",
		"doc_id", doc.ID,
		"token_count", len(tokens),
		"tags", len(doc.Tags),
		"index_docs", e.idx.DocCount(),
	)
	return nil
}

// mergeTags appends found tags to existing ones, keeping first occurrences
// only.
func mergeTags(existing, found []string) []string {
	if len(found) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(found))
	merged := make([]string, 0, len(existing)+len(found))
	for _, tag := range existing {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	for _, tag := range found {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	return merged
}
