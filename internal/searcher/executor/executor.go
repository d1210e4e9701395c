// Package executor evaluates N-of-M threshold queries over the inverted
// index. A document qualifies when it contains at least N of the M unique
// query terms, N = floor(threshold * M); N = M is a plain AND, N = 1 an OR.
// Evaluation is a synchronized scan over one posting cursor per term and
// stops as soon as fewer than N cursors remain live, so its cost follows
// the postings actually scanned, not the full length of every list.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/quorumsearch/quorumsearch/internal/corpus"
	"github.com/quorumsearch/quorumsearch/internal/indexer/index"
	"github.com/quorumsearch/quorumsearch/internal/searcher/merger"
	"github.com/quorumsearch/quorumsearch/internal/searcher/ranker"
	"github.com/quorumsearch/quorumsearch/internal/searcher/sieve"
	apperrors "github.com/quorumsearch/quorumsearch/pkg/errors"
	"github.com/quorumsearch/quorumsearch/pkg/tracing"
)

// Index is the inverted-index view the evaluator consumes.
type Index interface {
	Terms(query string) []string
	Postings(term string) index.Cursor
}

// Corpus resolves winning document ids after evaluation.
type Corpus interface {
	Document(ctx context.Context, id uint32) (corpus.Document, error)
}

// Options configure one evaluation.
type Options struct {
	// Threshold is the match ratio T in [0,1]. A document qualifies when
	// it matches at least floor(T*M) of the M unique query terms; values
	// rounding down to zero still require one match.
	Threshold float64
	// HitCount caps the number of results returned. Must be positive.
	HitCount int
	// Exclude lists terms whose documents are dropped from the results.
	Exclude []string
}

type Hit struct {
	Score    float64         `json:"score"`
	Document corpus.Document `json:"document"`
}

type SearchResult struct {
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	Required  int      `json:"required"`
	TotalHits int      `json:"total_hits"`
	Hits      []Hit    `json:"hits"`
	Scanned   int      `json:"-"`
}

type Executor struct {
	idx    Index
	corpus Corpus
	logger *slog.Logger
}

func New(idx Index, corpus Corpus) *Executor {
	return &Executor{
		idx:    idx,
		corpus: corpus,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// termCursor tracks one query term's scan position. A cursor either holds
// its next unread posting (live) or is exhausted.
type termCursor struct {
	term   string
	weight ranker.TermWeight
	cur    index.Cursor
	head   index.Posting
	live   bool
}

// Execute runs query against the index and returns up to HitCount hits,
// best score first. Option validation happens before any posting sequence
// is touched; a failure while advancing a cursor aborts the whole
// evaluation with no partial result. Terms absent from the index supply
// exhausted cursors: they count toward M but can never contribute a match.
func (e *Executor) Execute(ctx context.Context, query string, opts Options, rkr ranker.Ranker) (*SearchResult, error) {
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfiguration, http.StatusBadRequest,
			"match threshold %v outside [0,1]", opts.Threshold)
	}
	if opts.HitCount <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfiguration, http.StatusBadRequest,
			"hit count %d must be positive", opts.HitCount)
	}

	ctx, span := tracing.StartChildSpan(ctx, "executor.execute")
	defer span.End()

	terms := e.idx.Terms(query)
	m := len(terms)
	result := &SearchResult{Query: query, Terms: terms, Hits: []Hit{}}
	if m == 0 {
		return result, nil
	}

	n := int(opts.Threshold * float64(m))
	if n < 1 {
		n = 1
	}
	result.Required = n

	cursors := make([]termCursor, m)
	live := 0
	for i, term := range terms {
		tc := termCursor{
			term:   term,
			weight: ranker.TermWeight{Ordinal: i, Of: m},
			cur:    e.idx.Postings(term),
		}
		ok, err := tc.cur.Next()
		if err != nil {
			return nil, fmt.Errorf("opening postings for %q: %w", term, err)
		}
		if ok {
			tc.head = tc.cur.Posting()
			tc.live = true
			live++
		}
		cursors[i] = tc
	}

	excluded, err := e.exclusionStream(opts.Exclude)
	if err != nil {
		return nil, err
	}

	s := sieve.New(opts.HitCount)
	scanned := live
	for live >= n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation cancelled: %w", err)
		}

		// The next candidate is the minimum id among live cursors.
		var candidate uint32
		found := false
		for i := range cursors {
			c := &cursors[i]
			if c.live && (!found || c.head.DocID < candidate) {
				candidate = c.head.DocID
				found = true
			}
		}
		if !found {
			break
		}

		count := 0
		for i := range cursors {
			if cursors[i].live && cursors[i].head.DocID == candidate {
				count++
			}
		}

		if count >= n {
			drop, err := excluded(candidate)
			if err != nil {
				return nil, err
			}
			if !drop {
				rkr.Reset(candidate)
				for i := range cursors {
					c := &cursors[i]
					if c.live && c.head.DocID == candidate {
						rkr.Update(c.term, c.weight, c.head)
					}
				}
				s.Sift(rkr.Evaluate(), candidate)
				result.TotalHits++
			}
		}

		// Every cursor sitting on the candidate moves on, qualified or not.
		for i := range cursors {
			c := &cursors[i]
			if !c.live || c.head.DocID != candidate {
				continue
			}
			ok, err := c.cur.Next()
			if err != nil {
				return nil, fmt.Errorf("advancing postings for %q: %w", c.term, err)
			}
			if ok {
				c.head = c.cur.Posting()
				scanned++
			} else {
				c.live = false
				live--
			}
		}
	}
	result.Scanned = scanned
	span.SetAttr("postings_scanned", scanned)

	winners := s.Winners()
	result.Hits = make([]Hit, 0, len(winners))
	for _, w := range winners {
		doc, err := e.corpus.Document(ctx, w.DocID)
		if err != nil {
			return nil, fmt.Errorf("resolving winner %d: %w", w.DocID, err)
		}
		result.Hits = append(result.Hits, Hit{Score: w.Score, Document: doc})
	}

	e.logger.Info("query executed",
		"query", query,
		"terms", m,
		"required", n,
		"candidates", result.TotalHits,
		"results", len(result.Hits),
		"postings_scanned", scanned,
	)
	return result, nil
}

// exclusionStream unions the excluded terms' postings into one ascending
// stream and returns a membership probe for candidate ids. Candidates
// arrive in ascending order, so the stream only ever moves forward.
func (e *Executor) exclusionStream(terms []string) (func(uint32) (bool, error), error) {
	if len(terms) == 0 {
		return func(uint32) (bool, error) { return false, nil }, nil
	}
	stream := e.idx.Postings(terms[0])
	for _, term := range terms[1:] {
		stream = merger.Union(stream, e.idx.Postings(term))
	}
	var head index.Posting
	hold := false
	primed := false
	return func(id uint32) (bool, error) {
		if !primed {
			primed = true
			ok, err := stream.Next()
			if err != nil {
				return false, fmt.Errorf("opening exclusion postings: %w", err)
			}
			if ok {
				head = stream.Posting()
				hold = true
			}
		}
		for hold && head.DocID < id {
			ok, err := stream.Next()
			if err != nil {
				return false, fmt.Errorf("advancing exclusion postings: %w", err)
			}
			if !ok {
				hold = false
				break
			}
			head = stream.Posting()
		}
		return hold && head.DocID == id, nil
	}, nil
}
