// Package phrase answers exact-phrase queries with a suffix array over the
// corpus text. Every document's text is normalized into a token buffer;
// suffixes starting at token boundaries are kept sorted, so a phrase lookup
// is two binary searches bracketing the suffixes it prefixes. Documents
// score by occurrence count.
package phrase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/quorumsearch/quorumsearch/internal/indexer/tokenizer"
	"github.com/quorumsearch/quorumsearch/internal/searcher/sieve"
	"github.com/quorumsearch/quorumsearch/pkg/tracing"
)

type suffix struct {
	docID  uint32
	offset int
}

// snapshot is one immutable built view: searches run entirely against a
// snapshot, so writes landing meanwhile can never move suffixes under them.
type snapshot struct {
	buffers  map[uint32]string
	suffixes []suffix
}

func (sn *snapshot) at(i int) string {
	e := sn.suffixes[i]
	return sn.buffers[e.docID][e.offset:]
}

// SuffixIndex holds the live normalized buffers. Additions mark the index
// dirty; the next search rebuilds the snapshot once.
type SuffixIndex struct {
	mu    sync.Mutex
	texts map[uint32]string
	dirty bool
	snap  *snapshot
}

func NewSuffixIndex() *SuffixIndex {
	return &SuffixIndex{texts: make(map[uint32]string), snap: &snapshot{}}
}

// Add indexes text under docID, replacing any previous text for the same
// document.
func (s *SuffixIndex) Add(docID uint32, text string) {
	buffer := normalize(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	if buffer == "" {
		delete(s.texts, docID)
	} else {
		s.texts[docID] = buffer
	}
	s.dirty = true
}

func (s *SuffixIndex) DocCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

// current returns the up-to-date snapshot, rebuilding it if documents were
// added since the last search.
func (s *SuffixIndex) current() *snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return s.snap
	}
	sn := &snapshot{buffers: make(map[uint32]string, len(s.texts))}
	for docID, buffer := range s.texts {
		sn.buffers[docID] = buffer
		for _, offset := range tokenStarts(buffer) {
			sn.suffixes = append(sn.suffixes, suffix{docID: docID, offset: offset})
		}
	}
	sort.Slice(sn.suffixes, func(i, j int) bool {
		return sn.at(i) < sn.at(j)
	})
	s.snap = sn
	s.dirty = false
	return sn
}

// Search returns up to limit documents containing the phrase, ordered by
// occurrence count then ascending document id. Matching is prefix-based at
// token boundaries: "memory mod" finds "memory model".
func (s *SuffixIndex) Search(ctx context.Context, phrase string, limit int) ([]sieve.Winner, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("phrase search limit %d must be positive", limit)
	}
	needle := normalize(phrase)
	if needle == "" {
		return []sieve.Winner{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("phrase search cancelled: %w", err)
	}
	_, span := tracing.StartChildSpan(ctx, "phrase.search")
	defer span.End()

	sn := s.current()

	// Lower bound: first suffix >= needle. Upper bound: first suffix whose
	// needle-sized prefix sorts above the needle. Everything between has
	// the needle as prefix.
	lo := sort.Search(len(sn.suffixes), func(i int) bool {
		return sn.at(i) >= needle
	})
	hi := lo + sort.Search(len(sn.suffixes)-lo, func(i int) bool {
		suf := sn.at(lo + i)
		if len(suf) > len(needle) {
			suf = suf[:len(needle)]
		}
		return suf > needle
	})

	counts := make(map[uint32]int)
	for i := lo; i < hi; i++ {
		counts[sn.suffixes[i].docID]++
	}
	span.SetAttr("suffix_matches", hi-lo)

	top := sieve.New(limit)
	for docID, count := range counts {
		top.Sift(float64(count), docID)
	}
	return top.Winners(), nil
}

// tokenStarts returns the offsets where tokens begin in a normalized
// buffer (single spaces, no leading or trailing space).
func tokenStarts(buffer string) []int {
	starts := []int{0}
	for i := 0; i < len(buffer); i++ {
		if buffer[i] == ' ' && i+1 < len(buffer) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func normalize(text string) string {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return ""
	}
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return strings.Join(terms, " ")
}
