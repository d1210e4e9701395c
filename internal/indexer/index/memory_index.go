package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/quorumsearch/quorumsearch/internal/indexer/tokenizer"
)

// MemoryIndex is an inverted index held entirely in memory. Posting lists
// are kept sorted by DocID. Reads take copy-on-write snapshots, so cursors
// stay valid while writes continue; one query sees one consistent view of
// every list it opened.
type MemoryIndex struct {
	mu         sync.RWMutex
	terms      map[string]PostingList
	docLengths map[uint32]int
	totalLen   int64
	size       int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		terms:      make(map[string]PostingList),
		docLengths: make(map[uint32]int),
	}
}

// IndexTerms upserts the postings of one document. counts maps each term to
// its occurrence count and docLen is the document's token length, kept for
// length-normalized ranking.
func (m *MemoryIndex) IndexTerms(docID uint32, counts map[string]uint32, docLen int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, seen := m.docLengths[docID]; seen {
		m.totalLen -= int64(old)
	}
	m.docLengths[docID] = docLen
	m.totalLen += int64(docLen)

	for term, freq := range counts {
		m.upsert(term, Posting{DocID: docID, Frequency: freq})
	}
}

// upsert inserts or replaces docID's posting in term's list, preserving
// DocID order. Mid-list writes copy the list first so live cursors keep
// reading the snapshot they started on; plain appends extend in place,
// which existing cursors never see past their own length.
func (m *MemoryIndex) upsert(term string, p Posting) {
	list := m.terms[term]
	i := sort.Search(len(list), func(i int) bool { return list[i].DocID >= p.DocID })
	switch {
	case i == len(list):
		m.terms[term] = append(list, p)
		m.size += postingSize(term)
	case list[i].DocID == p.DocID:
		updated := make(PostingList, len(list))
		copy(updated, list)
		updated[i] = p
		m.terms[term] = updated
	default:
		updated := make(PostingList, 0, len(list)+1)
		updated = append(updated, list[:i]...)
		updated = append(updated, p)
		updated = append(updated, list[i:]...)
		m.terms[term] = updated
		m.size += postingSize(term)
	}
}

func postingSize(term string) int64 {
	return int64(len(term)) + 8
}

// AddDocument tokenizes text and indexes it under docID.
func (m *MemoryIndex) AddDocument(docID uint32, text string) {
	tokens := tokenizer.Tokenize(text)
	m.IndexTerms(docID, tokenizer.TermCounts(tokens), len(tokens))
}

// Postings returns a cursor over term's posting sequence, ascending by
// DocID. Unknown terms yield an exhausted cursor.
func (m *MemoryIndex) Postings(term string) Cursor {
	m.mu.RLock()
	list, ok := m.terms[term]
	m.mu.RUnlock()
	if !ok {
		return Empty()
	}
	return NewSliceCursor(list)
}

// Terms normalizes query text into unique index terms, first occurrence
// order preserved. Words carrying the entity: prefix keep their tag form;
// everything else goes through the tokenizer.
func (m *MemoryIndex) Terms(query string) []string {
	words := strings.Fields(query)
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	add := func(term string) {
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	for _, word := range words {
		if term, ok := tokenizer.ParseEntityTerm(word); ok {
			add(term)
			continue
		}
		for _, tok := range tokenizer.Tokenize(word) {
			add(tok.Term)
		}
	}
	return terms
}

// DocFrequency returns the number of documents term occurs in.
func (m *MemoryIndex) DocFrequency(term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms[term])
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docLengths)
}

func (m *MemoryIndex) DocLength(docID uint32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docLengths[docID]
}

func (m *MemoryIndex) AvgDocLength() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.docLengths) == 0 {
		return 0
	}
	return float64(m.totalLen) / float64(len(m.docLengths))
}

func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms)
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms = make(map[string]PostingList)
	m.docLengths = make(map[uint32]int)
	m.totalLen = 0
	m.size = 0
}
