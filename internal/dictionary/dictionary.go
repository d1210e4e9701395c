// Package dictionary provides multi-pattern scanning of text against a
// controlled vocabulary. Entries and scanned text share the index
// tokenizer's normalization, and matching happens on token boundaries, so
// an entry matches regardless of case, punctuation or inflection.
package dictionary

import (
	"strings"
	"sync"

	"github.com/quorumsearch/quorumsearch/internal/indexer/tokenizer"
)

type node struct {
	children map[string]*node
	entry    string
	final    bool
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Dictionary is a token-level trie over normalized vocabulary entries.
type Dictionary struct {
	mu   sync.RWMutex
	root *node
	size int
}

func New(entries ...string) *Dictionary {
	d := &Dictionary{root: newNode()}
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

// Add inserts one vocabulary entry. Entries normalizing to nothing are
// ignored.
func (d *Dictionary) Add(entry string) {
	tokens := tokenizer.Tokenize(entry)
	if len(tokens) == 0 {
		return
	}
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.root
	for _, term := range terms {
		child, ok := n.children[term]
		if !ok {
			child = newNode()
			n.children[term] = child
		}
		n = child
	}
	if !n.final {
		n.final = true
		n.entry = strings.Join(strings.Fields(entry), " ")
		d.size++
	}
}

func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

// Contains reports whether entry, after normalization, is in the
// vocabulary.
func (d *Dictionary) Contains(entry string) bool {
	tokens := tokenizer.Tokenize(entry)
	if len(tokens) == 0 {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.root
	for _, tok := range tokens {
		child, ok := n.children[tok.Term]
		if !ok {
			return false
		}
		n = child
	}
	return n.final
}

// Match is one vocabulary entry found in scanned text. Entry carries the
// entry as originally added, so callers can surface it verbatim. Start and
// End are token positions, End exclusive.
type Match struct {
	Entry string
	Start int
	End   int
}

// Scan finds every vocabulary entry occurring in text. Overlapping and
// nested matches are all reported; matches surface in order of their start
// position.
func (d *Dictionary) Scan(text string) []Match {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	var matches []Match
	for start := range tokens {
		n := d.root
		for end := start; end < len(tokens); end++ {
			child, ok := n.children[tokens[end].Term]
			if !ok {
				break
			}
			n = child
			if n.final {
				matches = append(matches, Match{
					Entry: n.entry,
					Start: start,
					End:   end + 1,
				})
			}
		}
	}
	return matches
}

// Entries returns the distinct entries among matches, first occurrence
// order preserved.
func Entries(matches []Match) []string {
	seen := make(map[string]struct{}, len(matches))
	entries := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m.Entry]; dup {
			continue
		}
		seen[m.Entry] = struct{}{}
		entries = append(entries, m.Entry)
	}
	return entries
}
