// Package parser turns raw query text into an executable plan. The syntax
// keeps to three operators and quoting: AND requires every term, OR lets
// any term qualify, NOT excludes the following term's documents, and a
// double-quoted run of words is matched as an exact phrase. A word with
// the entity: prefix addresses a document tag verbatim instead of going
// through the tokenizer.
package parser

import (
	"strings"

	"github.com/quorumsearch/quorumsearch/internal/indexer/tokenizer"
)

type Mode int

const (
	// ModeThreshold honors the threshold the caller asked for.
	ModeThreshold Mode = iota
	// ModeAll requires every term (AND).
	ModeAll
	// ModeAny lets a single matching term qualify (OR).
	ModeAny
)

type Plan struct {
	// Terms holds the normalized required terms and Words the surface
	// words they came from, both in first-seen order.
	Terms    []string
	Words    []string
	Exclude  []string
	Phrase   string
	Mode     Mode
	RawQuery string
}

// Threshold resolves the effective match ratio for this plan. requested is
// used as-is unless an AND/OR operator fixed the mode.
func (p *Plan) Threshold(requested float64) float64 {
	switch p.Mode {
	case ModeAll:
		return 1.0
	case ModeAny:
		return 0
	default:
		return requested
	}
}

// EffectiveQuery returns the text the evaluator should derive its terms
// from: the kept words plus any quoted span, with operators and excluded
// words removed. A quoted span still contributes its words to threshold
// matching; exact adjacency is the phrase index's concern.
func (p *Plan) EffectiveQuery() string {
	parts := append([]string(nil), p.Words...)
	if p.Phrase != "" {
		parts = append(parts, p.Phrase)
	}
	return strings.Join(parts, " ")
}

func Parse(query string) *Plan {
	plan := &Plan{
		Terms:    make([]string, 0),
		Words:    make([]string, 0),
		Exclude:  make([]string, 0),
		Mode:     ModeThreshold,
		RawQuery: query,
	}
	rest := query
	if open := strings.Index(rest, `"`); open >= 0 {
		if end := strings.Index(rest[open+1:], `"`); end >= 0 {
			plan.Phrase = rest[open+1 : open+1+end]
			rest = rest[:open] + " " + rest[open+2+end:]
		}
	}
	if strings.TrimSpace(rest) == "" {
		return plan
	}

	seenTerms := make(map[string]struct{})
	seenExclude := make(map[string]struct{})
	excludeNext := false
	for _, word := range strings.Fields(rest) {
		switch strings.ToUpper(word) {
		case "AND":
			plan.Mode = ModeAll
			continue
		case "OR":
			plan.Mode = ModeAny
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		if term, ok := tokenizer.ParseEntityTerm(word); ok {
			if excludeNext {
				excludeNext = false
				if _, dup := seenExclude[term]; !dup {
					seenExclude[term] = struct{}{}
					plan.Exclude = append(plan.Exclude, term)
				}
				continue
			}
			if _, dup := seenTerms[term]; !dup {
				seenTerms[term] = struct{}{}
				plan.Terms = append(plan.Terms, term)
				plan.Words = append(plan.Words, word)
			}
			continue
		}
		tokens := tokenizer.Tokenize(word)
		if len(tokens) == 0 {
			excludeNext = false
			continue
		}
		if excludeNext {
			excludeNext = false
			for _, tok := range tokens {
				if _, dup := seenExclude[tok.Term]; dup {
					continue
				}
				seenExclude[tok.Term] = struct{}{}
				plan.Exclude = append(plan.Exclude, tok.Term)
			}
			continue
		}
		added := false
		for _, tok := range tokens {
			if _, dup := seenTerms[tok.Term]; dup {
				continue
			}
			seenTerms[tok.Term] = struct{}{}
			plan.Terms = append(plan.Terms, tok.Term)
			added = true
		}
		if added {
			plan.Words = append(plan.Words, word)
		}
	}
	return plan
}
