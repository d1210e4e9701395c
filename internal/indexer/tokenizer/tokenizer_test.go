package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeStemsAndDropsStopWords(t *testing.T) {
	tokens := Tokenize("The runner was running quickly")

	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	want := []string{"runner", "run", "quickli"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("terms = %v, want %v", terms, want)
	}
}

func TestTokenizePositionsCountKeptTokens(t *testing.T) {
	tokens := Tokenize("search the index and rank")
	for i, tok := range tokens {
		if tok.Position != i {
			t.Errorf("token %q: position = %d, want %d", tok.Term, tok.Position, i)
		}
	}
	if len(tokens) != 3 {
		t.Errorf("got %d tokens, want 3", len(tokens))
	}
}

func TestTokenizeSplitsOnNonAlphanumeric(t *testing.T) {
	tokens := Tokenize("full-text_search/v2")
	if len(tokens) == 0 {
		t.Fatal("no tokens produced")
	}
	for _, tok := range tokens {
		for _, r := range tok.Term {
			if r == '-' || r == '_' || r == '/' {
				t.Errorf("token %q kept a separator", tok.Term)
			}
		}
	}
}

func TestTokenizeEmptyAndShortInput(t *testing.T) {
	if tokens := Tokenize(""); len(tokens) != 0 {
		t.Errorf("empty input produced %v", tokens)
	}
	if tokens := Tokenize("a I x"); len(tokens) != 0 {
		t.Errorf("single-char words produced %v", tokens)
	}
}

func TestTermCounts(t *testing.T) {
	counts := TermCounts([]Token{
		{Term: "go", Position: 0},
		{Term: "index", Position: 1},
		{Term: "go", Position: 2},
	})
	if counts["go"] != 2 || counts["index"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestEntityTerm(t *testing.T) {
	cases := []struct {
		tag  string
		want string
	}{
		{"New York", "entity:new_york"},
		{"machine learning", "entity:machine_learning"},
		{"state-of-the-art", "entity:state_of_the_art"},
		{"  Garbage   Collection  ", "entity:garbage_collection"},
		{"GraphQL", "entity:graphql"},
		{"", ""},
		{"  --  ", ""},
	}
	for _, c := range cases {
		if got := EntityTerm(c.tag); got != c.want {
			t.Errorf("EntityTerm(%q) = %q, want %q", c.tag, got, c.want)
		}
	}
}

func TestParseEntityTerm(t *testing.T) {
	cases := []struct {
		word string
		want string
		ok   bool
	}{
		{"entity:new_york", "entity:new_york", true},
		{"Entity:New_York", "entity:new_york", true},
		{"entity:new-york", "entity:new_york", true},
		{"entity:new_york,", "entity:new_york", true},
		{"entity:", "", false},
		{"entity:__", "", false},
		{"entitlement", "", false},
		{"york", "", false},
	}
	for _, c := range cases {
		got, ok := ParseEntityTerm(c.word)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseEntityTerm(%q) = %q, %v, want %q, %v", c.word, got, ok, c.want, c.ok)
		}
	}
}

// A tag and the query word addressing it must land on the same term no
// matter which separators or case either side used.
func TestEntityTermRoundTrip(t *testing.T) {
	for _, tag := range []string{"New York", "state-of-the-art", "B+ Tree"} {
		indexed := EntityTerm(tag)
		parsed, ok := ParseEntityTerm("entity:" + strings.ReplaceAll(tag, " ", "_"))
		if !ok || parsed != indexed {
			t.Errorf("tag %q: indexed %q, parsed %q (ok=%v)", tag, indexed, parsed, ok)
		}
	}
}
