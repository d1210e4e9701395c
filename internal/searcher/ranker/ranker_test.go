package ranker

import (
	"testing"

	"github.com/quorumsearch/quorumsearch/internal/indexer/index"
)

// fixedStats is a Stats stub with uniform document statistics.
type fixedStats struct {
	docs   int
	df     int
	docLen int
	avgLen float64
}

func (s fixedStats) DocCount() int           { return s.docs }
func (s fixedStats) DocFrequency(string) int { return s.df }
func (s fixedStats) DocLength(uint32) int    { return s.docLen }
func (s fixedStats) AvgDocLength() float64   { return s.avgLen }

func TestFrequencyRankerSumsFrequencies(t *testing.T) {
	r := NewFrequencyRanker()
	w := TermWeight{Ordinal: 0, Of: 2}

	r.Reset(1)
	r.Update("a", w, index.Posting{DocID: 1, Frequency: 2})
	r.Update("b", w, index.Posting{DocID: 1, Frequency: 3})
	if got := r.Evaluate(); got != 5 {
		t.Errorf("score = %v, want 5", got)
	}

	r.Reset(2)
	if got := r.Evaluate(); got != 0 {
		t.Errorf("score after reset = %v, want 0", got)
	}
}

func TestTFIDFSublinearFrequency(t *testing.T) {
	stats := fixedStats{docs: 4, df: 2, docLen: 10, avgLen: 10}

	// One term matched five times...
	single := NewTFIDFRanker(stats)
	single.Reset(1)
	single.Update("a", TermWeight{Ordinal: 0, Of: 3}, index.Posting{DocID: 1, Frequency: 5})

	// ...scores below three distinct terms with small counts.
	triple := NewTFIDFRanker(stats)
	triple.Reset(2)
	triple.Update("a", TermWeight{Ordinal: 0, Of: 3}, index.Posting{DocID: 2, Frequency: 1})
	triple.Update("b", TermWeight{Ordinal: 1, Of: 3}, index.Posting{DocID: 2, Frequency: 2})
	triple.Update("c", TermWeight{Ordinal: 2, Of: 3}, index.Posting{DocID: 2, Frequency: 1})

	if s1, s3 := single.Evaluate(), triple.Evaluate(); s3 <= s1 {
		t.Errorf("three-term evidence %v should outscore one-term %v", s3, s1)
	}
}

func TestTFIDFMatchedFractionScales(t *testing.T) {
	stats := fixedStats{docs: 10, df: 5, docLen: 10, avgLen: 10}

	partial := NewTFIDFRanker(stats)
	partial.Reset(1)
	partial.Update("a", TermWeight{Ordinal: 0, Of: 4}, index.Posting{DocID: 1, Frequency: 2})

	full := NewTFIDFRanker(stats)
	full.Reset(2)
	full.Update("a", TermWeight{Ordinal: 0, Of: 1}, index.Posting{DocID: 2, Frequency: 2})

	if p, f := partial.Evaluate(), full.Evaluate(); p >= f {
		t.Errorf("1-of-4 match %v should score below 1-of-1 match %v", p, f)
	}
}

func TestBM25HigherFrequencyScoresHigher(t *testing.T) {
	stats := fixedStats{docs: 100, df: 10, docLen: 20, avgLen: 20}
	w := TermWeight{Ordinal: 0, Of: 1}

	low := NewBM25Ranker(stats)
	low.Reset(1)
	low.Update("a", w, index.Posting{DocID: 1, Frequency: 1})

	high := NewBM25Ranker(stats)
	high.Reset(2)
	high.Update("a", w, index.Posting{DocID: 2, Frequency: 4})

	if l, h := low.Evaluate(), high.Evaluate(); h <= l {
		t.Errorf("tf=4 score %v should exceed tf=1 score %v", h, l)
	}
}

func TestBM25PenalizesLongDocuments(t *testing.T) {
	w := TermWeight{Ordinal: 0, Of: 1}
	post := index.Posting{DocID: 1, Frequency: 3}

	short := NewBM25Ranker(fixedStats{docs: 100, df: 10, docLen: 10, avgLen: 20})
	short.Reset(1)
	short.Update("a", w, post)

	long := NewBM25Ranker(fixedStats{docs: 100, df: 10, docLen: 80, avgLen: 20})
	long.Reset(1)
	long.Update("a", w, post)

	if s, l := short.Evaluate(), long.Evaluate(); l >= s {
		t.Errorf("long document score %v should trail short document score %v", l, s)
	}
}

func TestForName(t *testing.T) {
	stats := fixedStats{docs: 1, df: 1, docLen: 1, avgLen: 1}
	for _, name := range []string{"", "tfidf", "frequency", "bm25"} {
		if _, err := ForName(name, stats); err != nil {
			t.Errorf("ForName(%q) failed: %v", name, err)
		}
	}
	if _, err := ForName("pagerank", stats); err == nil {
		t.Error("ForName(pagerank) should fail")
	}
}
