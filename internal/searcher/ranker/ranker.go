// Package ranker provides per-document scoring driven by term-match
// evidence. A Ranker accumulates one document at a time: Reset starts a
// document, Update folds in one matching term's posting, Evaluate returns
// the accumulated score. Ranker instances are stateful and scoped to a
// single evaluation; they are not safe for concurrent use.
package ranker

import (
	"fmt"
	"math"

	"github.com/quorumsearch/quorumsearch/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

// TermWeight locates one query term among the M unique terms of a query.
type TermWeight struct {
	Ordinal int
	Of      int
}

type Ranker interface {
	Reset(docID uint32)
	Update(term string, weight TermWeight, posting index.Posting)
	Evaluate() float64
}

// Stats is the index-wide statistics view the scoring formulas read.
type Stats interface {
	DocCount() int
	DocFrequency(term string) int
	DocLength(docID uint32) int
	AvgDocLength() float64
}

// ForName returns the ranker registered under name: "frequency", "tfidf"
// or "bm25". The empty name selects tfidf.
func ForName(name string, stats Stats) (Ranker, error) {
	switch name {
	case "", "tfidf":
		return NewTFIDFRanker(stats), nil
	case "frequency":
		return NewFrequencyRanker(), nil
	case "bm25":
		return NewBM25Ranker(stats), nil
	default:
		return nil, fmt.Errorf("unknown ranker %q", name)
	}
}

// FrequencyRanker scores a document by the raw sum of its matching term
// frequencies.
type FrequencyRanker struct {
	score float64
}

func NewFrequencyRanker() *FrequencyRanker { return &FrequencyRanker{} }

func (r *FrequencyRanker) Reset(uint32) { r.score = 0 }

func (r *FrequencyRanker) Update(_ string, _ TermWeight, p index.Posting) {
	r.score += float64(p.Frequency)
}

func (r *FrequencyRanker) Evaluate() float64 { return r.score }

// TFIDFRanker scores with sublinear term frequency (1 + ln tf) weighted by
// inverse document frequency, scaled by the fraction of query terms the
// document matched.
type TFIDFRanker struct {
	stats   Stats
	score   float64
	matched int
	of      int
}

func NewTFIDFRanker(stats Stats) *TFIDFRanker { return &TFIDFRanker{stats: stats} }

func (r *TFIDFRanker) Reset(uint32) {
	r.score = 0
	r.matched = 0
	r.of = 0
}

func (r *TFIDFRanker) Update(term string, weight TermWeight, p index.Posting) {
	if p.Frequency == 0 {
		return
	}
	r.matched++
	r.of = weight.Of
	tf := 1 + math.Log(float64(p.Frequency))
	r.score += tf * r.idf(term)
}

func (r *TFIDFRanker) Evaluate() float64 {
	if r.of == 0 {
		return r.score
	}
	return r.score * float64(r.matched) / float64(r.of)
}

func (r *TFIDFRanker) idf(term string) float64 {
	df := r.stats.DocFrequency(term)
	if df <= 0 {
		return 1
	}
	return math.Log(1 + float64(r.stats.DocCount())/float64(df))
}

// BM25Ranker scores with BM25 using index statistics for document length
// normalization.
type BM25Ranker struct {
	stats    Stats
	score    float64
	lenRatio float64
}

func NewBM25Ranker(stats Stats) *BM25Ranker { return &BM25Ranker{stats: stats} }

func (r *BM25Ranker) Reset(docID uint32) {
	r.score = 0
	avg := r.stats.AvgDocLength()
	if avg <= 0 {
		r.lenRatio = 1
		return
	}
	r.lenRatio = float64(r.stats.DocLength(docID)) / avg
}

func (r *BM25Ranker) Update(term string, _ TermWeight, p index.Posting) {
	df := r.stats.DocFrequency(term)
	idf := computeIDF(int64(r.stats.DocCount()), int64(df))
	r.score += idf * computeTFNorm(float64(p.Frequency), r.lenRatio)
}

func (r *BM25Ranker) Evaluate() float64 { return r.score }

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, lengthRatio float64) float64 {
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
