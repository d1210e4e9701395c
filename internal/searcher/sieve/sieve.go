// Package sieve provides bounded top-K retention of scored candidates.
package sieve

import "container/heap"

// Winner is one retained candidate.
type Winner struct {
	Score float64
	DocID uint32
}

// Sieve keeps the K best-ranked candidates offered to it. Candidates rank
// by score; at equal scores the smaller DocID ranks higher. Once at
// capacity, a new offer replaces the weakest retained entry only when it
// ranks strictly higher.
type Sieve struct {
	capacity int
	h        winnerHeap
}

func New(capacity int) *Sieve {
	if capacity < 0 {
		capacity = 0
	}
	return &Sieve{capacity: capacity, h: make(winnerHeap, 0, capacity)}
}

// Sift offers one candidate.
func (s *Sieve) Sift(score float64, docID uint32) {
	if s.capacity == 0 {
		return
	}
	w := Winner{Score: score, DocID: docID}
	if len(s.h) < s.capacity {
		heap.Push(&s.h, w)
		return
	}
	if !outranks(w, s.h[0]) {
		return
	}
	s.h[0] = w
	heap.Fix(&s.h, 0)
}

func (s *Sieve) Len() int { return len(s.h) }

// Winners drains the sieve, best candidate first. The sieve is empty
// afterwards.
func (s *Sieve) Winners() []Winner {
	result := make([]Winner, len(s.h))
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&s.h).(Winner)
	}
	return result
}

// outranks reports whether a ranks strictly higher than b: higher score,
// or equal score and smaller document id.
func outranks(a, b Winner) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// winnerHeap is a min-heap by rank, keeping the weakest retained winner at
// the root.
type winnerHeap []Winner

func (h winnerHeap) Len() int { return len(h) }

func (h winnerHeap) Less(i, j int) bool { return outranks(h[j], h[i]) }

func (h winnerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *winnerHeap) Push(x interface{}) {
	*h = append(*h, x.(Winner))
}

func (h *winnerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
