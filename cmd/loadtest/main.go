// Command loadtest drives synthetic query traffic against a running search
// replica and reports throughput, latency percentiles, and status codes.
//
// The generated mix exercises the whole query surface: plain term queries,
// partial-match thresholds, each ranker, boolean operators, and phrase
// lookups.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 1m
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var termQueries = []string{
	"inverted index",
	"search engine internals",
	"graph databases",
	"distributed consensus",
	"garbage collection",
	"memory model",
	"query planning",
	"cache invalidation",
	"ranking signals",
	"suffix arrays",
	"token streams",
	"posting lists",
	"write amplification",
	"log structured storage",
}

var phraseQueries = []string{
	"inverted index",
	"memory model",
	"garbage collection",
	"posting lists",
}

var thresholds = []string{"", "1.0", "0.5", "0.3"}

var rankers = []string{"", "frequency", "tfidf", "bm25"}

type stats struct {
	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *stats) record(took time.Duration, code int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if code >= 200 && code < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, took)
	s.codes[code]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search replica")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	fmt.Println("=== QuorumSearch Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Println()

	s := run(*baseURL, *concurrency, *duration)
	report(s, *duration)
}

func run(baseURL string, concurrency int, duration time.Duration) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				target := nextTarget(baseURL, seq)
				seq++

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					s.record(0, 0, err)
					continue
				}

				start := time.Now()
				resp, err := client.Do(req)
				took := time.Since(start)
				if err != nil {
					s.record(took, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(took, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done")
	fmt.Println()
	return s
}

// nextTarget cycles deterministically through the query mix. Every fifth
// request hits the phrase endpoint; the rest rotate term queries through the
// threshold and ranker combinations.
func nextTarget(baseURL string, seq int) string {
	if seq%5 == 4 {
		q := url.Values{}
		q.Set("q", phraseQueries[seq%len(phraseQueries)])
		q.Set("limit", "10")
		return baseURL + "/api/v1/phrase?" + q.Encode()
	}

	q := url.Values{}
	q.Set("q", termQueries[seq%len(termQueries)])
	q.Set("limit", "10")
	if t := thresholds[seq%len(thresholds)]; t != "" {
		q.Set("threshold", t)
	}
	if r := rankers[seq%len(rankers)]; r != "" {
		q.Set("ranker", r)
	}
	return baseURL + "/api/v1/search?" + q.Encode()
}

func report(s *stats, duration time.Duration) {
	total := s.total.Load()
	success := s.success.Load()
	failed := s.failed.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", failed)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.mu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	codes := make(map[int]int64, len(s.codes))
	for code, count := range s.codes {
		codes[code] = count
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", sum/time.Duration(len(latencies)))
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	sorted := make([]int, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Ints(sorted)
	for _, code := range sorted {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: no requests completed. Is the replica running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
