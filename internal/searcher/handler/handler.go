package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/quorumsearch/quorumsearch/internal/analytics"
	"github.com/quorumsearch/quorumsearch/internal/searcher/cache"
	"github.com/quorumsearch/quorumsearch/internal/searcher/executor"
	"github.com/quorumsearch/quorumsearch/internal/searcher/parser"
	"github.com/quorumsearch/quorumsearch/internal/searcher/ranker"
	"github.com/quorumsearch/quorumsearch/internal/searcher/sieve"
	"github.com/quorumsearch/quorumsearch/pkg/config"
	apperrors "github.com/quorumsearch/quorumsearch/pkg/errors"
	"github.com/quorumsearch/quorumsearch/pkg/logger"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
	"github.com/quorumsearch/quorumsearch/pkg/middleware"
	"github.com/quorumsearch/quorumsearch/pkg/resilience"
	"github.com/quorumsearch/quorumsearch/pkg/tracing"
)

// SearchExecutor runs one threshold evaluation against the index.
type SearchExecutor interface {
	Execute(ctx context.Context, query string, opts executor.Options, rkr ranker.Ranker) (*executor.SearchResult, error)
}

// PhraseSearcher answers exact-phrase lookups.
type PhraseSearcher interface {
	Search(ctx context.Context, phrase string, limit int) ([]sieve.Winner, error)
}

// Deps carries the handler's collaborators. Cache, Collector and Metrics
// are optional and may be nil.
type Deps struct {
	Executor  SearchExecutor
	Phrases   PhraseSearcher
	Corpus    executor.Corpus
	Stats     ranker.Stats
	Cache     *cache.QueryCache
	Collector *analytics.Collector
	Metrics   *metrics.Metrics
	Search    config.SearchConfig
	Tracing   config.TracingConfig
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		deps:   deps,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// PhraseMatch is one document matching an exact phrase.
type PhraseMatch struct {
	DocID       uint32 `json:"doc_id"`
	Title       string `json:"title"`
	Occurrences int    `json:"occurrences"`
}

// PhraseResult is the response body of the phrase endpoint.
type PhraseResult struct {
	Query   string        `json:"query"`
	Total   int           `json:"total"`
	Matches []PhraseMatch `json:"matches"`
}

// Search serves GET /api/v1/search. The q parameter holds the query;
// threshold, limit and ranker are optional. Operators in q (NOT, a quoted
// phrase) are folded into the evaluation options, so only plain words reach
// the index as required terms.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.countQuery("term", "invalid")
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit, err := h.limitParam(r)
	if err != nil {
		h.countQuery("term", "invalid")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Range validation belongs to the executor, which rejects bad options
	// before touching any posting list.
	threshold := h.deps.Search.DefaultThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			h.countQuery("term", "invalid")
			h.writeError(w, http.StatusBadRequest, "threshold must be a number")
			return
		}
		threshold = parsed
	}

	rankerName := r.URL.Query().Get("ranker")
	if rankerName == "" {
		rankerName = h.deps.Search.DefaultRanker
	}
	rkr, err := ranker.ForName(rankerName, h.deps.Stats)
	if err != nil {
		h.countQuery("term", "invalid")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := h.startSpan(ctx, "search.request")
	if span != nil {
		span.SetAttr("query", query)
		defer func() {
			span.End()
			span.Log()
		}()
	}

	plan := parser.Parse(query)
	opts := executor.Options{
		Threshold: plan.Threshold(threshold),
		HitCount:  limit,
		Exclude:   plan.Exclude,
	}

	compute := func() (*executor.SearchResult, error) {
		var computed *executor.SearchResult
		terr := resilience.WithTimeout(ctx, h.deps.Search.QueryTimeout, "search-query", func(ctx context.Context) error {
			res, execErr := h.deps.Executor.Execute(ctx, plan.EffectiveQuery(), opts, rkr)
			if execErr != nil {
				return execErr
			}
			computed = res
			return nil
		})
		if terr != nil {
			return nil, terr
		}
		return computed, nil
	}

	var result *executor.SearchResult
	fromCache := false
	if h.deps.Cache != nil {
		key := cache.Key{
			Terms:     plan.Terms,
			Exclude:   plan.Exclude,
			Phrase:    plan.Phrase,
			Threshold: opts.Threshold,
			Limit:     limit,
			Ranker:    rankerName,
		}
		result, fromCache, err = h.deps.Cache.GetOrCompute(ctx, key, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		h.failQuery(w, log, "term", query, err)
		return
	}

	latency := time.Since(start)
	cacheStatus := "bypass"
	if h.deps.Cache != nil {
		cacheStatus = "miss"
		if fromCache {
			cacheStatus = "hit"
		}
	}
	outcome := "hit"
	if result.TotalHits == 0 {
		outcome = "zero_result"
	}
	h.countQuery("term", outcome)
	if h.deps.Metrics != nil {
		h.deps.Metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.deps.Metrics.SearchResultsCount.Observe(float64(len(result.Hits)))
		if !fromCache {
			h.deps.Metrics.PostingsScanned.Observe(float64(result.Scanned))
			h.deps.Metrics.CandidatesQualified.Observe(float64(result.TotalHits))
		}
	}
	if span != nil {
		span.SetAttr("terms", len(result.Terms))
		span.SetAttr("required", result.Required)
		span.SetAttr("total_hits", result.TotalHits)
		span.SetAttr("cache_status", cacheStatus)
	}

	log.Info("search completed",
		"query", query,
		"terms", len(result.Terms),
		"required", result.Required,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
		"cache_status", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)

	if h.deps.Collector != nil {
		eventType := analytics.EventCacheMiss
		switch {
		case fromCache:
			eventType = analytics.EventCacheHit
		case result.TotalHits == 0:
			eventType = analytics.EventZeroResult
		}
		h.deps.Collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Terms:     result.Terms,
			Threshold: opts.Threshold,
			Required:  result.Required,
			TotalHits: result.TotalHits,
			Returned:  len(result.Hits),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  fromCache,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Phrase serves GET /api/v1/phrase: exact adjacency matching for the quoted
// form of q, most occurrences first. Results are never cached; phrase
// lookups are already a single binary search over the suffix array.
func (h *Handler) Phrase(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	phrase := r.URL.Query().Get("q")
	if phrase == "" {
		h.countQuery("phrase", "invalid")
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit, err := h.limitParam(r)
	if err != nil {
		h.countQuery("phrase", "invalid")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := h.startSpan(ctx, "phrase.request")
	if span != nil {
		span.SetAttr("phrase", phrase)
		defer func() {
			span.End()
			span.Log()
		}()
	}

	var winners []sieve.Winner
	err = resilience.WithTimeout(ctx, h.deps.Search.QueryTimeout, "phrase-query", func(ctx context.Context) error {
		found, searchErr := h.deps.Phrases.Search(ctx, phrase, limit)
		if searchErr != nil {
			return searchErr
		}
		winners = found
		return nil
	})
	if err != nil {
		h.failQuery(w, log, "phrase", phrase, err)
		return
	}

	matches := make([]PhraseMatch, 0, len(winners))
	for _, win := range winners {
		doc, derr := h.deps.Corpus.Document(ctx, win.DocID)
		if derr != nil {
			h.countQuery("phrase", "error")
			log.Error("resolving phrase match failed", "doc_id", win.DocID, "error", derr)
			h.writeError(w, http.StatusInternalServerError, "phrase search failed")
			return
		}
		matches = append(matches, PhraseMatch{
			DocID:       win.DocID,
			Title:       doc.Title,
			Occurrences: int(win.Score),
		})
	}

	latency := time.Since(start)
	outcome := "hit"
	if len(matches) == 0 {
		outcome = "zero_result"
	}
	h.countQuery("phrase", outcome)
	if h.deps.Metrics != nil {
		h.deps.Metrics.SearchLatency.WithLabelValues("bypass").Observe(latency.Seconds())
		h.deps.Metrics.SearchResultsCount.Observe(float64(len(matches)))
	}

	log.Info("phrase search completed",
		"phrase", phrase,
		"matches", len(matches),
		"latency_ms", latency.Milliseconds(),
	)

	if h.deps.Collector != nil {
		h.deps.Collector.Track(analytics.SearchEvent{
			Type:      analytics.EventPhrase,
			Query:     phrase,
			TotalHits: len(matches),
			Returned:  len(matches),
			LatencyMs: latency.Milliseconds(),
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, &PhraseResult{
		Query:   phrase,
		Total:   len(matches),
		Matches: matches,
	})
}

// Document serves GET /api/v1/documents/{id}.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id64, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be a non-negative integer")
		return
	}

	doc, err := h.deps.Corpus.Document(r.Context(), uint32(id64))
	if err != nil {
		if apperrors.HTTPStatusCode(err) == http.StatusNotFound {
			h.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logger.FromContext(r.Context()).Error("document lookup failed", "id", id64, "error", err)
		h.writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.deps.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.deps.Cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// failQuery maps an evaluation error onto a response and counters. Option
// validation failures surface their own message; anything else gets a
// generic body so internal detail stays in the logs.
func (h *Handler) failQuery(w http.ResponseWriter, log *slog.Logger, kind, query string, err error) {
	status := apperrors.HTTPStatusCode(err)
	outcome, message := "error", "search failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		message = "search timed out"
	case status == http.StatusBadRequest:
		outcome = "invalid"
		message = err.Error()
	}
	h.countQuery(kind, outcome)
	log.Error("search execution failed", "kind", kind, "query", query, "error", err)
	h.writeError(w, status, message)
}

func (h *Handler) limitParam(r *http.Request) (int, error) {
	limit := h.deps.Search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, errors.New("limit must be a positive integer")
		}
		if parsed > h.deps.Search.MaxLimit {
			parsed = h.deps.Search.MaxLimit
		}
		limit = parsed
	}
	return limit, nil
}

// startSpan opens a root span for this request when tracing is enabled and
// the request wins the sample-rate draw. Returns a nil span otherwise.
func (h *Handler) startSpan(ctx context.Context, name string) (context.Context, *tracing.Span) {
	if !h.deps.Tracing.Enabled {
		return ctx, nil
	}
	if h.deps.Tracing.SampleRate < 1 && rand.Float64() >= h.deps.Tracing.SampleRate {
		return ctx, nil
	}
	return tracing.StartSpan(ctx, name, middleware.GetRequestID(ctx))
}

func (h *Handler) countQuery(kind, outcome string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.SearchQueriesTotal.WithLabelValues(kind, outcome).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
