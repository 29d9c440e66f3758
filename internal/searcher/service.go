// Package searcher answers keyword queries: it runs the query engine against
// the current index generation and resolves each hit back to the source
// lines that contain the keywords.
package searcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/tracing"
)

// Result is one matching document.
type Result struct {
	DocID       string   `json:"doc_id"`
	Score       float64  `json:"score"`
	LineNumbers []int    `json:"line_numbers"`
	LineTexts   []string `json:"line_texts"`
	Highlight   string   `json:"highlight"`
}

type Response struct {
	Query      string   `json:"query"`
	Generation uint64   `json:"generation"`
	TotalHits  int      `json:"total_hits"`
	Results    []Result `json:"results"`
}

type Service struct {
	executor *executor.Executor
	resolver *provenance.Resolver
	cfg      config.SearchConfig
	tracing  bool
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracing logs a span tree for every search.
func WithTracing(enabled bool) Option {
	return func(s *Service) { s.tracing = enabled }
}

func NewService(exec *executor.Executor, resolver *provenance.Resolver, cfg config.SearchConfig, opts ...Option) *Service {
	s := &Service{
		executor: exec,
		resolver: resolver,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search splits rawQuery on whitespace and runs it.
func (s *Service) Search(ctx context.Context, rawQuery string) (*Response, error) {
	return s.run(ctx, parser.Parse(rawQuery, parser.ModeFor(s.cfg.NormalizeQuery)))
}

// Query runs an already split keyword sequence.
func (s *Service) Query(ctx context.Context, keywords []string) (*Response, error) {
	return s.run(ctx, parser.FromKeywords(keywords, parser.ModeFor(s.cfg.NormalizeQuery)))
}

func (s *Service) run(ctx context.Context, plan *parser.QueryPlan) (*Response, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	if s.tracing {
		var span *tracing.Span
		ctx, span = tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
		span.SetAttr("query", plan.RawQuery)
		defer func() {
			span.End()
			span.Log(log)
		}()
	}

	resp, err := resilience.WithTimeout(ctx, s.cfg.Timeout, "search", func(ctx context.Context) (*Response, error) {
		return s.execute(ctx, plan)
	})
	latency := time.Since(start)
	if err != nil {
		var te *resilience.TimeoutError
		if errors.As(err, &te) {
			err = apperrors.Wrap(apperrors.ErrSearchTimeout, err, "query %q", plan.RawQuery)
		}
		s.observe("error", latency, 0)
		log.Error("search failed", "query", plan.RawQuery, "error", err)
		return nil, err
	}

	outcome := "hit"
	if len(resp.Results) == 0 {
		outcome = "zero_result"
	}
	s.observe(outcome, latency, len(resp.Results))
	log.Info("search completed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"generation", resp.Generation,
		"latency_ms", latency.Milliseconds(),
	)
	return resp, nil
}

func (s *Service) execute(ctx context.Context, plan *parser.QueryPlan) (*Response, error) {
	qctx, qspan := tracing.StartChildSpan(ctx, "query")
	res, err := s.executor.Execute(qctx, plan)
	qspan.End()
	if err != nil {
		return nil, err
	}
	qspan.SetAttr("total_hits", res.TotalHits)

	resp := &Response{
		Query:      plan.RawQuery,
		Generation: res.Generation,
		TotalHits:  res.TotalHits,
		Results:    make([]Result, 0, len(res.Hits)),
	}
	if len(res.Hits) == 0 {
		return resp, nil
	}

	pctx, pspan := tracing.StartChildSpan(ctx, "provenance")
	docIDs := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		docIDs[i] = hit.DocID
	}
	outcomes, err := s.resolver.ResolveAll(pctx, docIDs, plan.Keywords)
	pspan.End()
	if err != nil {
		return nil, err
	}

	failures := 0
	for _, hit := range res.Hits {
		out := outcomes[hit.DocID]
		result := Result{
			DocID:       hit.DocID,
			Score:       hit.Score,
			LineNumbers: []int{},
			LineTexts:   []string{},
			Highlight:   highlight.Sanitize(hit.Excerpt),
		}
		if out.Err != nil {
			failures++
			s.provenanceFailed(out.Err)
		} else {
			result.LineNumbers = out.Lines.Numbers
			result.LineTexts = out.Lines.Texts
		}
		resp.Results = append(resp.Results, result)
	}
	pspan.SetAttr("documents", len(docIDs))
	pspan.SetAttr("failures", failures)
	return resp, nil
}

func (s *Service) provenanceFailed(err error) {
	if s.metrics == nil {
		return
	}
	reason := apperrors.Kind(err)
	if reason == "internal" {
		reason = "io"
	}
	s.metrics.ProvenanceFailures.WithLabelValues(reason).Inc()
}

func (s *Service) observe(outcome string, latency time.Duration, results int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	s.metrics.SearchLatency.Observe(latency.Seconds())
	if outcome != "error" {
		s.metrics.SearchResultsCount.Observe(float64(results))
	}
}
