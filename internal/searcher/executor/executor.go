package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
)

// Hit is the best matching line unit of one document.
type Hit struct {
	DocID   string         `json:"doc_id"`
	Score   float64        `json:"score"`
	Unit    index.LineUnit `json:"unit"`
	Terms   []string       `json:"terms"`
	Excerpt string         `json:"excerpt"`
}

type SearchResult struct {
	Query      string         `json:"query"`
	Generation uint64         `json:"generation"`
	TotalHits  int            `json:"total_hits"`
	Hits       []Hit          `json:"hits"`
	TermStats  map[string]int `json:"term_stats"`
}

type Executor struct {
	store  *store.Store
	cfg    config.SearchConfig
	logger *slog.Logger
}

func New(st *store.Store, cfg config.SearchConfig) *Executor {
	return &Executor{
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates plan against a single snapshot of the index: OR across
// terms, BM25 per line unit, best unit per document. A plan without terms
// yields an empty result without touching the index.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan) (*SearchResult, error) {
	if len(plan.Terms) == 0 {
		return &SearchResult{
			Query:     plan.RawQuery,
			Hits:      []Hit{},
			TermStats: map[string]int{},
		}, nil
	}

	sn, err := e.store.Acquire()
	if err != nil {
		return nil, err
	}
	defer sn.Release()

	perTerm := make([]ranker.TermPostings, 0, len(plan.Terms))
	termStats := make(map[string]int, len(plan.Terms))
	for _, term := range plan.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		postings, err := sn.Search(term)
		if err != nil {
			return nil, fmt.Errorf("searching term %q: %w", term, err)
		}
		termStats[term] = len(postings)
		perTerm = append(perTerm, ranker.TermPostings{Term: term, Postings: postings})
	}

	stats := sn.Stats()
	units := make(map[uint32]index.LineUnit)
	getUnitInfo := func(id uint32) (ranker.UnitInfo, error) {
		u, err := sn.Unit(id)
		if err != nil {
			return ranker.UnitInfo{}, fmt.Errorf("loading unit %d: %w", id, err)
		}
		units[id] = u
		return ranker.UnitInfo{DocID: u.DocID, Length: u.Length()}, nil
	}
	scored, err := ranker.Rank(perTerm, ranker.RankParams{
		TotalUnits:    stats.Units,
		AvgUnitLength: stats.AvgUnitLength,
	}, getUnitInfo)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grouped := ranker.GroupByDocument(scored, 0)
	total := len(grouped)
	if e.cfg.MaxResults > 0 && len(grouped) > e.cfg.MaxResults {
		grouped = grouped[:e.cfg.MaxResults]
	}

	opts := highlight.Options{
		MaxChars: e.cfg.ExcerptMaxChars,
		Surround: e.cfg.ExcerptSurround,
		Literal:  plan.Mode == parser.ModeLiteral,
	}
	hits := make([]Hit, 0, len(grouped))
	for _, su := range grouped {
		u := units[su.UnitID]
		hits = append(hits, Hit{
			DocID:   su.DocID,
			Score:   su.Score,
			Unit:    u,
			Terms:   su.Terms,
			Excerpt: highlight.Excerpt(u.Text(), plan.Terms, opts),
		})
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"generation", sn.Generation(),
		"matched_units", len(scored),
		"total_hits", total,
		"returned", len(hits),
	)
	return &SearchResult{
		Query:      plan.RawQuery,
		Generation: sn.Generation(),
		TotalHits:  total,
		Hits:       hits,
		TermStats:  termStats,
	}, nil
}
