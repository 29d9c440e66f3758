package searcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

type fixture struct {
	docs    string
	store   *store.Store
	builder *indexer.Builder
	service *Service
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, docs map[string]string, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DocumentDir = t.TempDir()
	cfg.Storage.IndexDir = t.TempDir()
	cfg.Tracing.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.DocumentDir, name), []byte(content), 0o644))
	}
	backend, err := store.NewBackend(cfg.Indexer.Backend)
	require.NoError(t, err)
	st, err := store.Open(cfg.Storage.IndexDir, backend)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	f := &fixture{
		docs:    cfg.Storage.DocumentDir,
		store:   st,
		builder: indexer.NewBuilder(st, cfg.Indexer),
		metrics: m,
	}
	f.service = NewService(
		executor.New(st, cfg.Search),
		provenance.New(cfg.Storage.DocumentDir, cfg.Search.ProvenanceWorkers),
		cfg.Search,
		WithMetrics(m),
		WithTracing(cfg.Tracing.Enabled),
	)
	return f
}

func (f *fixture) build(t *testing.T) {
	t.Helper()
	_, err := f.builder.Build(context.Background(), f.docs)
	require.NoError(t, err)
}

var corpus = map[string]string{
	"a.txt": "The quick brown fox\njumps over the lazy dog\n",
	"b.txt": "cats and dogs\ndogs and cats\n",
}

func TestSearch_FoxScenario(t *testing.T) {
	f := newFixture(t, corpus, nil)
	f.build(t)

	resp, err := f.service.Search(context.Background(), "fox")

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	r := resp.Results[0]
	assert.Equal(t, "a.txt", r.DocID)
	assert.Equal(t, []int{1}, r.LineNumbers)
	assert.Equal(t, []string{"The quick brown fox"}, r.LineTexts)
	assert.Equal(t, "The quick brown fox", r.Highlight)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("hit")))
}

func TestQuery_DogScenarioResolvesBothLines(t *testing.T) {
	f := newFixture(t, corpus, nil)
	f.build(t)

	resp, err := f.service.Query(context.Background(), []string{"dog"})

	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	byDoc := map[string]Result{}
	for _, r := range resp.Results {
		byDoc[r.DocID] = r
	}
	assert.Equal(t, []int{1, 2}, byDoc["b.txt"].LineNumbers)
	assert.Equal(t, []int{2}, byDoc["a.txt"].LineNumbers)
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t, corpus, nil)

	resp, err := f.service.Search(context.Background(), "   ")

	require.NoError(t, err, "no index is needed for an empty query")
	assert.Empty(t, resp.Results)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestSearch_IndexNotBuilt(t *testing.T) {
	f := newFixture(t, corpus, nil)

	_, err := f.service.Search(context.Background(), "fox")

	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("error")))
}

func TestSearch_ProvenanceFailureIsIsolated(t *testing.T) {
	f := newFixture(t, corpus, nil)
	f.build(t)
	require.NoError(t, os.Remove(filepath.Join(f.docs, "b.txt")))

	resp, err := f.service.Search(context.Background(), "dog")

	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		if r.DocID == "b.txt" {
			assert.Empty(t, r.LineNumbers)
			assert.Empty(t, r.LineTexts)
			assert.Contains(t, r.Highlight, "dogs")
		} else {
			assert.Equal(t, []int{2}, r.LineNumbers)
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProvenanceFailures.WithLabelValues("not_found")))
}

func TestSearch_RemovedDocumentDisappearsAfterRebuild(t *testing.T) {
	f := newFixture(t, corpus, nil)
	f.build(t)
	first, err := f.service.Search(context.Background(), "dog")
	require.NoError(t, err)
	require.Len(t, first.Results, 2)

	// Rebuilding identical content yields identical results.
	f.build(t)
	again, err := f.service.Search(context.Background(), "dog")
	require.NoError(t, err)
	assert.Equal(t, first.Results, again.Results)

	require.NoError(t, os.Remove(filepath.Join(f.docs, "a.txt")))
	f.build(t)
	after, err := f.service.Search(context.Background(), "dog")
	require.NoError(t, err)
	require.Len(t, after.Results, 1)
	assert.Equal(t, "b.txt", after.Results[0].DocID)
}

func TestSearch_Timeout(t *testing.T) {
	f := newFixture(t, corpus, func(cfg *config.Config) {
		cfg.Search.Timeout = time.Nanosecond
	})
	f.build(t)

	_, err := f.service.Search(context.Background(), "dog")

	require.ErrorIs(t, err, apperrors.ErrSearchTimeout)
	assert.Equal(t, 503, apperrors.HTTPStatusCode(err))
}

func TestSearch_CallerCancellationIsNotATimeout(t *testing.T) {
	f := newFixture(t, corpus, nil)
	f.build(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Search(ctx, "dog")

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrSearchTimeout)
}

func TestSearch_LiteralMode(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "running late\n"}, func(cfg *config.Config) {
		cfg.Search.NormalizeQuery = false
	})
	f.build(t)

	literal, err := f.service.Search(context.Background(), "running")
	require.NoError(t, err)
	stem, err := f.service.Search(context.Background(), "run")
	require.NoError(t, err)

	assert.Empty(t, literal.Results)
	require.Len(t, stem.Results, 1)
	assert.Equal(t, []int{1}, stem.Results[0].LineNumbers, "provenance still matches the substring")
}
