package executor

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

func newStore(t *testing.T, backend string) *store.Store {
	t.Helper()
	b, err := store.NewBackend(backend)
	require.NoError(t, err)
	st, err := store.Open(t.TempDir(), b)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func build(t *testing.T, st *store.Store, docs map[string][]string) {
	t.Helper()
	_, err := st.Rebuild(context.Background(), func(ctx context.Context, idx *index.MemoryIndex) error {
		names := make([]string, 0, len(docs))
		for name := range docs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for off, line := range docs[name] {
				if _, err := idx.AddLine(name, off, line, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func searchCfg() config.SearchConfig {
	return config.Default().Search
}

func docIDs(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.DocID
	}
	return out
}

func TestExecute_FoxScenario(t *testing.T) {
	for _, backend := range []string{"segment", "bleve"} {
		t.Run(backend, func(t *testing.T) {
			st := newStore(t, backend)
			build(t, st, map[string][]string{
				"a.txt": {"The quick brown fox", "jumps over the lazy dog"},
			})
			e := New(st, searchCfg())

			res, err := e.Execute(context.Background(), parser.Parse("fox", parser.ModeNormalized))

			require.NoError(t, err)
			require.Len(t, res.Hits, 1)
			hit := res.Hits[0]
			assert.Equal(t, "a.txt", hit.DocID)
			assert.Equal(t, 0, hit.Unit.LineOffset)
			assert.Equal(t, "The quick brown fox", hit.Unit.Raw)
			assert.Equal(t, `The quick brown <b class="match term0">fox</b>`, hit.Excerpt)
			assert.Equal(t, uint64(1), res.Generation)
		})
	}
}

func TestExecute_ORSemanticsOneHitPerDocument(t *testing.T) {
	st := newStore(t, "segment")
	build(t, st, map[string][]string{
		"a.txt": {"The quick brown fox", "jumps over the lazy dog"},
		"b.txt": {"cats and dogs", "dogs and cats"},
		"c.txt": {"nothing relevant"},
	})
	e := New(st, searchCfg())

	res, err := e.Execute(context.Background(), parser.Parse("fox dog", parser.ModeNormalized))

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, docIDs(res.Hits))
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, map[string]int{"fox": 1, "dog": 3}, res.TermStats)
}

func TestExecute_FrequencyRankingAndTieBreak(t *testing.T) {
	st := newStore(t, "segment")
	build(t, st, map[string][]string{
		"many.txt":  {"apple apple apple"},
		"zeta.txt":  {"apple"},
		"alpha.txt": {"apple"},
		"other.txt": {"pear"},
	})
	e := New(st, searchCfg())

	res, err := e.Execute(context.Background(), parser.Parse("apple", parser.ModeNormalized))

	require.NoError(t, err)
	assert.Equal(t, []string{"many.txt", "alpha.txt", "zeta.txt"}, docIDs(res.Hits))
	assert.Greater(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.Equal(t, res.Hits[1].Score, res.Hits[2].Score)
}

func TestExecute_MaxResults(t *testing.T) {
	st := newStore(t, "segment")
	build(t, st, map[string][]string{
		"a.txt": {"apple"}, "b.txt": {"apple"}, "c.txt": {"apple"},
	})
	cfg := searchCfg()
	cfg.MaxResults = 2
	e := New(st, cfg)

	res, err := e.Execute(context.Background(), parser.Parse("apple", parser.ModeNormalized))

	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, docIDs(res.Hits))
	assert.Equal(t, 3, res.TotalHits)
}

func TestExecute_LiteralModeDoesNotStem(t *testing.T) {
	st := newStore(t, "segment")
	build(t, st, map[string][]string{"a.txt": {"running fast"}})
	e := New(st, searchCfg())

	literal, err := e.Execute(context.Background(), parser.Parse("running", parser.ModeLiteral))
	require.NoError(t, err)
	normalized, err := e.Execute(context.Background(), parser.Parse("running", parser.ModeNormalized))
	require.NoError(t, err)

	assert.Empty(t, literal.Hits, "index holds the stem, not the inflected word")
	assert.Len(t, normalized.Hits, 1)
}

func TestExecute_EmptyQueryNeverTouchesIndex(t *testing.T) {
	st := newStore(t, "segment")
	e := New(st, searchCfg())

	res, err := e.Execute(context.Background(), parser.Parse("  the  ", parser.ModeNormalized))

	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.NotNil(t, res.Hits)
}

func TestExecute_IndexNotBuilt(t *testing.T) {
	e := New(newStore(t, "segment"), searchCfg())

	_, err := e.Execute(context.Background(), parser.Parse("fox", parser.ModeNormalized))

	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestExecute_ZeroMatchesIsSuccess(t *testing.T) {
	st := newStore(t, "segment")
	build(t, st, map[string][]string{"a.txt": {"apple"}})
	e := New(st, searchCfg())

	res, err := e.Execute(context.Background(), parser.Parse("zebra", parser.ModeNormalized))

	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 0, res.TotalHits)
}

func TestExecute_CancelledContext(t *testing.T) {
	st := newStore(t, "segment")
	build(t, st, map[string][]string{"a.txt": {"apple"}})
	e := New(st, searchCfg())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, parser.Parse("apple", parser.ModeNormalized))

	assert.ErrorIs(t, err, context.Canceled)
}
