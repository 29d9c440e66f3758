package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func corpus(t *testing.T) (docs, idx string) {
	t.Helper()
	docs, idx = t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte("The quick brown fox\njumps over the lazy dog\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "b.txt"), []byte("cats and dogs\ndogs and cats\n"), 0o644))
	return docs, idx
}

func TestIndexThenSearch(t *testing.T) {
	docs, idx := corpus(t)

	out, err := run(t, "index", "--docs", docs, "--index", idx)
	require.NoError(t, err)
	assert.Contains(t, out, "generation 1: 2 documents, 4 lines")

	out, err = run(t, "search", "--docs", docs, "--index", idx, "fox")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 documents match \"fox\"")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "   1: The quick brown fox")
}

func TestSearch_JSON(t *testing.T) {
	docs, idx := corpus(t)
	_, err := run(t, "index", "--docs", docs, "--index", idx)
	require.NoError(t, err)

	out, err := run(t, "search", "--docs", docs, "--index", idx, "--format", "json", "dog")

	require.NoError(t, err)
	assert.Contains(t, out, `"line_numbers": [`)
	assert.Contains(t, out, `"doc_id": "b.txt"`)
}

func TestSearch_BeforeIndex(t *testing.T) {
	docs, idx := corpus(t)

	_, err := run(t, "search", "--docs", docs, "--index", idx, "fox")

	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestLines(t *testing.T) {
	docs, _ := corpus(t)

	out, err := run(t, "lines", "--docs", docs, "b.txt", "dog")

	require.NoError(t, err)
	assert.Equal(t, "b.txt:1: cats and dogs\nb.txt:2: dogs and cats\n", out)
}

func TestLines_MissingDocument(t *testing.T) {
	docs, _ := corpus(t)

	_, err := run(t, "lines", "--docs", docs, "nope.txt", "dog")

	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
}
