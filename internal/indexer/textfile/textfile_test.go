package textfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

func TestDecode_UTF8PassesThrough(t *testing.T) {
	got, err := Decode([]byte("naïve café"))
	require.NoError(t, err)
	assert.Equal(t, "naïve café", got)
}

func TestDecode_Latin1Fallback(t *testing.T) {
	// 0xE9 alone is not valid UTF-8; in ISO-8859-1 it is "é".
	got, err := Decode([]byte{'c', 'a', 'f', 0xE9, ' ', 0xFF})
	require.NoError(t, err)
	assert.Equal(t, "café ÿ", got)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"lone cr", "a\rb", []string{"a", "b"}},
		{"blank lines kept", "a\n\n\nb", []string{"a", "", "", "b"}},
		{"only newline", "\n", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines(tt.in))
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("The quick brown fox\njumps over the lazy dog\n"), 0o644))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"The quick brown fox", "jumps over the lazy dog"}, lines)
}
