package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_MatchesSentinelAndCause(t *testing.T) {
	err := Wrap(ErrFileNotFound, fs.ErrNotExist, "document %q", "a.txt")

	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrIO)
	assert.Equal(t, `file not found: document "a.txt": file does not exist`, err.Error())
}

func TestHTTPStatusCodeAndKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"index not found", ErrIndexNotFound, http.StatusNotFound, "index_not_found"},
		{"wrapped invalid input", Wrap(ErrInvalidInput, nil, "bad name"), http.StatusBadRequest, "invalid"},
		{"search timeout", Wrap(ErrSearchTimeout, context.DeadlineExceeded, "query"), http.StatusServiceUnavailable, "timeout"},
		{"decode under fmt wrap", fmt.Errorf("doc: %w", ErrDecode), http.StatusUnprocessableEntity, "decode"},
		{"io", Wrap(ErrIO, errors.New("disk"), "read"), http.StatusInternalServerError, "io"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatusCode(tt.err))
			assert.Equal(t, tt.kind, Kind(tt.err))
		})
	}
	assert.Equal(t, "ok", Kind(nil))
}
