package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

type fakeService struct {
	query string
	err   error
}

func (f *fakeService) Search(_ context.Context, q string) (*searcher.Response, error) {
	f.query = q
	if f.err != nil {
		return nil, f.err
	}
	return &searcher.Response{
		Query:     q,
		TotalHits: 1,
		Results: []searcher.Result{{
			DocID:       "a.txt",
			Score:       1.25,
			LineNumbers: []int{1},
			LineTexts:   []string{"The quick brown fox"},
			Highlight:   "The quick brown fox",
		}},
	}, nil
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) ResolveLines(_ context.Context, docID string, keywords []string) (provenance.Lines, error) {
	if f.err != nil {
		return provenance.Lines{}, f.err
	}
	return provenance.Lines{Numbers: []int{2}, Texts: []string{docID + ":" + strings.Join(keywords, ",")}}, nil
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}/lines", h.Lines)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSearch_Get(t *testing.T) {
	svc := &fakeService{}
	rec := serve(New(svc, &fakeResolver{}), httptest.NewRequest(http.MethodGet, "/api/v1/search?q=quick+fox", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "quick fox", svc.query)
	var body searcher.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.TotalHits)
	assert.Equal(t, []int{1}, body.Results[0].LineNumbers)
}

func TestSearch_FormPost(t *testing.T) {
	svc := &fakeService{}
	form := url.Values{"key": {"fox"}}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := serve(New(svc, &fakeResolver{}), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fox", svc.query)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not built", apperrors.Wrap(apperrors.ErrIndexNotFound, nil, "no index"), http.StatusNotFound},
		{"timeout", apperrors.Wrap(apperrors.ErrSearchTimeout, nil, "slow"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(New(&fakeService{err: tt.err}, &fakeResolver{}), httptest.NewRequest(http.MethodGet, "/api/v1/search?q=fox", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "search", body["stage"])
		})
	}
}

func TestLines(t *testing.T) {
	rec := serve(New(&fakeService{}, &fakeResolver{}), httptest.NewRequest(http.MethodGet, "/api/v1/documents/b.txt/lines?q=dog+cat", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{"b.txt:dog,cat"}, body["line_texts"])
}

func TestLines_MissingDocument(t *testing.T) {
	h := New(&fakeService{}, &fakeResolver{err: apperrors.Wrap(apperrors.ErrFileNotFound, nil, "gone")})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/documents/x.txt/lines?q=dog", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLines_RequiresQuery(t *testing.T) {
	rec := serve(New(&fakeService{}, &fakeResolver{}), httptest.NewRequest(http.MethodGet, "/api/v1/documents/a.txt/lines", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
