package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

type fakeUploader struct {
	name string
	data []byte
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, name string, data []byte) (*ingestion.UploadResponse, error) {
	f.name, f.data = name, data
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.UploadResponse{DocID: name, Status: "indexed", Generation: 2}, nil
}

func multipartRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUpload_Success(t *testing.T) {
	up := &fakeUploader{}
	h := New(up, "file", 1024)
	rec := httptest.NewRecorder()

	h.Upload(rec, multipartRequest(t, "file", "notes.txt", "hello\n"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "notes.txt", up.name)
	assert.Equal(t, "hello\n", string(up.data))
	assert.Equal(t, "notes.txt", decode(t, rec)["doc_id"])
}

func TestUpload_MissingField(t *testing.T) {
	h := New(&fakeUploader{}, "file", 1024)
	rec := httptest.NewRecorder()

	h.Upload(rec, multipartRequest(t, "document", "notes.txt", "hello"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "upload", decode(t, rec)["stage"])
}

func TestUpload_ValidationFailure(t *testing.T) {
	h := New(&fakeUploader{err: &validator.ValidationError{Fields: map[string]string{"filename": "filename must have an extension"}}}, "file", 1024)
	rec := httptest.NewRecorder()

	h.Upload(rec, multipartRequest(t, "file", "README", "hello"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "upload", body["stage"])
	assert.Contains(t, body["fields"], "filename")
}

func TestUpload_BuildTimeout(t *testing.T) {
	h := New(&fakeUploader{err: apperrors.Wrap(apperrors.ErrBuildTimeout, nil, "building")}, "file", 1024)
	rec := httptest.NewRecorder()

	h.Upload(rec, multipartRequest(t, "file", "a.txt", "hello"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "upload", decode(t, rec)["stage"])
}

func TestUpload_BodyTooLarge(t *testing.T) {
	h := New(&fakeUploader{}, "file", 1)
	rec := httptest.NewRecorder()
	big := bytes.Repeat([]byte("x"), 2<<20)

	h.Upload(rec, multipartRequest(t, "file", "a.txt", string(big)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
