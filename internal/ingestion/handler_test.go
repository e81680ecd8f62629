package ingestion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/rag-pipeline/internal/store"
	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/kafka"
)

type fakeStore struct {
	docs   map[string]*store.Document
	byIdem map[string]*store.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   make(map[string]*store.Document),
		byIdem: make(map[string]*store.Document),
	}
}

func (f *fakeStore) InsertDocument(ctx context.Context, doc *store.Document) error {
	f.docs[doc.ID] = doc
	if doc.IdempotencyKey != nil {
		f.byIdem[doc.OwnerID+"|"+*doc.IdempotencyKey] = doc
	}
	return nil
}

func (f *fakeStore) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*store.Document, error) {
	if doc, ok := f.byIdem[ownerID+"|"+key]; ok {
		return doc, nil
	}
	return nil, apperrors.ErrDocumentNotFound
}

func (f *fakeStore) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	if doc, ok := f.docs[id]; ok {
		return doc, nil
	}
	return nil, apperrors.ErrDocumentNotFound
}

func (f *fakeStore) ListDocuments(ctx context.Context, ownerID string, limit int) ([]*store.Document, error) {
	var out []*store.Document
	for _, d := range f.docs {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestServer(st *fakeStore, pub *fakePublisher) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(st, pub).Routes(mux)
	return mux
}

func uploadBody(t *testing.T, filename, contentType, content, idemKey string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(UploadRequest{
		Filename:       filename,
		ContentType:    contentType,
		Content:        base64.StdEncoding.EncodeToString([]byte(content)),
		IdempotencyKey: idemKey,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestUploadAccepted(t *testing.T) {
	st := newFakeStore()
	pub := &fakePublisher{}
	mux := newTestServer(st, pub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
		uploadBody(t, "notes.txt", "text/plain", "hello world", ""))
	req.Header.Set("X-Owner-ID", "owner-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "queued", resp.Status)
	assert.NotEmpty(t, resp.DocumentID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, resp.DocumentID, pub.events[0].Key)

	stored := st.docs[resp.DocumentID]
	require.NotNil(t, stored)
	assert.Equal(t, []byte("hello world"), stored.RawContent)
	assert.False(t, stored.Processed)
}

func TestUploadRequiresOwner(t *testing.T) {
	mux := newTestServer(newFakeStore(), &fakePublisher{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
		uploadBody(t, "a.txt", "text/plain", "x", ""))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	mux := newTestServer(newFakeStore(), &fakePublisher{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
		uploadBody(t, "img.png", "image/png", "binary", ""))
	req.Header.Set("X-Owner-ID", "owner-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadIdempotencyKeyDedupes(t *testing.T) {
	st := newFakeStore()
	pub := &fakePublisher{}
	mux := newTestServer(st, pub)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
			uploadBody(t, "doc.txt", "text/plain", "content", "key-123"))
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusAccepted, first.Code)

	second := send()
	require.Equal(t, http.StatusOK, second.Code)
	var resp UploadResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&resp))
	assert.True(t, resp.Duplicate)
	assert.Len(t, pub.events, 1, "duplicate upload must not enqueue again")
	assert.Len(t, st.docs, 1)
}

func TestUploadPublishFailureSurfaces(t *testing.T) {
	st := newFakeStore()
	pub := &fakePublisher{err: assert.AnError}
	mux := newTestServer(st, pub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
		uploadBody(t, "doc.txt", "text/plain", "content", ""))
	req.Header.Set("X-Owner-ID", "owner-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetDocumentScopedToOwner(t *testing.T) {
	st := newFakeStore()
	st.docs["d1"] = &store.Document{ID: "d1", OwnerID: "owner-1", Filename: "a.txt"}
	mux := newTestServer(st, &fakePublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1", nil)
	req.Header.Set("X-Owner-ID", "owner-2")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other owners' documents must look nonexistent")
}

func TestValidateUpload(t *testing.T) {
	valid := func() *UploadRequest {
		return &UploadRequest{
			Filename:    "doc.txt",
			ContentType: "text/plain",
			Content:     base64.StdEncoding.EncodeToString([]byte("hello")),
		}
	}

	t.Run("ok", func(t *testing.T) {
		raw, err := ValidateUpload(valid())
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), raw)
	})
	t.Run("missing filename", func(t *testing.T) {
		req := valid()
		req.Filename = " "
		_, err := ValidateUpload(req)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
	t.Run("bad base64", func(t *testing.T) {
		req := valid()
		req.Content = "!!not base64!!"
		_, err := ValidateUpload(req)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
	t.Run("unsupported type", func(t *testing.T) {
		req := valid()
		req.ContentType = "application/zip"
		_, err := ValidateUpload(req)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
	})
}
