package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mirage-ghibli/internal/config"
)

type putRequest struct {
	path        string
	contentType string
	body        []byte
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, *[]putRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []putRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, putRequest{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: body})
		mu.Unlock()
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestStore(t *testing.T, endpoint string) *Store {
	t.Helper()
	store, err := New(context.Background(), config.ObjectStore{
		S3BaseEndpoint: endpoint,
		S3Region:       "us-east-1",
		S3Bucket:       "originals",
		S3AccessKey:    "minio",
		S3SecretKey:    "minio123",
	})
	require.NoError(t, err)
	return store
}

func TestOriginalKey(t *testing.T) {
	now := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	key := OriginalKey(now, "image/png")
	assert.Regexp(t, regexp.MustCompile(`^originals/2026/03/05/[0-9a-f-]{36}\.png$`), key)

	assert.Regexp(t, `\.jpg$`, OriginalKey(now, "image/jpeg"))
	assert.Regexp(t, `\.webp$`, OriginalKey(now, "image/webp"))
	assert.NotEqual(t, OriginalKey(now, "image/png"), OriginalKey(now, "image/png"))
}

func TestStore_PutOriginal(t *testing.T) {
	srv, got := newFakeS3(t, http.StatusOK)
	store := newTestStore(t, srv.URL)

	data := []byte("\x89PNG\r\n\x1a\nfake")
	key, err := store.PutOriginal(context.Background(), data, "image/png")
	require.NoError(t, err)

	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, "/originals/"+key, req.path)
	assert.Equal(t, "image/png", req.contentType)
	assert.Contains(t, string(req.body), "fake")
}

func TestStore_PutOriginal_Error(t *testing.T) {
	srv, _ := newFakeS3(t, http.StatusForbidden)
	store := newTestStore(t, srv.URL)

	key, err := store.PutOriginal(context.Background(), []byte("x"), "image/jpeg")
	require.Error(t, err)
	assert.Empty(t, key)
	assert.Contains(t, err.Error(), "objectstore.PutOriginal")
}
