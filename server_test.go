package linky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/linky/archive"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Test helper: create a test router over a fresh archive
func setupTestArchiveRouter(t *testing.T) (*gin.Engine, *archive.Store) {
	store := createTestArchive(t)
	server := NewAPIServer(store, zerolog.Nop())
	return server.SetupRouter(), store
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

// TestHandleStats_Empty verifies stats on a new archive
func TestHandleStats_Empty(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var stats archive.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalEntries)
	assert.Zero(t, stats.TotalSizeBytes)
	assert.Nil(t, stats.LastEviction)
}

// TestHandlePutEntry_ClassifiesWhenBucketMissing verifies the default bucket
func TestHandlePutEntry_ClassifiesWhenBucketMissing(t *testing.T) {
	router, store := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodPut, "/api/v1/archive/entries",
		`{"url":"https://github.com/golang/go/issues/1","content":"issue body"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result archive.PutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Saved)
	assert.Equal(t, "github_issues", result.Bucket)

	entries, err := store.GetByBucket(context.Background(), "github_issues")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "issue body", entries[0].Content)
}

// TestHandlePutEntry_ExplicitBucket verifies a caller bucket is kept
func TestHandlePutEntry_ExplicitBucket(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodPut, "/api/v1/archive/entries",
		`{"url":"https://example.com/a","content":"body","bucket":"reading_list"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result archive.PutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "reading_list", result.Bucket)
}

// TestHandlePutEntry_Validation verifies malformed bodies are rejected
func TestHandlePutEntry_Validation(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"content":"body"}`},
		{"malformed json", `{"url":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPut, "/api/v1/archive/entries", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", decodeError(t, w).Code)
		})
	}
}

// TestHandleGetEntries verifies lookup by URL
func TestHandleGetEntries(t *testing.T) {
	router, store := setupTestArchiveRouter(t)
	require.True(t, store.Put(context.Background(), "https://example.com/a", "body", "example_pages").Saved)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/entries?url=https://example.com/a", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp EntriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "https://example.com/a", resp.Entries[0].URL)
	assert.Equal(t, int64(4), resp.Entries[0].SizeBytes)
}

// TestHandleGetEntries_Empty verifies an empty list rather than null
func TestHandleGetEntries_Empty(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/entries?url=https://example.com/none", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entries":[]`)
}

// TestHandleGetEntries_MissingURL verifies the query parameter is required
func TestHandleGetEntries_MissingURL(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/entries", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decodeError(t, w).Code)
}

// TestHandleGetBucket verifies lookup by bucket
func TestHandleGetBucket(t *testing.T) {
	router, store := setupTestArchiveRouter(t)
	ctx := context.Background()
	require.True(t, store.Put(ctx, "https://example.com/a", "a", "example_pages").Saved)
	require.True(t, store.Put(ctx, "https://example.com/b", "b", "example_pages").Saved)
	require.True(t, store.Put(ctx, "https://other.org/c", "c", "other_pages").Saved)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/buckets/example_pages", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp EntriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

// TestHandleDeleteEntries verifies deletion reports a count
func TestHandleDeleteEntries(t *testing.T) {
	router, store := setupTestArchiveRouter(t)
	require.True(t, store.Put(context.Background(), "https://example.com/a", "a", "example_pages").Saved)

	w := doRequest(router, http.MethodDelete, "/api/v1/archive/entries?url=https://example.com/a", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp DeleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Deleted)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
}

// TestHandleClear verifies the archive is emptied
func TestHandleClear(t *testing.T) {
	router, store := setupTestArchiveRouter(t)
	require.True(t, store.Put(context.Background(), "https://example.com/a", "a", "example_pages").Saved)

	w := doRequest(router, http.MethodDelete, "/api/v1/archive/entries/all", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
	require.NoError(t, store.Verify(context.Background()))
}

// TestHandleHeartbeat verifies liveness
func TestHandleHeartbeat(t *testing.T) {
	router, store := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/heartbeat", "")
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, store.Close())
	w = doRequest(router, http.MethodGet, "/api/v1/archive/heartbeat", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestHandleVerify verifies a consistent archive passes
func TestHandleVerify(t *testing.T) {
	router, store := setupTestArchiveRouter(t)
	require.True(t, store.Put(context.Background(), "https://example.com/a", "a", "example_pages").Saved)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/verify", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestHandleClassify verifies the bucket and file name preview
func TestHandleClassify(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/archive/classify?url=https://www.reddit.com/r/golang/comments/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "reddit_golang", resp.Bucket)
	assert.Equal(t, "reddit.com/r_golang_comments_1.md", resp.Filename)
}

// TestCORS_Preflight verifies OPTIONS requests short-circuit
func TestCORS_Preflight(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	w := doRequest(router, http.MethodOptions, "/api/v1/archive/entries", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// TestRequestID verifies IDs are echoed or generated
func TestRequestID(t *testing.T) {
	router, _ := setupTestArchiveRouter(t)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/archive/stats", nil)
	req.Header.Set(RequestIDHeader, id)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	w = doRequest(router, http.MethodGet, "/api/v1/archive/stats", "")
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "a fresh ID is generated when none is sent")
}
