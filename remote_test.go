package linky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: serve a fresh archive over HTTP
func setupRemoteSink(t *testing.T) (*RemoteSink, *httptest.Server) {
	router, _ := setupTestArchiveRouter(t)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return NewRemoteSink(ts.URL+"/", nil), ts
}

// TestRemoteSink_Put verifies content reaches the server's archive
func TestRemoteSink_Put(t *testing.T) {
	store := createTestArchive(t)
	ts := httptest.NewServer(NewAPIServer(store, zerolog.Nop()).SetupRouter())
	defer ts.Close()

	sink := NewRemoteSink(ts.URL, nil)
	res := sink.Put(context.Background(), "https://example.com/a", "remote body", "example_pages")
	require.True(t, res.Saved, res.Error)
	assert.Equal(t, "example_pages", res.Bucket)

	entries, err := store.GetByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "remote body", entries[0].Content)
}

// TestRemoteSink_ServerError verifies API errors become unsaved results
func TestRemoteSink_ServerError(t *testing.T) {
	sink, _ := setupRemoteSink(t)

	res := sink.Put(context.Background(), "", "body", "b")
	assert.False(t, res.Saved)
	assert.Contains(t, res.Error, "400")
}

// TestRemoteSink_Unreachable verifies transport failures become unsaved results
func TestRemoteSink_Unreachable(t *testing.T) {
	sink, ts := setupRemoteSink(t)
	ts.Close()

	res := sink.Put(context.Background(), "https://example.com/a", "body", "example_pages")
	assert.False(t, res.Saved)
	assert.Equal(t, "example_pages", res.Bucket)
	assert.Contains(t, res.Error, "failed to reach archive")

	assert.Error(t, sink.Heartbeat(context.Background()))
}

// TestRemoteSink_Heartbeat verifies the health check
func TestRemoteSink_Heartbeat(t *testing.T) {
	sink, _ := setupRemoteSink(t)
	assert.NoError(t, sink.Heartbeat(context.Background()))
}

// TestRemoteSink_SendsRequestID verifies each request is tagged
func TestRemoteSink_SendsRequestID(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"saved":true,"bucket":"x"}`))
	}))
	defer ts.Close()

	res := NewRemoteSink(ts.URL, nil).Put(context.Background(), "https://example.com", "c", "x")
	assert.True(t, res.Saved)
	_, err := uuid.Parse(got)
	assert.NoError(t, err)
}

// TestRemoteSink_ErrorMessage verifies the server's message is surfaced
func TestRemoteSink_ErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"internal_error","message":"database is locked"}}`))
	}))
	defer ts.Close()

	res := NewRemoteSink(ts.URL, nil).Put(context.Background(), "https://example.com", "c", "x")
	assert.False(t, res.Saved)
	assert.Contains(t, res.Error, "database is locked")
}

// TestPipeline_RemoteSink verifies the pipeline can archive over HTTP
func TestPipeline_RemoteSink(t *testing.T) {
	sink, _ := setupRemoteSink(t)
	p := NewPipeline(nil, sink)

	res := p.Process(context.Background(), Page{URL: "https://example.com/notes", Markup: articlePage})
	assert.True(t, res.Saved, res.Error)
	assert.Equal(t, "example_pages", res.Bucket)
}
