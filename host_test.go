package linky

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pevans/linky/nativemsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: frame each message into one input stream
func frames(t *testing.T, messages ...any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range messages {
		if raw, ok := m.(string); ok {
			require.NoError(t, nativemsg.WriteFrame(&buf, []byte(raw)))
			continue
		}
		require.NoError(t, nativemsg.WriteMessage(&buf, m))
	}
	return &buf
}

// Test helper: decode every reply written by the host
func replies(t *testing.T, out *bytes.Buffer) []nativemsg.Response {
	t.Helper()
	var resps []nativemsg.Response
	for {
		payload, err := nativemsg.ReadFrame(out)
		if errors.Is(err, io.EOF) {
			return resps
		}
		require.NoError(t, err)

		var resp nativemsg.Response
		require.NoError(t, json.Unmarshal(payload, &resp))
		resps = append(resps, resp)
	}
}

func markdownMessage(url, content string) map[string]any {
	return map[string]any{
		"action":  nativemsg.ActionSendMarkdown,
		"url":     url,
		"type":    "content",
		"content": content,
	}
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("pipe closed")
}

// TestHost_SavesUntilEOF verifies one reply per message and a clean exit
func TestHost_SavesUntilEOF(t *testing.T) {
	sink := &recordingSink{}
	in := frames(t,
		markdownMessage("https://github.com/golang/go", "A repository page with enough text."),
		markdownMessage("https://example.com/notes", "Notes about the release and its features."),
	)
	var out bytes.Buffer

	host := NewHost(NewPipeline(nil, sink), in, &out)
	require.NoError(t, host.Run(context.Background()))

	resps := replies(t, &out)
	require.Len(t, resps, 2)
	assert.True(t, resps[0].Saved)
	assert.Equal(t, "github_repositories", resps[0].CollectionName)
	assert.True(t, resps[1].Saved)
	assert.Equal(t, "example_pages", resps[1].CollectionName)
	assert.Len(t, sink.Calls(), 2)
}

// TestHost_ValidationError verifies invalid messages get a prefixed reply
func TestHost_ValidationError(t *testing.T) {
	msg := markdownMessage("https://example.com", "text")
	msg["action"] = "somethingElse"
	in := frames(t, msg, map[string]any{"url": "https://example.com"})
	var out bytes.Buffer

	host := NewHost(NewPipeline(nil, &recordingSink{}), in, &out)
	require.NoError(t, host.Run(context.Background()))

	resps := replies(t, &out)
	require.Len(t, resps, 2)
	assert.False(t, resps[0].Saved)
	assert.Equal(t, "Validation error: Invalid action: expected 'sendNativeMarkdown', got 'somethingElse'", resps[0].Error)
	assert.Equal(t, "Validation error: Missing required fields: action, type, content", resps[1].Error)
}

// TestHost_MalformedJSON verifies undecodable bodies get the generic reply
func TestHost_MalformedJSON(t *testing.T) {
	in := frames(t, "{not json", markdownMessage("https://example.com/a", "Valid content that follows a bad frame."))
	var out bytes.Buffer

	host := NewHost(NewPipeline(nil, &recordingSink{}), in, &out)
	require.NoError(t, host.Run(context.Background()))

	resps := replies(t, &out)
	require.Len(t, resps, 2)
	assert.Equal(t, nativemsg.Response{Saved: false, Error: "Internal error processing message"}, resps[0])
	assert.True(t, resps[1].Saved, "the loop continues after a bad body")
}

// TestHost_MarkupMessage verifies raw markup goes through extraction
func TestHost_MarkupMessage(t *testing.T) {
	sink := &recordingSink{}
	msg := markdownMessage("https://example.com/notes", articlePage)
	msg["markup"] = true
	msg["title"] = "Given Title"
	var out bytes.Buffer

	host := NewHost(NewPipeline(nil, sink), frames(t, msg), &out)
	require.NoError(t, host.Run(context.Background()))

	resps := replies(t, &out)
	require.Len(t, resps, 1)
	assert.True(t, resps[0].Saved)

	calls := sink.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Content, "# Given Title")
	assert.NotContains(t, calls[0].Content, "<p>")
}

// TestHost_SkippedReply verifies skipped captures say why
func TestHost_SkippedReply(t *testing.T) {
	var out bytes.Buffer
	host := NewHost(NewPipeline(nil, &recordingSink{}), frames(t, markdownMessage("https://example.com", "Loading...")), &out)
	require.NoError(t, host.Run(context.Background()))

	resps := replies(t, &out)
	require.Len(t, resps, 1)
	assert.False(t, resps[0].Saved)
	assert.Equal(t, "skipped: placeholder", resps[0].Error)
}

// TestHost_FilenameReply verifies file sinks report the file name
func TestHost_FilenameReply(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	var out bytes.Buffer
	in := frames(t, markdownMessage("https://www.example.com/guide", "A guide with several paragraphs of text."))
	host := NewHost(NewPipeline(nil, sink), in, &out)
	require.NoError(t, host.Run(context.Background()))

	resps := replies(t, &out)
	require.Len(t, resps, 1)
	assert.Equal(t, "example.com/guide.md", resps[0].Filename)
}

// TestHost_TruncatedFrame verifies a broken stream ends the loop with an error
func TestHost_TruncatedFrame(t *testing.T) {
	var in bytes.Buffer
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, 100)
	in.Write(header)
	in.WriteString("short")

	var out bytes.Buffer
	host := NewHost(NewPipeline(nil, &recordingSink{}), &in, &out)
	err := host.Run(context.Background())
	assert.ErrorIs(t, err, nativemsg.ErrTruncatedFrame)

	resps := replies(t, &out)
	require.Len(t, resps, 1)
	assert.Equal(t, "Internal error processing message", resps[0].Error)
}

// TestHost_WriteFailure verifies a failed reply ends the loop
func TestHost_WriteFailure(t *testing.T) {
	in := frames(t, markdownMessage("https://example.com", "Some content that is long enough."))

	host := NewHost(NewPipeline(nil, &recordingSink{}), in, failingWriter{})
	err := host.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write response")
}

// TestHost_Stop verifies Stop ends a host blocked on input
func TestHost_Stop(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	host := NewHost(NewPipeline(nil, &recordingSink{}), pr, io.Discard)
	done := make(chan error, 1)
	go func() { done <- host.Run(context.Background()) }()

	host.Stop()
	assert.NoError(t, <-done)
	host.Stop()
}

// TestHost_ContextCancelled verifies cancellation ends the loop
func TestHost_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	host := NewHost(NewPipeline(nil, &recordingSink{}), pr, io.Discard)
	done := make(chan error, 1)
	go func() { done <- host.Run(ctx) }()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// TestHost_ContextCancelledReleasesReader verifies the reader goroutine exits
// once Run has returned, even when Stop is never called
func TestHost_ContextCancelledReleasesReader(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	host := NewHost(NewPipeline(nil, &recordingSink{}), pr, io.Discard)
	done := make(chan error, 1)
	go func() { done <- host.Run(ctx) }()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// A frame arriving after Run returned must not strand the reader
	go nativemsg.WriteMessage(pw, markdownMessage("https://example.com/late", "late"))

	waited := make(chan struct{})
	go func() {
		host.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("reader goroutine did not exit")
	}
}
