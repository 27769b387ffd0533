package linky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/linky/archive"
)

// RequestIDHeader carries a per-request identifier between services.
const RequestIDHeader = "X-Request-ID"

// RemoteSink stores content in a linky-api server.
type RemoteSink struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteSink creates a sink for the server at baseURL.
func NewRemoteSink(baseURL string, client *http.Client) *RemoteSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteSink{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

type putEntryRequest struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Bucket  string `json:"bucket,omitempty"`
}

// Put sends content to the server. Transport and server failures are
// returned as an unsaved result.
func (rs *RemoteSink) Put(ctx context.Context, url, content, bucket string) archive.PutResult {
	fail := func(format string, args ...any) archive.PutResult {
		return archive.PutResult{Saved: false, Bucket: bucket, Error: fmt.Sprintf(format, args...)}
	}

	body, err := json.Marshal(putEntryRequest{URL: url, Content: content, Bucket: bucket})
	if err != nil {
		return fail("failed to encode request: %v", err)
	}

	req, err := rs.newRequest(ctx, http.MethodPut, "/entries", bytes.NewReader(body))
	if err != nil {
		return fail("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return fail("failed to reach archive: %v", err)
	}
	defer resp.Body.Close()

	var result archive.PutResult
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fail("archive returned %s: %s", resp.Status, readErrorMessage(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fail("failed to decode response: %v", err)
	}
	return result
}

// Heartbeat reports whether the server is reachable and its store healthy.
func (rs *RemoteSink) Heartbeat(ctx context.Context) error {
	req, err := rs.newRequest(ctx, http.MethodGet, "/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive unhealthy: %s", resp.Status)
	}
	return nil
}

func (rs *RemoteSink) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rs.baseURL+archiveAPIPrefix+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

// readErrorMessage extracts the message from an API error body.
func readErrorMessage(r io.Reader) string {
	var errResp ErrorResponse
	data, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil {
		return "unreadable response"
	}
	if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error.Message == "" {
		return strings.TrimSpace(string(data))
	}
	return errResp.Error.Message
}
