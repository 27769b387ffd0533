package linky

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/linky/archive"
	"github.com/pevans/linky/classify"
)

// Sink accepts archived content. Failures are reported in the result, never
// as a panic or error return. *archive.Store is a Sink.
type Sink interface {
	Put(ctx context.Context, url, content, bucket string) archive.PutResult
}

// FileNamer is implemented by sinks that store each URL under a file name.
type FileNamer interface {
	FileName(url string) (string, error)
}

var _ Sink = (*archive.Store)(nil)

// FileSink writes each page as a markdown file under a directory, one file
// per URL. Later captures overwrite earlier ones.
type FileSink struct {
	dir string
}

// NewFileSink creates a file sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	// 0700: owner-only access
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileSink{dir: dir}, nil
}

// FileName returns the path of url's file relative to the sink's directory.
func (fs *FileSink) FileName(url string) (string, error) {
	return classify.MakeFilename(url)
}

// Put writes content to url's file. The bucket is only echoed back.
func (fs *FileSink) Put(ctx context.Context, url, content, bucket string) archive.PutResult {
	if err := ctx.Err(); err != nil {
		return archive.PutResult{Saved: false, Bucket: bucket, Error: err.Error()}
	}

	name, err := fs.FileName(url)
	if err != nil {
		return archive.PutResult{Saved: false, Bucket: bucket, Error: fmt.Sprintf("failed to name file: %v", err)}
	}

	path := filepath.Join(fs.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return archive.PutResult{Saved: false, Bucket: bucket, Error: fmt.Sprintf("failed to create directory: %v", err)}
	}

	// 0600: owner-only read/write
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return archive.PutResult{Saved: false, Bucket: bucket, Error: fmt.Sprintf("failed to write file: %v", err)}
	}

	return archive.PutResult{Saved: true, Bucket: bucket}
}

// Read returns the stored content for url.
func (fs *FileSink) Read(url string) (string, error) {
	name, err := fs.FileName(url)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(fs.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}
