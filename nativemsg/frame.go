// Package nativemsg implements the browser native messaging stdio protocol:
// each message is a 4-byte little-endian length followed by that many bytes
// of UTF-8 JSON.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Browsers accept at most 1 MiB from a host and send at most 64 MiB to one.
const (
	MaxReadBytes  = 64 * 1024 * 1024
	MaxWriteBytes = 1024 * 1024
)

const headerSize = 4

var (
	// ErrTruncatedFrame means the stream ended inside a frame.
	ErrTruncatedFrame = errors.New("unexpected EOF while reading message")

	// ErrFrameTooLarge means a frame exceeds the protocol limit.
	ErrFrameTooLarge = errors.New("message exceeds size limit")
)

// ReadFrame reads one frame body. It returns io.EOF when the stream ends
// cleanly before a header, and ErrTruncatedFrame when it ends anywhere else.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: short header", ErrTruncatedFrame)
		}
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	n := binary.LittleEndian.Uint32(header[:])
	if n > MaxReadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: expected %d bytes", ErrTruncatedFrame, n)
		}
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	return body, nil
}

// WriteFrame writes payload as one frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxWriteBytes {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// WriteMessage encodes v as JSON and writes it as one frame.
func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return WriteFrame(w, payload)
}
