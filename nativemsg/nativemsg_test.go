package nativemsg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: a valid message as a decoded JSON object
func validFields() map[string]any {
	return map[string]any{
		"action":  "sendNativeMarkdown",
		"url":     "https://example.com",
		"type":    "content",
		"content": "Hello world",
	}
}

// Test helper: validate and return the validation message
func validationMessage(t *testing.T, data any) string {
	t.Helper()
	_, err := Validate(data)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected a ValidationError, got %T", err)
	return verr.Message
}

// TestFrame_RoundTrip verifies frames written can be read back
func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"a":1}`)))
	require.NoError(t, WriteFrame(&buf, []byte(`{}`)))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(second))

	_, err = ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

// TestFrame_LittleEndianHeader verifies the wire layout
func TestFrame_LittleEndianHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))

	assert.Equal(t, []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}, buf.Bytes())
}

// TestReadFrame_CleanEOF verifies an empty stream is a clean shutdown
func TestReadFrame_CleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

// TestReadFrame_ShortHeader verifies a partial header is a framing error
func TestReadFrame_ShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 0}))
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

// TestReadFrame_TruncatedBody verifies EOF mid-body is a framing error
func TestReadFrame_TruncatedBody(t *testing.T) {
	frame := []byte{10, 0, 0, 0, 'a', 'b', 'c'}
	_, err := ReadFrame(bytes.NewReader(frame))
	assert.ErrorIs(t, err, ErrTruncatedFrame)
	assert.NotErrorIs(t, err, io.EOF)
}

// TestReadFrame_TooLarge verifies oversized frames are refused before reading
func TestReadFrame_TooLarge(t *testing.T) {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, MaxReadBytes+1)

	_, err := ReadFrame(bytes.NewReader(header))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

// TestWriteFrame_TooLarge verifies replies over the browser limit are refused
func TestWriteFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxWriteBytes+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len())
}

// TestWriteMessage verifies responses are framed JSON
func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Response{Saved: true, CollectionName: "example_pages"}))

	body, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.JSONEq(t, `{"saved":true,"collection_name":"example_pages"}`, string(body))
}

// TestValidate_Accepts verifies valid messages and every type
func TestValidate_Accepts(t *testing.T) {
	for _, typ := range []string{"profile", "search", "content"} {
		fields := validFields()
		fields["type"] = typ

		msg, err := Validate(fields)
		require.NoError(t, err)
		assert.Equal(t, MessageType(typ), msg.Type)
		assert.Equal(t, "https://example.com", msg.URL)
		assert.Equal(t, "Hello world", msg.Content)
	}
}

// TestValidate_NonObject verifies non-object payloads are rejected
func TestValidate_NonObject(t *testing.T) {
	for _, data := range []any{nil, "string", float64(123), []any{}} {
		assert.Equal(t, "Message must be an object", validationMessage(t, data))
	}
}

// TestValidate_MissingFields verifies every missing field is listed in order
func TestValidate_MissingFields(t *testing.T) {
	for _, field := range requiredFields {
		fields := validFields()
		delete(fields, field)
		assert.Equal(t, "Missing required fields: "+field, validationMessage(t, fields))
	}

	assert.Equal(t, "Missing required fields: action, url, type, content",
		validationMessage(t, map[string]any{}))
}

// TestValidate_FilenameStandsInForURL verifies the filename alias
func TestValidate_FilenameStandsInForURL(t *testing.T) {
	fields := validFields()
	delete(fields, "url")
	fields["filename"] = "https://example.com/page"

	msg, err := Validate(fields)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", msg.URL)
}

// TestValidate_InvalidAction verifies the action literal
func TestValidate_InvalidAction(t *testing.T) {
	fields := validFields()
	fields["action"] = "wrongAction"
	assert.Equal(t, "Invalid action: expected 'sendNativeMarkdown', got 'wrongAction'", validationMessage(t, fields))

	fields["action"] = float64(5)
	assert.Equal(t, "Invalid action: expected 'sendNativeMarkdown', got '5'", validationMessage(t, fields))
}

// TestValidate_NonStringFields verifies url and content must be strings
func TestValidate_NonStringFields(t *testing.T) {
	fields := validFields()
	fields["url"] = float64(123)
	assert.Equal(t, "url must be a string", validationMessage(t, fields))

	fields = validFields()
	fields["content"] = map[string]any{"text": "hi"}
	assert.Equal(t, "content must be a string", validationMessage(t, fields))
}

// TestValidate_InvalidType verifies the type enumeration
func TestValidate_InvalidType(t *testing.T) {
	fields := validFields()
	fields["type"] = "invalid"
	assert.Equal(t, "Invalid type: expected one of profile, search, content, got 'invalid'", validationMessage(t, fields))

	fields["type"] = nil
	assert.Equal(t, "Invalid type: expected one of profile, search, content, got 'null'", validationMessage(t, fields))
}

// TestValidate_OptionalFields verifies title and markup are carried through
func TestValidate_OptionalFields(t *testing.T) {
	fields := validFields()
	fields["title"] = "Page Title"
	fields["markup"] = true

	msg, err := Validate(fields)
	require.NoError(t, err)
	assert.Equal(t, "Page Title", msg.Title)
	assert.True(t, msg.Markup)
}

// TestDecode verifies JSON errors are not validation errors
func TestDecode(t *testing.T) {
	payload, err := json.Marshal(validFields())
	require.NoError(t, err)

	msg, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, ActionSendMarkdown, msg.Action)

	_, err = Decode([]byte("{not json"))
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))

	_, err = Decode([]byte(`"just a string"`))
	assert.True(t, errors.As(err, &verr))
}
