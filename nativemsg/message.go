package nativemsg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ActionSendMarkdown is the only action a host accepts.
const ActionSendMarkdown = "sendNativeMarkdown"

// MessageType says what kind of page produced the content.
type MessageType string

const (
	TypeProfile MessageType = "profile"
	TypeSearch  MessageType = "search"
	TypeContent MessageType = "content"
)

var validTypes = []MessageType{TypeProfile, TypeSearch, TypeContent}

var requiredFields = []string{"action", "url", "type", "content"}

// Message is a validated request from the browser. Content is markdown
// unless Markup is set, in which case it is raw page markup.
type Message struct {
	Action  string      `json:"action"`
	URL     string      `json:"url"`
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	Title   string      `json:"title,omitempty"`
	Markup  bool        `json:"markup,omitempty"`
}

// Response is the reply written for every message.
type Response struct {
	Saved          bool   `json:"saved"`
	CollectionName string `json:"collection_name,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ValidationError describes a structurally invalid message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Decode parses a frame body and validates it. Malformed JSON is returned as
// a plain error, structural problems as a *ValidationError.
func Decode(payload []byte) (*Message, error) {
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return Validate(data)
}

// Validate checks a decoded JSON value. A "filename" field stands in for a
// missing "url".
func Validate(data any) (*Message, error) {
	fields, ok := data.(map[string]any)
	if !ok || fields == nil {
		return nil, invalid("Message must be an object")
	}

	if _, hasURL := fields["url"]; !hasURL {
		if filename, ok := fields["filename"]; ok {
			fields["url"] = filename
		}
	}

	var missing []string
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, invalid("Missing required fields: %s", strings.Join(missing, ", "))
	}

	if action, ok := fields["action"].(string); !ok || action != ActionSendMarkdown {
		return nil, invalid("Invalid action: expected '%s', got '%s'", ActionSendMarkdown, formatValue(fields["action"]))
	}

	url, ok := fields["url"].(string)
	if !ok {
		return nil, invalid("url must be a string")
	}

	content, ok := fields["content"].(string)
	if !ok {
		return nil, invalid("content must be a string")
	}

	typ, _ := fields["type"].(string)
	if !isValidType(typ) {
		names := make([]string, 0, len(validTypes))
		for _, t := range validTypes {
			names = append(names, string(t))
		}
		return nil, invalid("Invalid type: expected one of %s, got '%s'", strings.Join(names, ", "), formatValue(fields["type"]))
	}

	msg := &Message{
		Action:  ActionSendMarkdown,
		URL:     url,
		Type:    MessageType(typ),
		Content: content,
	}
	if title, ok := fields["title"].(string); ok {
		msg.Title = title
	}
	if markup, ok := fields["markup"].(bool); ok {
		msg.Markup = markup
	}
	return msg, nil
}

func isValidType(s string) bool {
	for _, t := range validTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// formatValue renders a decoded JSON value for an error message.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
