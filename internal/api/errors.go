package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fallback messages when the service gives nothing usable.
const (
	MsgRequestFailed = "Failed to convert file"
	MsgUnexpected    = "An unexpected error occurred"
)

// Error is the single error type returned for transport and backend
// failures. StatusCode is zero when no response was received.
type Error struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the service rejected the session token.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == 401
}

// errorMessage extracts a human-readable message from an error body: a
// plain string, else "message", else "detail", else fallback.
func errorMessage(body []byte, fallback string) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fallback
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Not JSON: the body is the message.
		return trimmed
	}

	switch v := payload.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]interface{}:
		for _, key := range []string{"message", "detail"} {
			if msg := stringify(v[key]); msg != "" {
				return msg
			}
		}
	}
	return fallback
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		// Validation errors arrive as a list of objects under "detail".
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
