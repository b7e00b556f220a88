// ABOUTME: Error type for failed API calls
// ABOUTME: Extracts the server's structured message from error bodies, with a generic fallback
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const transportFallback = "unable to reach the server, please try again"

// ErrUnsupported is returned for operations a resource does not offer.
var ErrUnsupported = errors.New("operation not supported for this resource")

// Error is a transport or server failure. StatusCode is 0 when the request
// never got a response.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a GET that failed this way may be tried again.
func (e *Error) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Message returns the user-facing message for err: the server's message for
// *Error, otherwise err's own text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func fallbackMessage(status int) string {
	return fmt.Sprintf("request failed with status %d", status)
}

// parseError builds an *Error from a non-2xx body. Servers answer with
// {"message": ...}, {"error": ...} or {"error": {"message": ...}}.
func parseError(status int, body []byte, requestID string) *Error {
	e := &Error{StatusCode: status, RequestID: requestID, Message: fallbackMessage(status)}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return e
	}

	for _, key := range []string{"message", "error", "msg"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		if msg := messageFrom(raw); msg != "" {
			e.Message = msg
			return e
		}
	}
	return e
}

func messageFrom(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return ""
}
