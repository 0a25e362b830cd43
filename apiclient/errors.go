package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	internalerrors "github.com/jrsteele09/go-campsite-client/internal/errors"
)

// Kind classifies a failed backend call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuth
	KindValidation
	KindNotFound
	KindServer
)

var kindSentinels = map[Kind]error{
	KindUnknown:    internalerrors.ErrUnknown,
	KindNetwork:    internalerrors.ErrNetwork,
	KindAuth:       internalerrors.ErrAuth,
	KindValidation: internalerrors.ErrValidation,
	KindNotFound:   internalerrors.ErrNotFound,
	KindServer:     internalerrors.ErrServer,
}

// Generic messages shown when the backend gives none.
var defaultMessages = map[Kind]string{
	KindUnknown:    "An unknown error occurred.",
	KindNetwork:    "Network error. Please check your internet connection.",
	KindAuth:       "Authentication error. Please log in again.",
	KindValidation: "Invalid input. Please check your data.",
	KindNotFound:   "Resource not found.",
	KindServer:     "Server error. Please try again later.",
}

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is returned for every failed backend call.
type Error struct {
	Kind       Kind
	StatusCode int                 // 0 when no response was received
	Message    string              // safe to show to the user
	Fields     map[string][]string // field level detail for validation errors
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels in internal/errors.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if internalerrors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return internalerrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindUnknown
	}
}

func newNetworkError(requestID string, err error) *Error {
	return &Error{
		Kind:      KindNetwork,
		Message:   defaultMessages[KindNetwork],
		RequestID: requestID,
		Err:       err,
	}
}

// newResponseError builds an Error from a non-2xx response, pulling the
// message from the usual detail/message/error keys.
func newResponseError(resp *Response) *Error {
	kind := kindFromStatus(resp.StatusCode)
	apiErr := &Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		RequestID:  resp.RequestID,
		Err:        kindSentinels[kind],
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &body); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			var msg string
			if raw, ok := body[key]; ok && json.Unmarshal(raw, &msg) == nil && msg != "" {
				apiErr.Message = msg
				delete(body, key)
				break
			}
		}
		if kind == KindValidation {
			apiErr.Fields = fieldErrors(body)
		}
	}

	if apiErr.Message == "" {
		if msgs := apiErr.Fields["non_field_errors"]; len(msgs) > 0 {
			apiErr.Message = msgs[0]
		} else {
			apiErr.Message = defaultMessages[kind]
		}
	}
	return apiErr
}

// fieldErrors extracts {"field": ["msg", ...]} and {"field": "msg"} entries.
func fieldErrors(body map[string]json.RawMessage) map[string][]string {
	fields := make(map[string][]string)
	for k, raw := range body {
		var msgs []string
		if err := json.Unmarshal(raw, &msgs); err == nil && len(msgs) > 0 {
			fields[k] = msgs
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			fields[k] = []string{msg}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
