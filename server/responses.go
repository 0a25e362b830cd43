package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-campsite-client/apiclient"
	internalerrors "github.com/jrsteele09/go-campsite-client/internal/errors"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Fields    map[string][]string `json:"fields,omitempty"`
	Location  string              `json:"location,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields map[string][]string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		Fields:    fields,
		RequestID: requestIDFrom(r.Context()),
	}})
}

// writeRedirect sends browsers a 303 and JSON clients an error envelope
// carrying the location.
func writeRedirect(w http.ResponseWriter, r *http.Request, jsonStatus int, code, message, location string) {
	if !wantsJSON(r) {
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	writeJSON(w, jsonStatus, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		Location:  location,
		RequestID: requestIDFrom(r.Context()),
	}})
}

// writeLocation reports a successful action that moves the user elsewhere.
func writeLocation(w http.ResponseWriter, r *http.Request, status int, location string, body map[string]any) {
	if !wantsJSON(r) {
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	if body == nil {
		body = map[string]any{}
	}
	body["location"] = location
	writeJSON(w, status, body)
}

// writeAPIError maps a failed backend call onto the error envelope. A forced
// logout raised by the call wins over the error itself.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	if location, ok := s.navigator.Take(); ok {
		if location == s.guard.LoginPath() {
			location = s.guard.LoginURL(r.URL.RequestURI())
		}
		writeRedirect(w, r, http.StatusUnauthorized, "session_expired", "Your session has expired. Please log in again.", location)
		return
	}

	var apiErr *apiclient.Error
	switch {
	case internalerrors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		writeError(w, r, status, apiErr.Kind.String(), apiErr.Message, apiErr.Fields)
	case internalerrors.Is(err, internalerrors.ErrNotAuthenticated), internalerrors.Is(err, internalerrors.ErrStaleSession):
		writeError(w, r, http.StatusUnauthorized, "not_authenticated", "Please log in to continue.", nil)
	case internalerrors.Is(err, internalerrors.ErrSessionClosed):
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "The service is shutting down.", nil)
	default:
		log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("unexpected error")
		writeError(w, r, http.StatusInternalServerError, "unknown", "An unknown error occurred.", nil)
	}
}

// wantsJSON treats everything but a browser navigation or form post as a JSON client.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	if strings.Contains(accept, "text/html") {
		return false
	}
	return !strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
