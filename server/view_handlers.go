package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-campsite-client/apiclient"
)

// backendPath resolves the backend path for an incoming request.
type backendPath func(r *http.Request) string

func fixedPath(path string) backendPath {
	return func(*http.Request) string {
		return path
	}
}

// idPath fills the {id} URL parameter into format.
func idPath(format string) backendPath {
	return func(r *http.Request) string {
		return fmt.Sprintf(format, url.PathEscape(chi.URLParam(r, "id")))
	}
}

// ProxyHandler forwards the request to the backend through the authenticated
// client and relays the backend's JSON. GET query strings and request bodies
// are passed through unchanged.
func (s *Server) ProxyHandler(method string, path backendPath) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &apiclient.Request{Method: method, Path: path(r)}
		if method == http.MethodGet {
			req.Query = r.URL.Query()
		} else {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeError(w, r, http.StatusRequestEntityTooLarge, "validation", "Request body too large.", nil)
				return
			}
			if len(body) > 0 {
				if !json.Valid(body) {
					writeError(w, r, http.StatusBadRequest, "validation", "Request body must be JSON.", nil)
					return
				}
				req.Body = json.RawMessage(body)
			}
		}

		resp, err := s.client.Do(r.Context(), req)
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		relay(w, resp)
	}
}

// CancelBookingHandler marks a booking as cancelled.
func (s *Server) CancelBookingHandler() http.HandlerFunc {
	path := idPath(apiBooking)
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := s.client.Patch(r.Context(), path(r), map[string]string{"status": "cancelled"})
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		relay(w, resp)
	}
}

// DashboardHandler combines the owner statistics with the bookings awaiting
// confirmation.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.client.Get(r.Context(), apiDashboardStats, nil)
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		pending, err := s.client.Get(r.Context(), apiPendingBookings, nil)
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]json.RawMessage{
			"stats":            rawOrNull(stats.Body),
			"pending_bookings": rawOrNull(pending.Body),
		})
	}
}

func relay(w http.ResponseWriter, resp *apiclient.Response) {
	if len(resp.Body) == 0 {
		w.WriteHeader(resp.StatusCode)
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func rawOrNull(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return json.RawMessage("null")
	}
	return body
}
