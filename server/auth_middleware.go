package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-campsite-client/auth"
	"github.com/jrsteele09/go-campsite-client/guard"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyRequestID stores the request id
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeySession stores the session snapshot the guard decided on
	ContextKeySession ContextKey = "session"
)

const loadingRetryAfter = 1 // seconds

// RequireRoute evaluates the route guard before the handler runs. Handlers
// only ever see a session the guard has rendered for.
func (s *Server) RequireRoute(route guard.Route) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := s.sessions.Session()
			decision := s.guard.Evaluate(session, route, r.URL.RequestURI())

			log.Debug().
				Str("request_id", requestIDFrom(r.Context())).
				Str("route", route.Path).
				Stringer("outcome", decision.Outcome).
				Msg("route guard")

			switch decision.Outcome {
			case guard.Wait:
				w.Header().Set("Retry-After", strconv.Itoa(loadingRetryAfter))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			case guard.RedirectLogin:
				writeRedirect(w, r, http.StatusUnauthorized, "not_authenticated", "Please log in to continue.", decision.Location)
			case guard.RedirectDefault:
				writeRedirect(w, r, http.StatusForbidden, "forbidden", "You do not have access to this page.", decision.Location)
			default:
				ctx := context.WithValue(r.Context(), ContextKeySession, session)
				next(w, r.WithContext(ctx))
			}
		}
	}
}

func sessionFrom(ctx context.Context) auth.Session {
	session, _ := ctx.Value(ContextKeySession).(auth.Session)
	return session
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}
