package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-campsite-client/users"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type loginRequest struct {
	users.Credentials
	Next string `json:"next,omitempty"`
}

// LoginPageHandler reports whether a login is needed. An authenticated user
// is sent on to the page they originally asked for.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := r.URL.Query().Get("next")
		if sessionFrom(r.Context()).IsAuthenticated {
			writeLocation(w, r, http.StatusOK, s.guard.ResumeLocation(next), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"app_name":      s.config.GetAppName(),
			"next":          next,
		})
	}
}

// LoginHandler accepts a JSON body or a form post and resumes at next.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeLogin(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation", "Invalid login request.", nil)
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			writeError(w, r, http.StatusBadRequest, "validation", "Email and password are required.", nil)
			return
		}

		profile, err := s.sessions.Login(r.Context(), req.Credentials)
		if err != nil {
			log.Info().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("login failed")
			s.writeAPIError(w, r, err)
			return
		}
		writeLocation(w, r, http.StatusOK, s.guard.ResumeLocation(req.Next), map[string]any{"user": profile})
	}
}

func decodeLogin(r *http.Request) (loginRequest, error) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
		req.Next = r.PostForm.Get("next")
	} else if err := decodeJSON(r, &req); err != nil {
		return req, err
	}
	if req.Next == "" {
		req.Next = r.URL.Query().Get("next")
	}
	return req, nil
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg users.Registration
		if err := decodeJSON(r, &reg); err != nil {
			writeError(w, r, http.StatusBadRequest, "validation", "Invalid registration request.", nil)
			return
		}

		profile, err := s.sessions.Register(r.Context(), reg)
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		writeLocation(w, r, http.StatusCreated, s.guard.DefaultPath(), map[string]any{"user": profile})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.Logout(r.Context()); err != nil {
			log.Warn().Err(err).Msg("logout")
		}
		location, ok := s.navigator.Take()
		if !ok {
			location = s.guard.LoginPath()
		}
		writeLocation(w, r, http.StatusOK, location, nil)
	}
}

type sessionView struct {
	Authenticated   bool           `json:"authenticated"`
	Loading         bool           `json:"loading"`
	User            *users.Profile `json:"user,omitempty"`
	AccessExpiresAt *time.Time     `json:"access_expires_at,omitempty"`
	AccessValid     bool           `json:"access_valid"`
}

// SessionHandler reports the session state, including while it is loading.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.sessions.Session()
		view := sessionView{
			Authenticated: session.IsAuthenticated,
			Loading:       session.IsLoading,
			User:          session.User,
		}
		if pair, ok := s.store.Read(r.Context()); ok {
			tok := pair.OAuth2Token()
			view.AccessValid = tok.Valid()
			if !tok.Expiry.IsZero() {
				view.AccessExpiresAt = &tok.Expiry
			}
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sessionFrom(r.Context()).User)
	}
}

func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update users.ProfileUpdate
		if err := decodeJSON(r, &update); err != nil {
			writeError(w, r, http.StatusBadRequest, "validation", "Invalid profile update.", nil)
			return
		}

		profile, err := s.sessions.UpdateProfile(r.Context(), update)
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func decodeJSON(r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
