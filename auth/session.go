package auth

import (
	"github.com/jrsteele09/go-campsite-client/internal/utils"
	"github.com/jrsteele09/go-campsite-client/token"
	"github.com/jrsteele09/go-campsite-client/users"
)

// Session is a snapshot of who is logged in.
// IsAuthenticated is always equivalent to User != nil.
type Session struct {
	User            *users.Profile
	IsAuthenticated bool
	IsLoading       bool
}

func anonymous(loading bool) Session {
	return Session{IsLoading: loading}
}

func authenticated(user *users.Profile) Session {
	return Session{User: user, IsAuthenticated: true}
}

func (s Session) clone() Session {
	s.User = utils.Clone(s.User)
	return s
}

// HasRole reports whether the session's user satisfies the required role.
func (s Session) HasRole(required users.Role) bool {
	return s.IsAuthenticated && users.Authorize(s.User, required)
}

// Endpoints are the backend paths used by the session manager.
type Endpoints struct {
	Login    string
	Register string
	Logout   string
	Profile  string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:    "/api/auth/token/",
		Register: "/api/auth/register/",
		Logout:   "/api/auth/logout/",
		Profile:  "/api/auth/profile/",
	}
}

func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.Login == "" {
		e.Login = d.Login
	}
	if e.Register == "" {
		e.Register = d.Register
	}
	if e.Logout == "" {
		e.Logout = d.Logout
	}
	if e.Profile == "" {
		e.Profile = d.Profile
	}
	return e
}

type loginResponse struct {
	token.Pair
	User *users.Profile `json:"user"`
}

type registerResponse struct {
	Tokens token.Pair     `json:"tokens"`
	User   *users.Profile `json:"user"`
}
