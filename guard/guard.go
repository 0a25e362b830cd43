// Package guard decides whether a requested view may be rendered for the
// current session.
package guard

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-campsite-client/auth"
	"github.com/jrsteele09/go-campsite-client/users"
)

// Outcome is the result of evaluating a navigation.
type Outcome int

const (
	// Wait means the session is still loading; render a neutral state.
	Wait Outcome = iota
	// RedirectLogin sends an anonymous user to login, remembering From.
	RedirectLogin
	// RedirectDefault sends an authenticated but unauthorized user to the default view.
	RedirectDefault
	// Render allows the view.
	Render
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDefault:
		return "redirect_default"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Route describes a view. Role is only consulted for protected routes;
// users.RoleAny admits any authenticated user.
type Route struct {
	Path      string
	Protected bool
	Role      users.Role
}

type Decision struct {
	Outcome  Outcome
	Location string // where to go for redirects
	From     string // requested location, set for RedirectLogin
}

const (
	DefaultLoginPath   = "/login"
	DefaultDefaultPath = "/"
	nextParam          = "next"
)

// Evaluate applies the default login and default-view paths.
func Evaluate(s auth.Session, r Route, location string) Decision {
	return New(DefaultLoginPath, DefaultDefaultPath).Evaluate(s, r, location)
}

type Guard struct {
	loginPath   string
	defaultPath string
}

func New(loginPath, defaultPath string) *Guard {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if defaultPath == "" {
		defaultPath = DefaultDefaultPath
	}
	return &Guard{loginPath: loginPath, defaultPath: defaultPath}
}

// Evaluate decides the outcome for a navigation to location. No authorization
// decision is made while the session is loading.
func (g *Guard) Evaluate(s auth.Session, r Route, location string) Decision {
	switch {
	case s.IsLoading:
		return Decision{Outcome: Wait}
	case !r.Protected:
		return Decision{Outcome: Render}
	case !s.IsAuthenticated || s.User == nil:
		return Decision{Outcome: RedirectLogin, Location: g.LoginURL(location), From: location}
	case !users.Authorize(s.User, r.Role):
		return Decision{Outcome: RedirectDefault, Location: g.defaultPath}
	default:
		return Decision{Outcome: Render}
	}
}

// LoginURL builds the login location carrying the page to resume after login.
func (g *Guard) LoginURL(from string) string {
	if from == "" || from == g.loginPath {
		return g.loginPath
	}
	return g.loginPath + "?" + url.Values{nextParam: {from}}.Encode()
}

// ResumeLocation returns where to go after a successful login. Only local
// paths are honoured; anything else falls back to the default view.
// Backslashes count as slashes since browsers read "/\host" as "//host".
func (g *Guard) ResumeLocation(next string) string {
	if !isLocalPath(next) || strings.HasPrefix(next, g.loginPath) {
		return g.defaultPath
	}
	return next
}

func isLocalPath(location string) bool {
	normalized := strings.ReplaceAll(location, `\`, "/")
	if !strings.HasPrefix(normalized, "/") || strings.HasPrefix(normalized, "//") {
		return false
	}
	u, err := url.Parse(normalized)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func (g *Guard) LoginPath() string {
	return g.loginPath
}

func (g *Guard) DefaultPath() string {
	return g.defaultPath
}
