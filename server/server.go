package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-campsite-client/apiclient"
	"github.com/jrsteele09/go-campsite-client/auth"
	"github.com/jrsteele09/go-campsite-client/guard"
	"github.com/jrsteele09/go-campsite-client/internal/config"
	"github.com/jrsteele09/go-campsite-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server exposes the campsite views to a local browser or script. Every view
// is gated by the route guard against the single shared session.
type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	router    chi.Router
	routes    []string
	config    config.Config
	client    *apiclient.Client
	sessions  *auth.SessionManager
	store     token.Store
	guard     *guard.Guard
	navigator *Navigator
}

// Deps holds the collaborators shared with the rest of the process.
type Deps struct {
	Client    *apiclient.Client
	Sessions  *auth.SessionManager
	Store     token.Store
	Navigator *Navigator // the navigator handed to Client and Sessions
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if deps.Client == nil {
		return nil, errors.New("[Server New] client is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[Server New] session manager is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[Server New] token store is required")
	}
	if deps.Navigator == nil {
		return nil, errors.New("[Server New] navigator is required")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		router:    chi.NewRouter(),
		config:    cfg,
		client:    deps.Client,
		sessions:  deps.Sessions,
		store:     deps.Store,
		guard:     guard.New(cfg.GetLoginPath(), cfg.GetDefaultPath()),
		navigator: deps.Navigator,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRoute adds a guarded route. The guard runs after the standard
// middleware so every decision is logged with its request id.
func (s *Server) RegisterRoute(method string, route guard.Route, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+route.Path)
	s.router.Method(method, route.Path, ChainMiddleware(handler, s.StandardMiddleware(s.RequireRoute(route))...))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
