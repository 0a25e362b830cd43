package server

import (
	"net/http"

	"github.com/jrsteele09/go-campsite-client/guard"
	"github.com/jrsteele09/go-campsite-client/users"
)

func public(path string) guard.Route {
	return guard.Route{Path: path}
}

func protected(path string, role users.Role) guard.Route {
	return guard.Route{Path: path, Protected: true, Role: role}
}

func (s *Server) initRoutes() {
	// Session status answers even while the session is loading
	s.routes = append(s.routes, "GET "+RouteSession)
	s.router.Method(http.MethodGet, RouteSession, ChainMiddleware(s.SessionHandler(), s.StandardMiddleware()...))

	// PUBLIC
	s.RegisterRoute(http.MethodGet, public(RouteHome), s.ProxyHandler(http.MethodGet, fixedPath(apiFeaturedCampsites)))
	s.RegisterRoute(http.MethodGet, public(RouteCampsites), s.ProxyHandler(http.MethodGet, fixedPath(apiCampsites)))
	s.RegisterRoute(http.MethodGet, public(RouteCampsite), s.ProxyHandler(http.MethodGet, idPath(apiCampsite)))
	s.RegisterRoute(http.MethodGet, public(RouteCampsiteReviews), s.ProxyHandler(http.MethodGet, idPath(apiCampsiteReviews)))

	// LOGIN
	s.RegisterRoute(http.MethodGet, public(RouteLogin), s.LoginPageHandler())
	s.RegisterRoute(http.MethodPost, public(RouteLogin), s.LoginHandler())
	s.RegisterRoute(http.MethodPost, public(RouteRegister), s.RegisterHandler())
	s.RegisterRoute(http.MethodPost, protected(RouteLogout, users.RoleAny), s.LogoutHandler())

	// ANY AUTHENTICATED USER
	s.RegisterRoute(http.MethodGet, protected(RouteProfile, users.RoleAny), s.ProfileHandler())
	s.RegisterRoute(http.MethodPatch, protected(RouteProfile, users.RoleAny), s.UpdateProfileHandler())
	s.RegisterRoute(http.MethodGet, protected(RouteBookings, users.RoleAny), s.ProxyHandler(http.MethodGet, fixedPath(apiBookings)))
	s.RegisterRoute(http.MethodPost, protected(RouteBookings, users.RoleAny), s.ProxyHandler(http.MethodPost, fixedPath(apiBookings)))
	s.RegisterRoute(http.MethodPatch, protected(RouteBookingCancel, users.RoleAny), s.CancelBookingHandler())
	s.RegisterRoute(http.MethodGet, protected(RouteReviews, users.RoleAny), s.ProxyHandler(http.MethodGet, fixedPath(apiReviews)))
	s.RegisterRoute(http.MethodPost, protected(RouteCampsiteReviews, users.RoleAny), s.ProxyHandler(http.MethodPost, idPath(apiCampsiteReview)))

	// OWNER
	s.RegisterRoute(http.MethodGet, protected(RouteDashboard, users.RoleOwner), s.DashboardHandler())

	// ADMIN
	s.RegisterRoute(http.MethodGet, protected(RouteSettings, users.RoleAdmin), s.ProxyHandler(http.MethodGet, fixedPath(apiSettings)))

	s.router.NotFound(ChainMiddleware(s.NotFoundHandler(), s.StandardMiddleware()...))
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "Page not found.", nil)
	}
}
