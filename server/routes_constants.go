package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Public views
	RouteHome            = "/"
	RouteCampsites       = "/campsites"
	RouteCampsite        = "/campsites/{id}"
	RouteCampsiteReviews = "/campsites/{id}/reviews"

	// Auth
	RouteLogin    = "/login"
	RouteLogout   = "/logout"
	RouteRegister = "/register"
	RouteSession  = "/session"

	// Any authenticated user
	RouteBookings      = "/bookings"
	RouteBookingCancel = "/bookings/{id}/cancel"
	RouteReviews       = "/reviews"
	RouteProfile       = "/profile"

	// Owner
	RouteDashboard = "/dashboard"

	// Admin
	RouteSettings = "/settings"
)

// Backend paths
const (
	apiFeaturedCampsites = "/api/campsites/featured/"
	apiCampsites         = "/api/campsites/"
	apiCampsite          = "/api/campsites/%s/"
	apiCampsiteReviews   = "/api/campsites/%s/reviews/"
	apiCampsiteReview    = "/api/campsites/%s/review/"
	apiBookings          = "/api/bookings/"
	apiBooking           = "/api/bookings/%s/"
	apiReviews           = "/api/reviews/"
	apiDashboardStats    = "/admin/dashboard/stats/"
	apiPendingBookings   = "/admin/bookings/pending/"
	apiSettings          = "/api/settings/"
)
