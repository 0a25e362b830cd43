package apiclient

import "github.com/rs/zerolog/log"

// Navigator moves the user to another client location, e.g. the login
// entry point after the session could not be refreshed.
type Navigator interface {
	Navigate(location string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(location string)

func (f NavigatorFunc) Navigate(location string) {
	f(location)
}

type logNavigator struct{}

func (logNavigator) Navigate(location string) {
	log.Info().Str("location", location).Msg("navigation requested")
}

// LogNavigator returns a Navigator that only logs the requested location.
func LogNavigator() Navigator {
	return logNavigator{}
}
