package server

import (
	"sync"

	"github.com/jrsteele09/go-campsite-client/apiclient"
	"github.com/rs/zerolog/log"
)

var _ apiclient.Navigator = (*Navigator)(nil)

// Navigator records a navigation requested outside a request cycle (e.g. a
// forced logout) so the next response can carry it to the user.
type Navigator struct {
	lock    sync.Mutex
	pending string
}

func NewNavigator() *Navigator {
	return &Navigator{}
}

func (n *Navigator) Navigate(location string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.pending = location
	log.Debug().Str("location", location).Msg("navigation pending")
}

// Take returns and clears the pending location.
func (n *Navigator) Take() (string, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	location := n.pending
	n.pending = ""
	return location, location != ""
}
