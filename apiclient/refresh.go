package apiclient

import (
	"context"
	"net/http"

	internalerrors "github.com/jrsteele09/go-campsite-client/internal/errors"
	"github.com/jrsteele09/go-campsite-client/token"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle of a single request attempt.
type State int

const (
	StateSent State = iota
	StateAwaitRefresh
	StateRetrySent
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateAwaitRefresh:
		return "await_refresh"
	case StateRetrySent:
		return "retry_sent"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type attempt struct {
	req     *Request
	payload []byte
	access  string
	retried bool
	state   State
}

func (a *attempt) transition(next State) {
	log.Debug().
		Str("method", a.req.Method).
		Str("path", a.req.Path).
		Stringer("from", a.state).
		Stringer("to", next).
		Msg("request state")
	a.state = next
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// refreshAccess returns an access token newer than failedAccess. Callers
// holding the same failed token share one backend refresh.
func (c *Client) refreshAccess(ctx context.Context, failedAccess string) (string, error) {
	if failedAccess == "" {
		// Never authenticated, nothing to refresh.
		return "", internalerrors.ErrNoRefreshToken
	}
	if pair, ok := c.store.Read(ctx); ok && pair.Access != failedAccess {
		// Someone else already refreshed while this request was in flight.
		return pair.Access, nil
	}

	v, err, shared := c.refreshes.Do(failedAccess, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), failedAccess)
	})
	if shared {
		log.Debug().Msg("joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refresh(ctx context.Context, failedAccess string) (string, error) {
	pair, ok := c.store.Read(ctx)
	if ok && pair.Access != failedAccess {
		return pair.Access, nil
	}
	if !ok || pair.Refresh == "" {
		c.expireSession(ctx, failedAccess)
		return "", internalerrors.ErrNoRefreshToken
	}

	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   c.refreshPath,
		Body:   map[string]string{"refresh": pair.Refresh},
		NoAuth: true,
	})
	if err != nil {
		// Any failed refresh ends the session, unreachable backend included.
		log.Info().Err(err).Stringer("kind", KindOf(err)).Msg("token refresh failed")
		c.expireSession(ctx, failedAccess)
		return "", err
	}

	var body refreshResponse
	if err := resp.DecodeJSON(&body); err != nil || body.Access == "" {
		log.Error().Err(err).Msg("token refresh returned no access token")
		c.expireSession(ctx, failedAccess)
		return "", internalerrors.Wrapf(internalerrors.ErrAuth, "refresh response missing access token")
	}

	if body.Refresh != "" {
		c.store.Save(ctx, token.Pair{Access: body.Access, Refresh: body.Refresh})
	} else {
		c.store.SetAccess(ctx, body.Access)
	}
	log.Debug().Bool("rotated", body.Refresh != "").Msg("access token refreshed")
	return body.Access, nil
}

// expireSession drops the stored credentials, notifies the session owner and
// sends the user to login. It runs at most once per access token.
func (c *Client) expireSession(ctx context.Context, access string) {
	c.expiredLock.Lock()
	if c.lastExpired == access {
		c.expiredLock.Unlock()
		return
	}
	c.lastExpired = access
	handler := c.onSessionExpired
	c.expiredLock.Unlock()

	c.store.Clear(ctx)
	if handler != nil {
		handler(ctx)
	}
	c.navigator.Navigate(c.loginPath)
}
