package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-campsite-client/apiclient"
	internalerrors "github.com/jrsteele09/go-campsite-client/internal/errors"
	"github.com/jrsteele09/go-campsite-client/internal/utils"
	"github.com/jrsteele09/go-campsite-client/token"
	"github.com/jrsteele09/go-campsite-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SessionManager is the single owner of the client's authentication state.
// Every transition replaces the whole Session under one lock.
type SessionManager struct {
	client    *apiclient.Client
	store     token.Store
	navigator apiclient.Navigator
	endpoints Endpoints
	loginPath string

	initOnce sync.Once
	initErr  error
	ready    chan struct{}

	lock        sync.Mutex
	session     Session
	generation  uint64
	closed      bool
	subscribers map[int]func(Session)
	nextSubID   int
}

// SessionManagerOption defines a function type to modify the SessionManager instance.
type SessionManagerOption func(*SessionManager)

// WithNavigator sets where Logout sends the user.
func WithNavigator(n apiclient.Navigator) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.navigator = n
	}
}

// WithEndpoints overrides backend paths; empty fields keep their defaults.
func WithEndpoints(e Endpoints) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.endpoints = e.withDefaults()
	}
}

func WithLoginPath(path string) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.loginPath = path
	}
}

// NewSessionManager creates a manager in the loading state. It registers
// itself with the client so a failed refresh resets the session.
func NewSessionManager(client *apiclient.Client, store token.Store, options ...SessionManagerOption) (*SessionManager, error) {
	if client == nil {
		return nil, errors.New("[NewSessionManager] client is required")
	}
	if store == nil {
		return nil, errors.New("[NewSessionManager] token store is required")
	}

	sm := &SessionManager{
		client:      client,
		store:       store,
		navigator:   apiclient.LogNavigator(),
		endpoints:   DefaultEndpoints(),
		loginPath:   apiclient.DefaultLoginPath,
		ready:       make(chan struct{}),
		session:     anonymous(true),
		subscribers: make(map[int]func(Session)),
	}
	for _, opt := range options {
		opt(sm)
	}

	client.SetSessionExpiredHandler(sm.handleSessionExpired)
	return sm, nil
}

// Initialize restores the session from stored credentials. Only the first
// call does any work; later calls block until it finishes and share its result.
func (sm *SessionManager) Initialize(ctx context.Context) error {
	sm.initOnce.Do(func() {
		sm.initErr = sm.initialize(ctx)
		close(sm.ready)
	})
	return sm.initErr
}

func (sm *SessionManager) initialize(ctx context.Context) error {
	generation := sm.currentGeneration()

	if _, ok := sm.store.Read(ctx); !ok {
		sm.finishLoading(ctx, generation, nil, false)
		return nil
	}

	resp, err := sm.client.Get(ctx, sm.endpoints.Profile, nil)
	if err != nil {
		if sm.finishLoading(ctx, generation, nil, true) {
			log.Info().Err(err).Msg("stored credentials rejected, starting anonymous")
			return internalerrors.Wrapf(err, "[Initialize] fetch profile")
		}
		return nil
	}

	var profile users.Profile
	if err := resp.DecodeJSON(&profile); err != nil {
		if sm.finishLoading(ctx, generation, nil, true) {
			log.Error().Err(err).Msg("profile response could not be decoded")
			return internalerrors.Wrapf(err, "[Initialize] decode profile")
		}
		return nil
	}

	sm.finishLoading(ctx, generation, &profile, false)
	return nil
}

// finishLoading ends the loading state. A restore is superseded when another
// transition happened since generation and either the restore would log a
// user in or a login already did. A superseded restore only clears IsLoading
// and leaves the stored credentials alone; finishLoading then reports false.
func (sm *SessionManager) finishLoading(ctx context.Context, generation uint64, user *users.Profile, clearStore bool) bool {
	applied := false
	err := sm.commit(func() {
		if sm.generation != generation && (user != nil || sm.session.IsAuthenticated) {
			log.Debug().Msg("session changed while restoring, keeping it")
			sm.session.IsLoading = false
			return
		}
		applied = true
		if clearStore {
			sm.store.Clear(ctx)
		}
		if user == nil {
			sm.session = anonymous(false)
		} else {
			sm.session = authenticated(user)
		}
	})
	return applied || err != nil
}

func (sm *SessionManager) currentGeneration() uint64 {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.generation
}

// Ready is closed once Initialize has finished.
func (sm *SessionManager) Ready() <-chan struct{} {
	return sm.ready
}

// Wait blocks until the session has been initialized.
func (sm *SessionManager) Wait(ctx context.Context) (Session, error) {
	select {
	case <-sm.ready:
		return sm.Session(), nil
	case <-ctx.Done():
		return sm.Session(), ctx.Err()
	}
}

// Session returns a copy of the current session.
func (sm *SessionManager) Session() Session {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.session.clone()
}

// Login exchanges credentials for a token pair. On failure the session and
// stored credentials are left untouched.
func (sm *SessionManager) Login(ctx context.Context, creds users.Credentials) (*users.Profile, error) {
	resp, err := sm.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   sm.endpoints.Login,
		Body:   creds,
		NoAuth: true,
	})
	if err != nil {
		return nil, err
	}

	var body loginResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, internalerrors.Wrapf(internalerrors.ErrUnknown, "[Login] %v", err)
	}
	return sm.establish(ctx, body.Pair, body.User)
}

// Register creates an account; the backend logs the new user in immediately.
func (sm *SessionManager) Register(ctx context.Context, reg users.Registration) (*users.Profile, error) {
	resp, err := sm.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   sm.endpoints.Register,
		Body:   reg,
		NoAuth: true,
	})
	if err != nil {
		return nil, err
	}

	var body registerResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, internalerrors.Wrapf(internalerrors.ErrUnknown, "[Register] %v", err)
	}
	return sm.establish(ctx, body.Tokens, body.User)
}

func (sm *SessionManager) establish(ctx context.Context, pair token.Pair, user *users.Profile) (*users.Profile, error) {
	if !pair.Valid() || user == nil {
		return nil, internalerrors.Wrapf(internalerrors.ErrAuth, "backend returned no credentials")
	}

	err := sm.commit(func() {
		sm.store.Save(ctx, pair)
		sm.session = authenticated(user)
	})
	if err != nil {
		return nil, err
	}

	if claims, err := token.Inspect(pair.Access); err == nil {
		log.Debug().Str("user_id", claims.UserID).Time("expires_at", claims.ExpiresAt).Msg("session established")
	}
	return utils.Clone(user), nil
}

// Logout ends the session. The backend is told to blacklist the refresh
// token, but local credentials are cleared whether or not that succeeds.
func (sm *SessionManager) Logout(ctx context.Context) error {
	if pair, ok := sm.store.Read(ctx); ok {
		_, err := sm.client.Do(ctx, &apiclient.Request{
			Method:    http.MethodPost,
			Path:      sm.endpoints.Logout,
			Body:      map[string]string{"refresh": pair.Refresh},
			NoRefresh: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
		}
	}

	sm.store.Clear(ctx)
	err := sm.commit(func() {
		sm.session = anonymous(false)
	})
	sm.navigator.Navigate(sm.loginPath)
	return err
}

// UpdateProfile sends a partial update. The stored profile is replaced by the
// backend's representation only when the call succeeds for the same session
// it was started from.
func (sm *SessionManager) UpdateProfile(ctx context.Context, update users.ProfileUpdate) (*users.Profile, error) {
	sm.lock.Lock()
	if sm.closed {
		sm.lock.Unlock()
		return nil, internalerrors.ErrSessionClosed
	}
	if !sm.session.IsAuthenticated {
		sm.lock.Unlock()
		return nil, internalerrors.ErrNotAuthenticated
	}
	generation := sm.generation
	current := utils.Clone(sm.session.User)
	sm.lock.Unlock()

	if update.IsEmpty() {
		return current, nil
	}

	resp, err := sm.client.Patch(ctx, sm.endpoints.Profile, update)
	if err != nil {
		return nil, err
	}

	var profile users.Profile
	if err := resp.DecodeJSON(&profile); err != nil {
		return nil, internalerrors.Wrapf(internalerrors.ErrUnknown, "[UpdateProfile] %v", err)
	}

	sm.lock.Lock()
	switch {
	case sm.closed:
		sm.lock.Unlock()
		return nil, internalerrors.ErrSessionClosed
	case sm.generation != generation || !sm.session.IsAuthenticated:
		sm.lock.Unlock()
		return nil, internalerrors.ErrStaleSession
	}
	sm.session = authenticated(&profile)
	snapshot, subs := sm.session.clone(), sm.subscriberList()
	sm.lock.Unlock()

	notify(subs, snapshot)
	return utils.Clone(&profile), nil
}

// handleSessionExpired runs after the client dropped credentials that could
// not be refreshed.
func (sm *SessionManager) handleSessionExpired(context.Context) {
	_ = sm.commit(func() {
		sm.session = anonymous(sm.session.IsLoading)
	})
	log.Info().Msg("session expired")
}

// Subscribe registers fn to receive every new session. The returned function
// removes the subscription.
func (sm *SessionManager) Subscribe(fn func(Session)) (cancel func()) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	if sm.closed {
		return func() {}
	}

	id := sm.nextSubID
	sm.nextSubID++
	sm.subscribers[id] = fn
	return func() {
		sm.lock.Lock()
		defer sm.lock.Unlock()
		delete(sm.subscribers, id)
	}
}

// Close detaches the manager. Results arriving afterwards are discarded.
func (sm *SessionManager) Close() {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	sm.closed = true
	sm.subscribers = make(map[int]func(Session))
}

// commit applies mutate as one transition and notifies subscribers.
func (sm *SessionManager) commit(mutate func()) error {
	sm.lock.Lock()
	if sm.closed {
		sm.lock.Unlock()
		return internalerrors.ErrSessionClosed
	}
	mutate()
	sm.generation++
	snapshot, subs := sm.session.clone(), sm.subscriberList()
	sm.lock.Unlock()

	notify(subs, snapshot)
	return nil
}

func (sm *SessionManager) subscriberList() []func(Session) {
	subs := make([]func(Session), 0, len(sm.subscribers))
	for _, fn := range sm.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Session), s Session) {
	for _, fn := range subs {
		fn(s.clone())
	}
}
