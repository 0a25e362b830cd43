package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-campsite-client/internal/config"
	"github.com/jrsteele09/go-campsite-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshPath = "/api/auth/token/refresh/"
	DefaultLoginPath   = "/login"

	headerRequestID = "X-Request-Id"
)

// Request describes one backend call. Body is JSON encoded once, so a
// replay after a refresh sends identical bytes.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// NoAuth sends the request without credentials and never refreshes.
	// Used for login, registration and the refresh call itself.
	NoAuth bool
	// NoRefresh sends credentials but returns a 401 as is.
	NoRefresh bool
}

// Response is a successful backend response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// Client is the single gateway to the backend. It injects the stored access
// token and transparently refreshes it once when a request is rejected.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       token.Store
	navigator   Navigator
	refreshPath string
	loginPath   string

	refreshes singleflight.Group

	expiredLock      sync.Mutex
	onSessionExpired func(ctx context.Context)
	lastExpired      string
}

// ClientOption configures optional Client settings.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client (the configured timeout is not applied).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithNavigator sets where forced logouts redirect the user.
func WithNavigator(n Navigator) ClientOption {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithRefreshPath overrides the backend refresh endpoint.
func WithRefreshPath(path string) ClientOption {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithLoginPath overrides the client location used after a forced logout.
func WithLoginPath(path string) ClientOption {
	return func(c *Client) {
		c.loginPath = path
	}
}

// WithSessionExpiredHandler registers a callback run after a failed refresh
// has cleared the stored credentials.
func WithSessionExpiredHandler(fn func(ctx context.Context)) ClientOption {
	return func(c *Client) {
		c.onSessionExpired = fn
	}
}

// New creates a Client for the configured backend.
func New(cfg config.APIConfig, store token.Store, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[apiclient New] config is required")
	}
	if store == nil {
		return nil, errors.New("[apiclient New] token store is required")
	}
	if _, err := url.ParseRequestURI(cfg.GetAPIBaseURL()); err != nil {
		return nil, errors.Wrap(err, "[apiclient New] invalid base URL")
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.GetAPIBaseURL(), "/"),
		httpClient:  &http.Client{Timeout: cfg.GetAPITimeout()},
		store:       store,
		navigator:   LogNavigator(),
		refreshPath: DefaultRefreshPath,
		loginPath:   DefaultLoginPath,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetSessionExpiredHandler replaces the callback run after a forced logout.
func (c *Client) SetSessionExpiredHandler(fn func(ctx context.Context)) {
	c.expiredLock.Lock()
	defer c.expiredLock.Unlock()
	c.onSessionExpired = fn
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Do sends req. A 401 on a request that has not been retried yet waits for
// a single refresh and replays the request once with the new token. When the
// refresh fails the credentials are cleared, the user is sent to login and the
// original error is returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("[apiclient Do] request is required")
	}
	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient Do] encode body")
	}

	a := &attempt{req: req, payload: payload, state: StateSent}
	if !req.NoAuth {
		if pair, ok := c.store.Read(ctx); ok {
			a.access = pair.Access
		}
	}

	for {
		resp, err := c.send(ctx, a)
		if err != nil {
			a.transition(StateFailed)
			return nil, err
		}
		if resp.StatusCode < http.StatusBadRequest {
			a.transition(StateDone)
			return resp, nil
		}

		apiErr := newResponseError(resp)
		if resp.StatusCode != http.StatusUnauthorized || a.retried || req.NoAuth || req.NoRefresh {
			a.transition(StateFailed)
			return nil, apiErr
		}

		a.retried = true
		a.transition(StateAwaitRefresh)
		access, err := c.refreshAccess(ctx, a.access)
		if err != nil {
			log.Debug().Err(err).Str("path", req.Path).Msg("refresh failed, returning original error")
			a.transition(StateFailed)
			return nil, apiErr
		}
		a.access = access
		a.transition(StateRetrySent)
	}
}

func (c *Client) send(ctx context.Context, a *attempt) (*Response, error) {
	requestID := uuid.NewString()

	target := c.baseURL + "/" + strings.TrimLeft(a.req.Path, "/")
	if len(a.req.Query) > 0 {
		target += "?" + a.req.Query.Encode()
	}

	var body io.Reader
	if a.payload != nil {
		body = bytes.NewReader(a.payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, a.req.Method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient send] build request")
	}
	for k, values := range a.req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, requestID)
	if a.payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if a.access != "" {
		(&oauth2.Token{AccessToken: a.access, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newNetworkError(requestID, err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newNetworkError(requestID, fmt.Errorf("read body: %w", err))
	}

	log.Debug().
		Str("request_id", requestID).
		Str("method", a.req.Method).
		Str("path", a.req.Path).
		Int("status", httpResp.StatusCode).
		Bool("retried", a.retried).
		Msg("backend call")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
		RequestID:  requestID,
	}, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}
