package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-campsite-client/apiclient"
	"github.com/jrsteele09/go-campsite-client/internal/config"
	internalerrors "github.com/jrsteele09/go-campsite-client/internal/errors"
	"github.com/jrsteele09/go-campsite-client/token"
	tokenrepofake "github.com/jrsteele09/go-campsite-client/token/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend accepts a single valid access token and swaps it on refresh.
type backend struct {
	mu            sync.Mutex
	validAccess   string
	validRefresh  string
	nextAccess    string
	rotateRefresh string
	refreshDelay  time.Duration
	dropRefresh   bool
	refreshCalls  atomic.Int32
	dataCalls     atomic.Int32
	authHeaders   []string
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	refresh := func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		if b.dropRefresh {
			hj, ok := w.(http.Hijacker)
			if !assert.True(t, ok) {
				return
			}
			conn, _, err := hj.Hijack()
			if assert.NoError(t, err) {
				_ = conn.Close()
			}
			return
		}
		var body struct {
			Refresh string `json:"refresh"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Empty(t, r.Header.Get("Authorization"), "refresh must not carry a bearer token")

		b.mu.Lock()
		defer b.mu.Unlock()
		if body.Refresh != b.validRefresh {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
			return
		}
		b.validAccess = b.nextAccess
		resp := map[string]string{"access": b.nextAccess}
		if b.rotateRefresh != "" {
			resp["refresh"] = b.rotateRefresh
			b.validRefresh = b.rotateRefresh
		}
		writeJSON(w, http.StatusOK, resp)
	}
	mux.HandleFunc("POST /api/auth/token/refresh/", refresh)
	mux.HandleFunc("POST /api/v2/auth/refresh/", refresh)
	mux.HandleFunc("/api/campsites/", func(w http.ResponseWriter, r *http.Request) {
		b.dataCalls.Add(1)
		b.mu.Lock()
		b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
		valid := r.Header.Get("Authorization") == "Bearer "+b.validAccess
		b.mu.Unlock()
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Lakeside"}})
	})
	mux.HandleFunc("/api/always-401/", func(w http.ResponseWriter, r *http.Request) {
		b.dataCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	})
	mux.HandleFunc("/api/bookings/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"check_in":         []string{"This field is required."},
			"non_field_errors": []string{"Dates overlap."},
		})
	})
	mux.HandleFunc("/api/missing/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	})
	mux.HandleFunc("/api/broken/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type recorder struct {
	mu        sync.Mutex
	locations []string
	expired   int
}

func (r *recorder) Navigate(location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = append(r.locations, location)
}

func (r *recorder) onExpired(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *recorder) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.locations...), r.expired
}

func newClient(t *testing.T, url string, store token.Store, rec *recorder) *apiclient.Client {
	t.Helper()

	client, err := apiclient.New(
		config.API{BaseURL: url, Timeout: 2 * time.Second},
		store,
		apiclient.WithNavigator(rec),
		apiclient.WithSessionExpiredHandler(rec.onExpired),
	)
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	_, err := apiclient.New(nil, tokenrepofake.NewMemoryStore())
	require.Error(t, err)

	_, err = apiclient.New(config.API{BaseURL: "http://localhost"}, nil)
	require.Error(t, err)

	_, err = apiclient.New(config.API{BaseURL: "::not a url"}, tokenrepofake.NewMemoryStore())
	require.Error(t, err)
}

func TestDo_InjectsBearer(t *testing.T) {
	b := &backend{validAccess: "T1", validRefresh: "R1"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	client := newClient(t, srv.URL, store, &recorder{})

	resp, err := client.Get(context.Background(), "/api/campsites/", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.RequestID)

	var sites []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, resp.DecodeJSON(&sites))
	require.Len(t, sites, 1)
	require.Equal(t, []string{"Bearer T1"}, b.authHeaders)
	require.Zero(t, b.refreshCalls.Load())
}

func TestDo_NoCredentialsSendsNoHeader(t *testing.T) {
	b := &backend{validAccess: "T1", validRefresh: "R1"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	rec := &recorder{}
	client := newClient(t, srv.URL, tokenrepofake.NewMemoryStore(), rec)

	_, err := client.Get(context.Background(), "/api/campsites/", nil)
	require.Error(t, err)
	require.True(t, apiclient.IsUnauthorized(err))
	require.Equal(t, []string{""}, b.authHeaders)
	require.Zero(t, b.refreshCalls.Load())

	locations, expired := rec.snapshot()
	require.Empty(t, locations)
	require.Zero(t, expired)
}

func TestDo_RefreshesAndReplays(t *testing.T) {
	b := &backend{validAccess: "T2", validRefresh: "R1", nextAccess: "T2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	rec := &recorder{}
	client := newClient(t, srv.URL, store, rec)

	resp, err := client.Get(ctx, "/api/campsites/", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pair, ok := store.Read(ctx)
	require.True(t, ok)
	require.Equal(t, token.Pair{Access: "T2", Refresh: "R1"}, pair)
	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, []string{"Bearer T1", "Bearer T2"}, b.authHeaders)

	locations, expired := rec.snapshot()
	require.Empty(t, locations)
	require.Zero(t, expired)
}

func TestDo_RefreshStoresRotatedPair(t *testing.T) {
	b := &backend{validAccess: "T2", validRefresh: "R1", nextAccess: "T2", rotateRefresh: "R2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	client := newClient(t, srv.URL, store, &recorder{})

	_, err := client.Get(ctx, "/api/campsites/", nil)
	require.NoError(t, err)

	pair, ok := store.Read(ctx)
	require.True(t, ok)
	require.Equal(t, token.Pair{Access: "T2", Refresh: "R2"}, pair)
}

func TestDo_RefreshRejectedForcesLogout(t *testing.T) {
	b := &backend{validAccess: "T9", validRefresh: "R-other"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	rec := &recorder{}
	client := newClient(t, srv.URL, store, rec)

	_, err := client.Get(ctx, "/api/campsites/", nil)
	require.Error(t, err)

	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Given token not valid for any token type", apiErr.Message, "the original failure is returned")
	require.ErrorIs(t, err, internalerrors.ErrAuth)

	_, ok := store.Read(ctx)
	require.False(t, ok)

	locations, expired := rec.snapshot()
	require.Equal(t, []string{apiclient.DefaultLoginPath}, locations)
	require.Equal(t, 1, expired)
	require.Equal(t, int32(1), b.dataCalls.Load(), "no replay after a failed refresh")
}

func TestDo_RefreshUnreachableForcesLogout(t *testing.T) {
	b := &backend{validAccess: "T2", validRefresh: "R1", nextAccess: "T2", dropRefresh: true}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	rec := &recorder{}
	client := newClient(t, srv.URL, store, rec)

	_, err := client.Get(ctx, "/api/campsites/", nil)
	require.Error(t, err)
	require.True(t, apiclient.IsUnauthorized(err), "the original 401 is returned")

	_, ok := store.Read(ctx)
	require.False(t, ok)

	locations, expired := rec.snapshot()
	require.Equal(t, []string{apiclient.DefaultLoginPath}, locations)
	require.Equal(t, 1, expired)
	require.Equal(t, int32(1), b.dataCalls.Load())
}

func TestDo_CustomRefreshPathAndHTTPClient(t *testing.T) {
	b := &backend{validAccess: "T2", validRefresh: "R1", nextAccess: "T2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	client, err := apiclient.New(
		config.API{BaseURL: srv.URL},
		store,
		apiclient.WithHTTPClient(srv.Client()),
		apiclient.WithRefreshPath("/api/v2/auth/refresh/"),
		apiclient.WithNavigator(&recorder{}),
	)
	require.NoError(t, err)

	resp, err := client.Put(ctx, "/api/campsites/", map[string]string{"name": "Lakeside"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(1), b.refreshCalls.Load())

	pair, ok := store.Read(ctx)
	require.True(t, ok)
	require.Equal(t, "T2", pair.Access)
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	b := &backend{validAccess: "T2", validRefresh: "R1", nextAccess: "T2", refreshDelay: 50 * time.Millisecond}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	client := newClient(t, srv.URL, store, &recorder{})

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(ctx, "/api/campsites/", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), b.refreshCalls.Load())

	pair, ok := store.Read(ctx)
	require.True(t, ok)
	require.Equal(t, "T2", pair.Access)
}

func TestDo_ConcurrentRefreshFailureLogsOutOnce(t *testing.T) {
	b := &backend{validAccess: "T9", validRefresh: "R-other", refreshDelay: 30 * time.Millisecond}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	rec := &recorder{}
	client := newClient(t, srv.URL, store, rec)

	const n = 6
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(ctx, "/api/campsites/", nil)
			assert.True(t, apiclient.IsUnauthorized(err))
		}()
	}
	wg.Wait()

	locations, expired := rec.snapshot()
	require.Equal(t, 1, expired)
	require.Len(t, locations, 1)
	require.Equal(t, 1, store.Clears())
}

func TestDo_ReplayedUnauthorizedIsNotRefreshedAgain(t *testing.T) {
	b := &backend{validAccess: "T2", validRefresh: "R1", nextAccess: "T2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	client := newClient(t, srv.URL, store, &recorder{})

	_, err := client.Get(ctx, "/api/always-401/", nil)
	require.True(t, apiclient.IsUnauthorized(err))
	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, int32(2), b.dataCalls.Load())
}

func TestDo_NoRefreshReturnsUnauthorized(t *testing.T) {
	b := &backend{validAccess: "T2", validRefresh: "R1", nextAccess: "T2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	client := newClient(t, srv.URL, store, &recorder{})

	_, err := client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: "/api/campsites/", NoRefresh: true})
	require.True(t, apiclient.IsUnauthorized(err))
	require.Zero(t, b.refreshCalls.Load())
}

func TestDo_ErrorKinds(t *testing.T) {
	b := &backend{validAccess: "T1", validRefresh: "R1"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	client := newClient(t, srv.URL, store, &recorder{})

	_, err := client.Post(ctx, "/api/bookings/", map[string]string{"campsite": "1"})
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apiclient.KindValidation, apiErr.Kind)
	require.Equal(t, "Dates overlap.", apiErr.Message)
	require.Equal(t, []string{"This field is required."}, apiErr.Fields["check_in"])
	require.ErrorIs(t, err, internalerrors.ErrValidation)

	_, err = client.Get(ctx, "/api/missing/", nil)
	require.Equal(t, apiclient.KindNotFound, apiclient.KindOf(err))
	require.ErrorIs(t, err, internalerrors.ErrNotFound)

	_, err = client.Delete(ctx, "/api/broken/")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apiclient.KindServer, apiErr.Kind)
	require.Equal(t, "Server error. Please try again later.", apiErr.Message)

	require.Zero(t, b.refreshCalls.Load())
	_, ok := store.Read(ctx)
	require.True(t, ok, "non-401 failures leave credentials alone")
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})
	rec := &recorder{}
	client := newClient(t, url, store, rec)

	_, err := client.Get(context.Background(), "/api/campsites/", nil)
	require.Error(t, err)
	require.Equal(t, apiclient.KindNetwork, apiclient.KindOf(err))
	require.ErrorIs(t, err, internalerrors.ErrNetwork)

	_, ok := store.Read(context.Background())
	require.True(t, ok)
	locations, _ := rec.snapshot()
	require.Empty(t, locations)
}
