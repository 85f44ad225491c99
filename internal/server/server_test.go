package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/imagesearch/internal/auth"
	"github.com/sakif/imagesearch/internal/config"
	"github.com/sakif/imagesearch/internal/model"
)

const clientRoot = "http://localhost:5173"

// fakeProvider stands in for GitHub. The authorization code doubles as the
// external user id, so each test picks its users by code.
type fakeProvider struct{}

func (fakeProvider) Name() model.Provider { return model.ProviderGitHub }

func (fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (fakeProvider) Exchange(_ context.Context, code, verifier string) (*model.Profile, error) {
	if code == "bad" || verifier == "" {
		return nil, fmt.Errorf("exchange rejected")
	}
	return &model.Profile{Provider: model.ProviderGitHub, ProviderID: code, Name: "user " + code}, nil
}

var _ auth.Provider = fakeProvider{}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DBPath:           ":memory:",
		ServerRootURL:    "http://localhost:5000",
		ClientRootURL:    clientRoot,
		SessionSecret:    "server-test-secret-32-characters",
		SessionTTL:       time.Hour,
		UnsplashTimeout:  time.Second,
		HistoryQueueSize: 64,
		HistoryWorkers:   1,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	srv, err := New(cfg, logger, WithProviders(fakeProvider{}))
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

// do sends a request through the router with optional cookies and JSON body.
func do(t *testing.T, srv *Server, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login runs the OAuth round trip for external id code and returns the
// session cookie.
func login(t *testing.T, srv *Server, code string) *http.Cookie {
	t.Helper()

	start := do(t, srv, http.MethodGet, "/auth/github", nil)
	require.Equal(t, http.StatusTemporaryRedirect, start.Code)
	loc, err := url.Parse(start.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cb := do(t, srv, http.MethodGet, "/auth/github/callback?code="+code+"&state="+url.QueryEscape(state), nil,
		cookieNamed(start, auth.StateCookie), cookieNamed(start, auth.VerifierCookie))
	require.Equal(t, http.StatusSeeOther, cb.Code)
	require.Equal(t, clientRoot+"/dashboard", cb.Header().Get("Location"))

	sid := cookieNamed(cb, auth.SessionCookie)
	require.NotNil(t, sid)
	require.True(t, sid.HttpOnly)
	return sid
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// =========================================================================
// AUTHORIZATION GATE
// =========================================================================

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/user"},
		{http.MethodPost, "/api/search"},
		{http.MethodGet, "/api/search/history"},
		{http.MethodGet, "/api/search/stats"},
		{http.MethodPost, "/api/saved-images"},
		{http.MethodGet, "/api/saved-images"},
		{http.MethodPost, "/api/saved-images/batch"},
		{http.MethodDelete, "/api/saved-images/abc"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rr := do(t, srv, rt.method, rt.path, nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Contains(t, rr.Body.String(), `"unauthorized"`)
		})
	}
}

func TestPublicRoutes(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/top-searches", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/images", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Query   string               `json:"query"`
		Results []model.SearchResult `json:"results"`
	}](t, rr)
	assert.Equal(t, "random", body.Query)
	assert.Len(t, body.Results, 12)

	rr = do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok","sessions":"ok"}}`, rr.Body.String())
}

// =========================================================================
// OAUTH FLOW
// =========================================================================

func TestLoginAndCurrentUser(t *testing.T) {
	srv := newTestServer(t)
	sid := login(t, srv, "583231")

	rr := do(t, srv, http.MethodGet, "/api/user", nil, sid)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[struct {
		User model.User `json:"user"`
	}](t, rr)
	assert.Equal(t, "583231", body.User.ProviderID)
	assert.Equal(t, model.ProviderGitHub, body.User.Provider)

	// Same external id, same internal user.
	again := login(t, srv, "583231")
	rr = do(t, srv, http.MethodGet, "/api/user", nil, again)
	assert.Equal(t, body.User.ID, decode[struct {
		User model.User `json:"user"`
	}](t, rr).User.ID)
}

func TestCallbackFailuresRedirectToLogin(t *testing.T) {
	srv := newTestServer(t)

	start := do(t, srv, http.MethodGet, "/auth/github", nil)
	state := cookieNamed(start, auth.StateCookie)
	verifier := cookieNamed(start, auth.VerifierCookie)
	require.NotNil(t, state)

	tests := []struct {
		name    string
		query   string
		cookies []*http.Cookie
	}{
		{"state mismatch", "code=1&state=forged", []*http.Cookie{state, verifier}},
		{"no state cookie", "code=1&state=" + state.Value, nil},
		{"user denied", "error=access_denied&state=" + state.Value, []*http.Cookie{state, verifier}},
		{"exchange failure", "code=bad&state=" + state.Value, []*http.Cookie{state, verifier}},
		{"missing code", "state=" + state.Value, []*http.Cookie{state, verifier}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, "/auth/github/callback?"+tt.query, nil, tt.cookies...)
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, clientRoot+"/login", rr.Header().Get("Location"))
			assert.Nil(t, cookieNamed(rr, auth.SessionCookie))
		})
	}
}

func TestUnknownProvider(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/auth/myspace", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)

	t.Run("POST destroys session", func(t *testing.T) {
		sid := login(t, srv, "1")

		rr := do(t, srv, http.MethodPost, "/auth/logout", nil, sid)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
		cleared := cookieNamed(rr, auth.SessionCookie)
		require.NotNil(t, cleared)
		assert.Less(t, cleared.MaxAge, 0)

		// The old cookie is still a validly signed token, but its session
		// is gone.
		rr = do(t, srv, http.MethodGet, "/api/user", nil, sid)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("GET redirects to client", func(t *testing.T) {
		sid := login(t, srv, "2")

		rr := do(t, srv, http.MethodGet, "/auth/logout", nil, sid)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, clientRoot, rr.Header().Get("Location"))

		rr = do(t, srv, http.MethodGet, "/api/user", nil, sid)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("without session still clears cookie", func(t *testing.T) {
		rr := do(t, srv, http.MethodPost, "/auth/logout", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotNil(t, cookieNamed(rr, auth.SessionCookie))
	})
}

// =========================================================================
// SEARCH + HISTORY
// =========================================================================

func TestSearchNatureScenario(t *testing.T) {
	srv := newTestServer(t)
	sid := login(t, srv, "1")

	rr := do(t, srv, http.MethodPost, "/api/search", map[string]string{"term": "nature"}, sid)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[model.SearchResponse](t, rr)
	assert.Equal(t, "nature", resp.Term)
	assert.Equal(t, model.SourcePlaceholder, resp.Source)
	assert.Len(t, resp.Results, 12)

	var page model.HistoryPage
	require.Eventually(t, func() bool {
		page = decode[model.HistoryPage](t, do(t, srv, http.MethodGet, "/api/search/history", nil, sid))
		return page.Total == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Len(t, page.History, 1)
	assert.Equal(t, "nature", page.History[0].Term)
	assert.Equal(t, 12, page.History[0].ResultsCount)
	assert.Equal(t, 20, page.Limit)
}

func TestSearchValidation(t *testing.T) {
	srv := newTestServer(t)
	sid := login(t, srv, "1")

	rr := do(t, srv, http.MethodPost, "/api/search", map[string]string{"term": "   "}, sid)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "validation_error")

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	req.AddCookie(sid)
	bad := httptest.NewRecorder()
	srv.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	rr = do(t, srv, http.MethodGet, "/api/search/history?limit=abc", nil, sid)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsAndLeaderboard(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")

	do(t, srv, http.MethodPost, "/api/search", map[string]string{"term": "cats"}, alice)
	do(t, srv, http.MethodPost, "/api/search", map[string]string{"term": "cats"}, bob)

	var top model.TopSearches
	require.Eventually(t, func() bool {
		top = decode[model.TopSearches](t, do(t, srv, http.MethodGet, "/api/top-searches", nil))
		return len(top.TopSearches) == 1 && top.TopSearches[0].Count == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "cats", top.TopSearches[0].Term)
	assert.Equal(t, 2, top.TopSearches[0].UserCount)
	assert.False(t, top.GeneratedAt.IsZero())

	stats := decode[model.UserStats](t, do(t, srv, http.MethodGet, "/api/search/stats", nil, alice))
	assert.Equal(t, 1, stats.TotalSearches)
	require.Len(t, stats.TopSearches, 1)
	assert.Equal(t, model.TermCount{Term: "cats", Count: 1}, stats.TopSearches[0])
	require.Len(t, stats.RecentSearches, 1)
}

// =========================================================================
// SAVED IMAGES
// =========================================================================

type savedResponse struct {
	Message string           `json:"message"`
	Image   model.SavedImage `json:"image"`
}

func saveImage(t *testing.T, srv *Server, sid *http.Cookie, imageID string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, srv, http.MethodPost, "/api/saved-images", map[string]string{
		"imageId": imageID,
		"title":   "title " + imageID,
		"url":     "https://img/" + imageID,
	}, sid)
}

func TestSavedImages_SaveTwiceAndList(t *testing.T) {
	srv := newTestServer(t)
	sid := login(t, srv, "1")

	first := saveImage(t, srv, sid, "one")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "Image saved successfully", decode[savedResponse](t, first).Message)

	repeat := saveImage(t, srv, sid, "one")
	require.Equal(t, http.StatusOK, repeat.Code)
	assert.Equal(t, "Image already saved", decode[savedResponse](t, repeat).Message)
	assert.Equal(t, decode[savedResponse](t, first).Image.ID, decode[savedResponse](t, repeat).Image.ID)

	saveImage(t, srv, sid, "two")
	saveImage(t, srv, sid, "three")

	page := decode[model.SavedImagePage](t, do(t, srv, http.MethodGet, "/api/saved-images", nil, sid))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 50, page.Limit)
	require.Len(t, page.Images, 3)
	assert.Equal(t, "three", page.Images[0].ImageID)
	assert.Equal(t, "two", page.Images[1].ImageID)
	assert.Equal(t, "one", page.Images[2].ImageID)
}

func TestSavedImages_MissingFields(t *testing.T) {
	srv := newTestServer(t)
	sid := login(t, srv, "1")

	rr := do(t, srv, http.MethodPost, "/api/saved-images", map[string]string{"imageId": "x"}, sid)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSavedImages_DeleteOwnership(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")

	saved := decode[savedResponse](t, saveImage(t, srv, alice, "abc")).Image

	rr := do(t, srv, http.MethodDelete, "/api/saved-images/"+saved.ID, nil, bob)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Saved image not found")

	page := decode[model.SavedImagePage](t, do(t, srv, http.MethodGet, "/api/saved-images", nil, alice))
	assert.Equal(t, 1, page.Total, "foreign delete must leave the record")

	rr = do(t, srv, http.MethodDelete, "/api/saved-images/"+saved.ID, nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Image removed successfully"}`, rr.Body.String())
}

func TestSavedImages_Batch(t *testing.T) {
	srv := newTestServer(t)
	sid := login(t, srv, "1")

	saveImage(t, srv, sid, "a")

	rr := do(t, srv, http.MethodPost, "/api/saved-images/batch", map[string]any{
		"images": []map[string]string{
			{"id": "a", "title": "A", "url": "https://img/a"},
			{"id": "b", "title": "B", "url": "https://img/b"},
			{"id": "c", "title": "C", "url": "https://img/c"},
		},
	}, sid)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"message":"Images processed","saved":2,"alreadySaved":1,"total":3}`, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/api/saved-images/batch", map[string]any{"images": []any{}}, sid)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Images array is required")
}

// =========================================================================
// STORE OUTAGE
// =========================================================================

func TestStoreOutage(t *testing.T) {
	srv := newTestServer(t)
	sid := login(t, srv, "1")

	require.NoError(t, srv.db.Close())

	rr := do(t, srv, http.MethodGet, "/api/top-searches", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	top := decode[model.TopSearches](t, rr)
	assert.Equal(t, "Database not available", top.Warning)
	assert.Empty(t, top.TopSearches)

	rr = do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	// The session lives in memory, so the caller is still signed in.
	// Reads degrade, writes answer 503, and search keeps working.
	t.Run("stats degrade", func(t *testing.T) {
		rr := do(t, srv, http.MethodGet, "/api/search/stats", nil, sid)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		stats := decode[model.UserStats](t, rr)
		assert.Equal(t, "Database not available", stats.Warning)
		assert.Equal(t, 0, stats.TotalSearches)
	})

	t.Run("history degrades", func(t *testing.T) {
		rr := do(t, srv, http.MethodGet, "/api/search/history", nil, sid)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		page := decode[model.HistoryPage](t, rr)
		assert.Equal(t, "Database not available", page.Warning)
		assert.Empty(t, page.History)
	})

	t.Run("saved image list degrades", func(t *testing.T) {
		rr := do(t, srv, http.MethodGet, "/api/saved-images", nil, sid)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		page := decode[model.SavedImagePage](t, rr)
		assert.Equal(t, "Database not available", page.Warning)
	})

	t.Run("saving is unavailable", func(t *testing.T) {
		rr := do(t, srv, http.MethodPost, "/api/saved-images", map[string]string{
			"imageId": "abc", "title": "A", "url": "https://img/a",
		}, sid)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "service_unavailable")
	})

	t.Run("search still answers", func(t *testing.T) {
		rr := do(t, srv, http.MethodPost, "/api/search", map[string]string{"term": "nature"}, sid)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode[model.SearchResponse](t, rr)
		assert.Equal(t, model.SourcePlaceholder, resp.Source)
		assert.Len(t, resp.Results, 12)
	})

	t.Run("profile is unavailable", func(t *testing.T) {
		rr := do(t, srv, http.MethodGet, "/api/user", nil, sid)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("bad cookie is still 401", func(t *testing.T) {
		rr := do(t, srv, http.MethodGet, "/api/search/stats", nil, &http.Cookie{Name: auth.SessionCookie, Value: "forged"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
