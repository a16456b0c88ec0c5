package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside/authgate/internal/adapters/github"
	domainauth "github.com/quayside/authgate/internal/domain/auth"
	mockauth "github.com/quayside/authgate/internal/mocks/auth"
	"github.com/quayside/authgate/internal/service"
	"github.com/quayside/authgate/internal/token"
)

type ssoFixture struct {
	router   http.Handler
	provider *mockauth.MockIdentityProvider
	users    *mockauth.MemoryUserStore
	codec    *token.Codec
}

func newSSOFixture(t *testing.T) *ssoFixture {
	t.Helper()

	codec, err := token.NewCodec(token.Config{
		Algorithm:  token.AlgorithmHS256,
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Audience:   "authgate-test",
		SessionTTL: time.Hour,
		StateTTL:   10 * time.Minute,
	})
	require.NoError(t, err)

	provider := mockauth.NewMockIdentityProvider()
	users := mockauth.NewMemoryUserStore()
	reconciler := service.NewReconciler(service.ReconcilerOptions{
		Users:  users,
		Policy: service.NewDomainPolicy([]string{"example.com"}, false),
	})
	sessions := service.NewSessionService(service.SessionServiceOptions{
		Provider:   provider,
		Reconciler: reconciler,
		Codec:      codec,
		States:     mockauth.NewMemoryStateCache(),
		Users:      users,
	})

	router := NewRouter(RouterServices{
		Sessions: sessions,
		Clients:  service.NewClientService(service.ClientServiceOptions{Repo: noopClientRepo{}}),
	})
	return &ssoFixture{router: router, provider: provider, users: users, codec: codec}
}

// beginLogin drives GET /v1/sso/github and returns the state cookie.
func (f *ssoFixture) beginLogin(t *testing.T) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, SSOBasePath, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	resp := w.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })
	for _, c := range resp.Cookies() {
		if c.Name == StateCookieName {
			return c
		}
	}
	t.Fatal("state cookie not set")
	return nil
}

func (f *ssoFixture) callback(t *testing.T, code, queryState string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	target := SSOCallbackPath + "?" + url.Values{"code": {code}, "state": {queryState}}.Encode()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSSOLoginRedirect(t *testing.T) {
	f := newSSOFixture(t)

	req := httptest.NewRequest(http.MethodGet, SSOBasePath, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(t, location, "state=")

	resp := w.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, StateCookieName, c.Name)
	assert.NotEmpty(t, c.Value)
	assert.Equal(t, SSOBasePath, c.Path)
	assert.Equal(t, int((10 * time.Minute).Seconds()), c.MaxAge)
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	// The state in the redirect URL matches the cookie copy.
	assert.Contains(t, location, url.QueryEscape(c.Value))
}

func TestSSOCallbackSuccess(t *testing.T) {
	f := newSSOFixture(t)
	cookie := f.beginLogin(t)

	w := f.callback(t, "good-code", cookie.Value, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The body carries the user id and a unix-seconds expiry, never the
	// full user document.
	var body struct {
		User      string `json:"user"`
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.User)
	assert.NotEmpty(t, body.Token)
	assert.Greater(t, body.ExpiresAt, time.Now().Unix())
	assert.NotContains(t, w.Body.String(), "connections")

	assert.Equal(t, []string{"good-code"}, f.provider.ExchangedCodes)
	assert.Equal(t, 1, f.users.Count())

	// The state cookie is cleared on the way out.
	resp := w.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == StateCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "expected the state cookie to be expired")

	// The issued token authenticates GET /v1/session.
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	sw := httptest.NewRecorder()
	f.router.ServeHTTP(sw, req)

	require.Equal(t, http.StatusOK, sw.Code, sw.Body.String())
	var claims struct {
		UserID    string    `json:"userId"`
		Scope     []string  `json:"scope"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(sw.Body.Bytes(), &claims))
	assert.Equal(t, body.User, claims.UserID)
	assert.Equal(t, body.ExpiresAt, claims.ExpiresAt.Unix())
	assert.Empty(t, claims.Scope)
}

func TestSSOCallbackStateMissing(t *testing.T) {
	f := newSSOFixture(t)
	cookie := f.beginLogin(t)

	w := f.callback(t, "code", cookie.Value, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "state_missing")
}

func TestSSOCallbackStateMismatch(t *testing.T) {
	f := newSSOFixture(t)
	first := f.beginLogin(t)
	second := f.beginLogin(t)

	t.Run("cookie from another login", func(t *testing.T) {
		w := f.callback(t, "code", first.Value, second)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_state")
	})

	// The cookie is present, so an empty query state is a mismatch rather
	// than a missing state.
	t.Run("empty query state", func(t *testing.T) {
		w := f.callback(t, "code", "", first)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_state")
	})

	assert.Empty(t, f.provider.ExchangedCodes, "no code exchange on a rejected state")
}

func TestSSOCallbackStateReplay(t *testing.T) {
	f := newSSOFixture(t)
	cookie := f.beginLogin(t)

	first := f.callback(t, "code", cookie.Value, cookie)
	require.Equal(t, http.StatusCreated, first.Code)

	replay := f.callback(t, "code", cookie.Value, cookie)
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Contains(t, replay.Body.String(), "invalid_state")
}

func TestSSOCallbackUpstreamFailure(t *testing.T) {
	f := newSSOFixture(t)
	f.provider.ExchangeFunc = func(_ context.Context, _ string) (string, error) {
		return "", github.ErrBadVerificationCode
	}
	cookie := f.beginLogin(t)

	w := f.callback(t, "stale-code", cookie.Value, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, f.users.Count())
}

func TestSSOCallbackDomainNotAllowed(t *testing.T) {
	f := newSSOFixture(t)
	f.provider.DefaultIdentity.Email = "intruder@evil.test"
	cookie := f.beginLogin(t)

	w := f.callback(t, "code", cookie.Value, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, f.users.Count())
}

func TestSessionEndpointRejectsBadTokens(t *testing.T) {
	f := newSSOFixture(t)

	t.Run("no authorization header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "authentication_required")
	})

	t.Run("malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "malformed_token")
	})

	t.Run("expired token", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		expiredCodec, err := token.NewCodec(token.Config{
			Algorithm:  token.AlgorithmHS256,
			Secret:     []byte("0123456789abcdef0123456789abcdef"),
			Audience:   "authgate-test",
			SessionTTL: time.Hour,
			StateTTL:   10 * time.Minute,
			Now:        func() time.Time { return past },
		})
		require.NoError(t, err)
		signed, _, err := expiredCodec.IssueSession("user-1", domainauth.NewScopeSet())
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token_expired")
	})
}

func TestHealthRoutes(t *testing.T) {
	f := newSSOFixture(t)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req := httptest.NewRequest(method, "/healthz", nil)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		if method == http.MethodGet {
			assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
		} else {
			assert.True(t, strings.TrimSpace(w.Body.String()) == "")
		}
	}
}
