package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quayside/authgate/internal/errors"
)

func newTestProvider(t *testing.T, handler http.Handler) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewProvider(ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/v1/sso/github/authorized",
		HTTPClient:   srv.Client(),
		AuthBaseURL:  srv.URL,
		APIBaseURL:   srv.URL,
	})
	require.NoError(t, err)
	return p, srv
}

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
	}{
		{"missing client id", ProviderConfig{ClientSecret: "s", RedirectURL: "r"}},
		{"missing client secret", ProviderConfig{ClientID: "c", RedirectURL: "r"}},
		{"missing redirect URL", ProviderConfig{ClientID: "c", ClientSecret: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestAuthCodeURL(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/v1/sso/github/authorized",
	})
	require.NoError(t, err)

	raw := p.AuthCodeURL("state-token")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "/login/oauth/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "read:user user:email", q.Get("scope"))
	assert.Equal(t, "https://app.example.com/v1/sso/github/authorized", q.Get("redirect_uri"))
}

func TestExchangeCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotForm url.Values
		p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/login/oauth/access_token", r.URL.Path)
			require.Equal(t, "application/json", r.Header.Get("Accept"))
			require.NoError(t, r.ParseForm())
			gotForm = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "gho_abc123",
				"token_type":   "bearer",
				"scope":        "read:user,user:email",
			})
		}))

		token, err := p.ExchangeCode(context.Background(), "the-code")
		require.NoError(t, err)
		assert.Equal(t, "gho_abc123", token)
		assert.Equal(t, "the-code", gotForm.Get("code"))
		assert.Equal(t, "client-id", gotForm.Get("client_id"))
		assert.Equal(t, "client-secret", gotForm.Get("client_secret"))
	})

	t.Run("empty code", func(t *testing.T) {
		p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		}))
		_, err := p.ExchangeCode(context.Background(), "")
		assert.True(t, apperrors.IsValidation(err))
	})

	// GitHub reports these with a 200 status and an error field in the body.
	t.Run("provider error codes", func(t *testing.T) {
		tests := []struct {
			code string
			want error
		}{
			{"bad_verification_code", ErrBadVerificationCode},
			{"redirect_uri_mismatch", ErrRedirectURIMismatch},
			{"incorrect_client_credentials", ErrIncorrectClientCredentials},
		}
		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					json.NewEncoder(w).Encode(map[string]string{
						"error":             tt.code,
						"error_description": "boom",
					})
				}))
				_, err := p.ExchangeCode(context.Background(), "the-code")
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("unknown provider error is upstream", func(t *testing.T) {
		p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"error": "something_else"})
		}))
		_, err := p.ExchangeCode(context.Background(), "the-code")
		assert.True(t, apperrors.IsUpstream(err))
	})

	t.Run("non-2xx status is upstream", func(t *testing.T) {
		p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		_, err := p.ExchangeCode(context.Background(), "the-code")
		assert.True(t, apperrors.IsUpstream(err))
	})

	t.Run("missing access token is upstream", func(t *testing.T) {
		p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"token_type": "bearer"})
		}))
		_, err := p.ExchangeCode(context.Background(), "the-code")
		assert.True(t, apperrors.IsUpstream(err))
	})
}

func identityHandler(t *testing.T, emails []map[string]any) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token gho_abc123", r.Header.Get("Authorization"))
		require.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":                        int64(4242),
			"login":                     "octocat",
			"two_factor_authentication": true,
		})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token gho_abc123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(emails)
	})
	return mux
}

func TestFetchIdentity(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p, _ := newTestProvider(t, identityHandler(t, []map[string]any{
			{"email": "old@example.com", "verified": true, "primary": false},
			{"email": "octocat@example.com", "verified": true, "primary": true},
		}))

		id, err := p.FetchIdentity(context.Background(), "gho_abc123")
		require.NoError(t, err)
		assert.Equal(t, int64(4242), id.ProviderUserID)
		assert.Equal(t, "octocat", id.Login)
		assert.Equal(t, "octocat@example.com", id.Email)
		assert.True(t, id.TwoFactorEnabled)
	})

	t.Run("primary email unverified", func(t *testing.T) {
		p, _ := newTestProvider(t, identityHandler(t, []map[string]any{
			{"email": "octocat@example.com", "verified": false, "primary": true},
			{"email": "other@example.com", "verified": true, "primary": false},
		}))

		_, err := p.FetchIdentity(context.Background(), "gho_abc123")
		assert.ErrorIs(t, err, ErrEmailInvalid)
	})

	t.Run("no emails", func(t *testing.T) {
		p, _ := newTestProvider(t, identityHandler(t, nil))
		_, err := p.FetchIdentity(context.Background(), "gho_abc123")
		assert.ErrorIs(t, err, ErrEmailInvalid)
	})

	t.Run("rejected token", func(t *testing.T) {
		p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		_, err := p.FetchIdentity(context.Background(), "gho_bad")
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("api outage", func(t *testing.T) {
		p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		_, err := p.FetchIdentity(context.Background(), "gho_abc123")
		assert.True(t, apperrors.IsUpstream(err))
	})
}
