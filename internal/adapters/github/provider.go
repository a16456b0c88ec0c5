package github

// Package github implements the IdentityProvider port against the GitHub
// OAuth web-application flow and REST API.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
	apperrors "github.com/quayside/authgate/internal/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAuthBaseURL = "https://github.com"
	defaultAPIBaseURL  = "https://api.github.com"

	acceptJSON   = "application/json"
	acceptGitHub = "application/vnd.github.v3+json"
)

// GitHub rejects token exchanges with a closed set of error codes. Each maps
// to a distinct sentinel so callers can tell caller mistakes apart from
// deployment misconfiguration.
var (
	// ErrBadVerificationCode means the authorization code is wrong or expired.
	ErrBadVerificationCode = apperrors.Unauthorized("the authorization code is incorrect or expired")
	// ErrRedirectURIMismatch means the configured callback does not match the
	// URL registered with the OAuth application.
	ErrRedirectURIMismatch = apperrors.Unauthorized("the redirect_uri does not match the registered callback URL")
	// ErrIncorrectClientCredentials means the client id or secret is wrong.
	ErrIncorrectClientCredentials = apperrors.Internal("the client_id and/or client_secret are incorrect")
	// ErrEmailInvalid means the account has no verified primary email.
	ErrEmailInvalid = apperrors.Unauthorized("no verified primary email on the GitHub account")
)

// ProviderConfig holds configuration for the GitHub provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client

	// AuthBaseURL and APIBaseURL override the GitHub endpoints in tests.
	AuthBaseURL string
	APIBaseURL  string
}

// Provider implements ports.IdentityProvider for GitHub.
type Provider struct {
	config     *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewProvider creates a GitHub provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	authBase := strings.TrimSuffix(config.AuthBaseURL, "/")
	if authBase == "" {
		authBase = defaultAuthBaseURL
	}
	apiBase := strings.TrimSuffix(config.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authBase + "/login/oauth/authorize",
				TokenURL: authBase + "/login/oauth/access_token",
			},
		},
		apiBaseURL: apiBase,
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL builds the GitHub authorization URL carrying the given state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// tokenResponse is the GitHub access-token payload. GitHub reports exchange
// failures with a 200 status and an error field, so both shapes share one
// struct.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode trades an authorization code for an access token.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", apperrors.Validation("authorization code is required")
	}

	form := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"code":          {code},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", acceptJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstream, "exchange authorization code")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.Upstream(fmt.Sprintf("token endpoint returned status %d", resp.StatusCode))
	}

	var tok tokenResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tok); decodeErr != nil {
		return "", apperrors.Wrap(decodeErr, apperrors.ErrCodeUpstream, "decode token response")
	}

	switch tok.Error {
	case "":
		// fall through to the token checks below
	case "bad_verification_code":
		return "", ErrBadVerificationCode
	case "redirect_uri_mismatch":
		return "", ErrRedirectURIMismatch
	case "incorrect_client_credentials":
		return "", ErrIncorrectClientCredentials
	default:
		return "", apperrors.Upstream(fmt.Sprintf("token endpoint error %q: %s", tok.Error, tok.ErrorDescription))
	}

	if tok.AccessToken == "" {
		return "", apperrors.Upstream("token response missing access_token")
	}
	return tok.AccessToken, nil
}

// profileResponse is the subset of GET /user we consume.
type profileResponse struct {
	ID                      int64  `json:"id"`
	Login                   string `json:"login"`
	TwoFactorAuthentication bool   `json:"two_factor_authentication"`
}

// emailEntry is one element of GET /user/emails.
type emailEntry struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Primary  bool   `json:"primary"`
}

// FetchIdentity retrieves the profile and the verified primary email,
// fetching both concurrently. An account without a verified primary email
// cannot log in.
func (p *Provider) FetchIdentity(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	var (
		profile profileResponse
		emails  []emailEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.apiGet(gctx, accessToken, "/user", &profile)
	})
	g.Go(func() error {
		return p.apiGet(gctx, accessToken, "/user/emails", &emails)
	})
	if err := g.Wait(); err != nil {
		return domainauth.Identity{}, err
	}

	email, ok := primaryVerifiedEmail(emails)
	if !ok {
		return domainauth.Identity{}, ErrEmailInvalid
	}

	return domainauth.Identity{
		ProviderUserID:   profile.ID,
		Login:            profile.Login,
		Email:            email,
		TwoFactorEnabled: profile.TwoFactorAuthentication,
	}, nil
}

// apiGet performs an authenticated GET against the GitHub REST API and
// decodes the JSON body into out.
func (p *Provider) apiGet(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "build %s request", path)
	}
	req.Header.Set("Authorization", "token "+accessToken)
	req.Header.Set("Accept", acceptGitHub)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeUpstream, "fetch %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.Unauthorized(fmt.Sprintf("provider rejected the access token on %s", path))
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.Upstream(fmt.Sprintf("%s returned status %d", path, resp.StatusCode))
	}
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); decodeErr != nil {
		return apperrors.Wrapf(decodeErr, apperrors.ErrCodeUpstream, "decode %s response", path)
	}
	return nil
}

// primaryVerifiedEmail picks the address marked both primary and verified.
func primaryVerifiedEmail(emails []emailEntry) (string, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	return "", false
}
