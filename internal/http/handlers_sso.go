package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quayside/authgate/internal/service"
)

// Cookie and route constants for the SSO flow. The state cookie is scoped to
// the SSO path so it never rides along on unrelated requests.
const (
	StateCookieName = "state"
	SSOBasePath     = "/v1/sso/github"
	SSOCallbackPath = SSOBasePath + "/authorized"
)

// SSOHandlers provides HTTP handlers for the SSO login flow.
type SSOHandlers struct {
	Svc    *service.SessionService
	Logger *slog.Logger
}

// Login initiates the SSO flow.
// GET /v1/sso/github.
func (h *SSOHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.Svc.BeginLogin(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	// The same state travels in the redirect URL and this cookie; the
	// callback requires both copies to agree.
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    redirect.State,
		Path:     SSOBasePath,
		MaxAge:   int(redirect.StateTTL / time.Second),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, redirect.AuthorizeURL, http.StatusFound)
}

// sessionResponse is the callback success body. It carries the user id and
// the token expiry as unix seconds, not the full user document.
type sessionResponse struct {
	User      string `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Callback completes the SSO flow.
// GET /v1/sso/github/authorized?code=<code>&state=<state>.
func (h *SSOHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	var cookieState string
	if c, err := r.Cookie(StateCookieName); err == nil {
		cookieState = c.Value
	}

	session, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:        r.URL.Query().Get("code"),
		QueryState:  r.URL.Query().Get("state"),
		CookieState: cookieState,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.WarnContext(r.Context(), "sso callback rejected", "error", err)
		}
		WriteAppError(w, err)
		return
	}

	// The state is consumed either way; drop the cookie.
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     SSOBasePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	WriteJSON(w, http.StatusCreated, sessionResponse{
		User:      session.User.ID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Unix(),
	})
}

// sessionClaimsResponse describes the authenticated session.
type sessionClaimsResponse struct {
	UserID    string    `json:"userId"`
	Scope     []string  `json:"scope"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session reports the claims of the presented bearer token.
// GET /v1/session.
func (h *SSOHandlers) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, sessionClaimsResponse{
		UserID:    claims.Subject,
		Scope:     claims.Scope.Strings(),
		ExpiresAt: claims.ExpiresAt,
	})
}
