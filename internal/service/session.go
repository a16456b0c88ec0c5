package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
	"github.com/quayside/authgate/internal/domain/model"
	"github.com/quayside/authgate/internal/ports"
	"github.com/quayside/authgate/internal/token"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Provider   ports.IdentityProvider // Required: upstream identity provider
	Reconciler *Reconciler            // Required: account reconciliation
	Codec      *token.Codec           // Required: token issuance and verification
	States     ports.StateCache       // Required: single-use state bookkeeping
	Users      ports.UserStore        // Required: last-session bookkeeping
	Logger     *slog.Logger           // Optional: structured logger
}

// SessionService orchestrates the SSO login flow: it initiates the redirect,
// completes the callback, and issues the signed session token.
type SessionService struct {
	provider   ports.IdentityProvider
	reconciler *Reconciler
	codec      *token.Codec
	states     ports.StateCache
	users      ports.UserStore
	logger     *slog.Logger
}

// NewSessionService constructs a new SessionService.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	if opts.Provider == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("IdentityProvider is required")
	}
	if opts.Reconciler == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("Reconciler is required")
	}
	if opts.Codec == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("token Codec is required")
	}
	if opts.States == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("StateCache is required")
	}
	if opts.Users == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("UserStore is required")
	}

	return &SessionService{
		provider:   opts.Provider,
		reconciler: opts.Reconciler,
		codec:      opts.Codec,
		states:     opts.States,
		users:      opts.Users,
		logger:     opts.Logger,
	}
}

// LoginRedirect is the outcome of BeginLogin: where to send the browser and
// the state token the caller must also set as a cookie.
type LoginRedirect struct {
	AuthorizeURL string
	State        string
	StateTTL     time.Duration
}

// BeginLogin mints a state token and builds the provider authorization URL.
func (s *SessionService) BeginLogin(_ context.Context) (LoginRedirect, error) {
	state, err := s.codec.IssueState()
	if err != nil {
		return LoginRedirect{}, fmt.Errorf("issue state token: %w", err)
	}
	return LoginRedirect{
		AuthorizeURL: s.provider.AuthCodeURL(state),
		State:        state,
		StateTTL:     s.codec.StateTTL(),
	}, nil
}

// CompleteLoginInput carries the callback parameters: the authorization code
// and the two copies of the state (query parameter and cookie).
type CompleteLoginInput struct {
	Code        string
	QueryState  string
	CookieState string
}

// Session is the outcome of a completed login.
type Session struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// CompleteLogin verifies the state, exchanges the code, reconciles the
// identity to a local user, and issues the session token. Every failure
// surfaces typed; only the last-session timestamp is best effort.
func (s *SessionService) CompleteLogin(ctx context.Context, in CompleteLoginInput) (Session, error) {
	stateID, err := s.codec.VerifyState(in.QueryState, in.CookieState)
	if err != nil {
		return Session{}, err
	}

	first, err := s.states.MarkUsed(ctx, stateID, s.codec.StateTTL())
	if err != nil {
		return Session{}, fmt.Errorf("mark state used: %w", err)
	}
	if !first {
		return Session{}, token.ErrInvalidState
	}

	accessToken, err := s.provider.ExchangeCode(ctx, in.Code)
	if err != nil {
		return Session{}, err
	}

	identity, err := s.provider.FetchIdentity(ctx, accessToken)
	if err != nil {
		return Session{}, err
	}

	user, err := s.reconciler.Reconcile(ctx, identity)
	if err != nil {
		return Session{}, err
	}

	scope := domainauth.ScopesForRoles(user.RoleList())
	signed, claims, err := s.codec.IssueSession(user.ID, scope)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}

	// Best effort: a failed timestamp update must not void the login.
	if recordErr := s.users.RecordSession(ctx, user.ID, claims.IssuedAt); recordErr != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "record session timestamp failed", "user_id", user.ID, "error", recordErr)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "sso login completed", "user_id", user.ID, "expires_at", claims.ExpiresAt)
	}

	return Session{User: user, Token: signed, ExpiresAt: claims.ExpiresAt}, nil
}

// VerifySession validates a bearer token against this deployment's audience.
func (s *SessionService) VerifySession(tokenStr string) (token.SessionClaims, error) {
	return s.codec.VerifySession(tokenStr, s.codec.Audience())
}
