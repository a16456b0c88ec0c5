package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// State verification failures. Both reject the login attempt before any
// upstream call is made.
var (
	ErrStateMissing = errors.New("state cookie is missing")
	ErrInvalidState = errors.New("state token is invalid")
)

// stateJWTClaims is the wire shape of the anti-forgery state token. It proves
// the login redirect was initiated by this server: the attacker can forge the
// query parameter or the cookie, but not both, without controlling the
// victim's browser.
type stateJWTClaims struct {
	jwt.RegisteredClaims
}

// IssueState mints a short-lived signed state token for a login attempt.
// The same value goes into the redirect URL and the callback-scoped cookie.
func (c *Codec) IssueState() (string, error) {
	now := c.now().UTC()
	wire := stateJWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.stateTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, wire).SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("sign state token: %w", err)
	}
	return signed, nil
}

// VerifyState checks that both copies of the state are present, equal, signed
// by this server, and unexpired. It returns the token id so callers can mark
// the state consumed (single use). Any deviation is ErrStateMissing or
// ErrInvalidState; the taxonomy is deliberately coarse toward callers.
func (c *Codec) VerifyState(queryState, cookieState string) (string, error) {
	if cookieState == "" {
		return "", ErrStateMissing
	}
	if queryState == "" || queryState != cookieState {
		return "", ErrInvalidState
	}

	var parsed stateJWTClaims
	if err := c.parse(cookieState, &parsed); err != nil {
		return "", ErrInvalidState
	}
	if !audienceContains(parsed.Audience, c.audience) {
		return "", ErrInvalidState
	}
	if parsed.ExpiresAt == nil || !parsed.ExpiresAt.Time.UTC().After(c.now().UTC()) {
		return "", ErrInvalidState
	}
	if parsed.ID == "" {
		return "", ErrInvalidState
	}
	return parsed.ID, nil
}
