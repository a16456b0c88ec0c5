// Package token signs and verifies the compact claim sets used for session
// bearer tokens and SSO anti-forgery state. Both token shapes share one
// signing mechanism; verification is stateless given the configured key.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
)

// Verification failures. All are equally fatal to the caller; the distinct
// values exist for observability and tests.
var (
	ErrTokenExpired     = errors.New("token is expired")
	ErrAudienceMismatch = errors.New("token audience mismatch")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrMalformed        = errors.New("token is malformed")
)

// Algorithm selects the signing algorithm for issued tokens.
type Algorithm string

const (
	AlgorithmHS256 Algorithm = "HS256"
	AlgorithmEdDSA Algorithm = "EdDSA"
)

// Config holds key material and claim parameters for a Codec.
// Now is injected so expiry behavior is deterministic under test.
type Config struct {
	Algorithm Algorithm
	// Secret is the HMAC key, required for HS256.
	Secret []byte
	// Seed is the ed25519 private key seed, required for EdDSA.
	Seed []byte

	Audience   string
	SessionTTL time.Duration
	StateTTL   time.Duration
	Now        func() time.Time
}

// Codec issues and verifies session and state tokens.
type Codec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any

	audience   string
	sessionTTL time.Duration
	stateTTL   time.Duration
	now        func() time.Time
}

const (
	defaultSessionTTL = 24 * time.Hour
	defaultStateTTL   = 10 * time.Minute
)

// NewCodec validates the key material and builds a Codec. Key or algorithm
// misconfiguration fails here, at startup, so issuance cannot fail later.
func NewCodec(cfg Config) (*Codec, error) {
	c := &Codec{
		audience:   cfg.Audience,
		sessionTTL: cfg.SessionTTL,
		stateTTL:   cfg.StateTTL,
		now:        cfg.Now,
	}
	if c.audience == "" {
		return nil, errors.New("token audience is required")
	}
	if c.sessionTTL <= 0 {
		c.sessionTTL = defaultSessionTTL
	}
	if c.stateTTL <= 0 {
		c.stateTTL = defaultStateTTL
	}
	if c.now == nil {
		c.now = time.Now
	}

	switch cfg.Algorithm {
	case AlgorithmHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("HS256 requires a signing secret")
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = cfg.Secret
		c.verifyKey = cfg.Secret
	case AlgorithmEdDSA:
		if len(cfg.Seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("EdDSA requires a %d-byte seed", ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(cfg.Seed)
		c.method = jwt.SigningMethodEdDSA
		c.signKey = priv
		c.verifyKey = priv.Public()
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return c, nil
}

// StateTTL reports how long an issued state token stays valid. Single-use
// bookkeeping keys off the same duration.
func (c *Codec) StateTTL() time.Duration {
	return c.stateTTL
}

// Audience reports the audience this codec stamps into issued tokens.
func (c *Codec) Audience() string {
	return c.audience
}

// SessionClaims is the validated claim set of a session token.
type SessionClaims struct {
	Subject   string
	Audience  string
	Scope     domainauth.ScopeSet
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// sessionJWTClaims is the wire shape used for JWT encoding.
type sessionJWTClaims struct {
	jwt.RegisteredClaims
	Scope []string `json:"scope"`
}

// IssueSession mints a signed session token for the subject carrying the
// given scope. The only possible failure is key misconfiguration, which
// NewCodec rules out in steady state.
func (c *Codec) IssueSession(subject string, scope domainauth.ScopeSet) (string, SessionClaims, error) {
	// JWT numeric dates carry whole seconds; truncate so the returned
	// claims match what a later verification will decode.
	now := c.now().UTC().Truncate(time.Second)
	claims := SessionClaims{
		Subject:   subject,
		Audience:  c.audience,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.sessionTTL),
	}

	wire := sessionJWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Scope: scope.Strings(),
	}

	signed, err := jwt.NewWithClaims(c.method, wire).SignedString(c.signKey)
	if err != nil {
		return "", SessionClaims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// VerifySession checks the token signature and claims against the expected
// audience. Expiry is checked before audience so an expired token is always
// reported as such.
func (c *Codec) VerifySession(tokenStr, expectedAudience string) (SessionClaims, error) {
	var parsed sessionJWTClaims
	if err := c.parse(tokenStr, &parsed); err != nil {
		return SessionClaims{}, err
	}

	if parsed.ExpiresAt == nil {
		return SessionClaims{}, ErrMalformed
	}
	now := c.now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return SessionClaims{}, ErrTokenExpired
	}
	if !audienceContains(parsed.Audience, expectedAudience) {
		return SessionClaims{}, ErrAudienceMismatch
	}

	claims := SessionClaims{
		Subject:   parsed.Subject,
		Audience:  expectedAudience,
		Scope:     domainauth.ScopeSetFromStrings(parsed.Scope),
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// parse verifies structure and signature, mapping library errors to the
// closed failure set. Claim validation is done explicitly by the callers
// against the injected clock.
func (c *Codec) parse(tokenStr string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return c.verifyKey, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}
