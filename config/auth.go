package config

import (
	"fmt"
	"strings"
	"time"
)

// TokenAlgorithm selects the session-token signing algorithm.
type TokenAlgorithm string

const (
	// TokenAlgorithmHS256 signs with an HMAC-SHA256 shared secret.
	TokenAlgorithmHS256 TokenAlgorithm = "HS256"
	// TokenAlgorithmEdDSA signs with an ed25519 key derived from a seed.
	TokenAlgorithmEdDSA TokenAlgorithm = "EdDSA"
)

// UnmarshalText implements encoding.TextUnmarshaler for TokenAlgorithm.
func (a *TokenAlgorithm) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "hs256":
		*a = TokenAlgorithmHS256
		return nil
	case "eddsa", "ed25519":
		*a = TokenAlgorithmEdDSA
		return nil
	default:
		return fmt.Errorf("invalid TokenAlgorithm: %q (valid options: hs256, eddsa)", text)
	}
}

// SSOConfig contains the GitHub OAuth application settings.
type SSOConfig struct {
	ClientID     string `env:"CLIENT_ID,required"`
	ClientSecret string `env:"CLIENT_SECRET,required"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/v1/sso/github/authorized"`

	// AuthBaseURL and APIBaseURL override the GitHub endpoints. Only set
	// these for GitHub Enterprise or test servers.
	AuthBaseURL string `env:"AUTH_BASE_URL" envDefault:""`
	APIBaseURL  string `env:"API_BASE_URL"  envDefault:""`

	// HTTPTimeout bounds every outbound call to GitHub (token exchange and
	// identity fetches).
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to SSO configuration values.
func (s *SSOConfig) Sanitize() {
	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = 30 * time.Second
	}
}

// TokenConfig contains signing-key material and claim parameters for session
// and state tokens.
type TokenConfig struct {
	// Algorithm selects the signing algorithm.
	Algorithm TokenAlgorithm `env:"ALGORITHM" envDefault:"hs256"`

	// Secret is the HMAC key for hs256. Required when Algorithm is hs256.
	Secret string `env:"SECRET" envDefault:""`

	// Seed is the hex-encoded 32-byte ed25519 seed for eddsa. Required when
	// Algorithm is eddsa.
	Seed string `env:"SEED" envDefault:""`

	// Audience is the value stamped into and required from every token.
	Audience string `env:"AUDIENCE" envDefault:"authgate"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	StateTTL   time.Duration `env:"STATE_TTL"   envDefault:"10m"`
}

// Sanitize applies guardrails to token configuration values.
func (t *TokenConfig) Sanitize() {
	if t.SessionTTL <= 0 {
		t.SessionTTL = 24 * time.Hour
	}
	if t.StateTTL <= 0 {
		t.StateTTL = 10 * time.Minute
	}
}

// AllowlistConfig controls which email domains may self-provision accounts
// through SSO.
type AllowlistConfig struct {
	// Domains is the comma-separated list of allowed email domains. Empty
	// means no new accounts can be created through SSO.
	Domains []string `env:"DOMAINS" envDefault:""`

	// AllowSubdomains also admits subdomains of each allowed domain.
	AllowSubdomains bool `env:"ALLOW_SUBDOMAINS" envDefault:"false"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// SSO configuration for the GitHub OAuth application.
	SSO SSOConfig `envPrefix:"SSO_"`

	// Token configuration for session and state tokens.
	Token TokenConfig `envPrefix:"TOKEN_"`

	// Allowlist configuration for account self-provisioning.
	Allowlist AllowlistConfig `envPrefix:"ALLOWLIST_"`
}
