package token

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
)

// testClock is a settable clock for deterministic expiry tests.
type testClock struct {
	at time.Time
}

func (c *testClock) Now() time.Time          { return c.at }
func (c *testClock) Advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestCodec(t *testing.T, clock *testClock, opts ...func(*Config)) *Codec {
	t.Helper()
	cfg := Config{
		Algorithm:  AlgorithmHS256,
		Secret:     []byte("test-secret-test-secret-test-key"),
		Audience:   "authgate",
		SessionTTL: time.Hour,
		StateTTL:   10 * time.Minute,
		Now:        clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	codec, err := NewCodec(cfg)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_Misconfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing audience", cfg: Config{Algorithm: AlgorithmHS256, Secret: []byte("k")}},
		{name: "missing secret", cfg: Config{Algorithm: AlgorithmHS256, Audience: "a"}},
		{name: "bad seed length", cfg: Config{Algorithm: AlgorithmEdDSA, Seed: []byte("short"), Audience: "a"}},
		{name: "unknown algorithm", cfg: Config{Algorithm: "RS256", Audience: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestIssueSession_RoundTrip(t *testing.T) {
	clock := &testClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	scope := domainauth.NewScopeSet(domainauth.ScopeClientRead, domainauth.ScopeClientWrite)
	signed, issued, err := codec.IssueSession("user-1", scope)
	require.NoError(t, err)
	assert.Equal(t, clock.at, issued.IssuedAt)
	assert.Equal(t, clock.at.Add(time.Hour), issued.ExpiresAt)

	claims, err := codec.VerifySession(signed, "authgate")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, issued.ExpiresAt, claims.ExpiresAt)
	assert.True(t, claims.Scope.Contains(domainauth.ScopeClientRead))
	assert.True(t, claims.Scope.Contains(domainauth.ScopeClientWrite))
	assert.False(t, claims.Scope.Contains(domainauth.ScopeUserWrite))
}

func TestIssueSession_RoundTrip_EdDSA(t *testing.T) {
	clock := &testClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock, func(cfg *Config) {
		cfg.Algorithm = AlgorithmEdDSA
		cfg.Secret = nil
		cfg.Seed = []byte("0123456789abcdef0123456789abcdef")
	})

	signed, _, err := codec.IssueSession("user-2", domainauth.NewScopeSet(domainauth.ScopeUserRead))
	require.NoError(t, err)

	claims, err := codec.VerifySession(signed, "authgate")
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.Subject)
}

func TestVerifySession_Expired(t *testing.T) {
	clock := &testClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock, func(cfg *Config) { cfg.SessionTTL = time.Second })

	signed, _, err := codec.IssueSession("user-1", nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = codec.VerifySession(signed, "authgate")
	assert.True(t, errors.Is(err, ErrTokenExpired), "got %v", err)
}

func TestVerifySession_AudienceMismatch(t *testing.T) {
	clock := &testClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	signed, _, err := codec.IssueSession("user-1", nil)
	require.NoError(t, err)

	_, err = codec.VerifySession(signed, "other-service")
	assert.True(t, errors.Is(err, ErrAudienceMismatch), "got %v", err)
}

func TestVerifySession_SignatureInvalid(t *testing.T) {
	clock := &testClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	other := newTestCodec(t, clock, func(cfg *Config) {
		cfg.Secret = []byte("a-different-secret-entirely-here")
	})

	signed, _, err := other.IssueSession("user-1", nil)
	require.NoError(t, err)

	_, err = codec.VerifySession(signed, "authgate")
	assert.True(t, errors.Is(err, ErrSignatureInvalid), "got %v", err)
}

func TestVerifySession_Malformed(t *testing.T) {
	clock := &testClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	_, err := codec.VerifySession("not-a-token", "authgate")
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}

func TestVerifySession_ExpiredBeforeAudience(t *testing.T) {
	// A token that is both expired and for the wrong audience reports expiry.
	clock := &testClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock, func(cfg *Config) { cfg.SessionTTL = time.Second })

	signed, _, err := codec.IssueSession("user-1", nil)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = codec.VerifySession(signed, "other-service")
	assert.True(t, errors.Is(err, ErrTokenExpired), "got %v", err)
}
