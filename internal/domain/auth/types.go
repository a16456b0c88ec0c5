package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

// ProviderGitHub is the provider tag for GitHub connections.
// Connections are tagged so a user can hold one per provider type.
const ProviderGitHub = "github"

// Identity represents the authenticated principal returned by the identity
// provider. Adapters map provider-specific payloads into this shape; only the
// allow-listed fields needed for a Connection are kept.
type Identity struct {
	ProviderUserID   int64  // stable numeric id assigned by the provider
	Login            string // display login name on the provider
	Email            string // the provider-verified primary email address
	TwoFactorEnabled bool
}

// Connection links a local user account to one external provider account.
// Field-equality against a freshly fetched Connection detects identity drift.
type Connection struct {
	Provider         string `json:"provider"`
	ProviderUserID   int64  `json:"providerUserId"`
	Login            string `json:"login"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// ConnectionFromIdentity builds the Connection to store for an identity.
func ConnectionFromIdentity(id Identity) Connection {
	return Connection{
		Provider:         ProviderGitHub,
		ProviderUserID:   id.ProviderUserID,
		Login:            id.Login,
		TwoFactorEnabled: id.TwoFactorEnabled,
	}
}

// IsGitHub reports whether the connection belongs to the GitHub provider.
func (c Connection) IsGitHub() bool { return c.Provider == ProviderGitHub }
