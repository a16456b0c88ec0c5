package ports

// Package ports defines interfaces (hexagonal ports) for the SSO login flow.
// Implementations live in internal/adapters and internal/data; orchestration
// in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
	"github.com/quayside/authgate/internal/domain/model"
)

// IdentityProvider performs the authorization-code exchange and profile
// retrieval against the external identity provider.
type IdentityProvider interface {
	// AuthCodeURL builds the provider authorization URL for a login attempt
	// carrying the given anti-forgery state.
	AuthCodeURL(state string) string

	// ExchangeCode trades a single-use authorization code for an access token.
	ExchangeCode(ctx context.Context, code string) (string, error)

	// FetchIdentity retrieves the external profile and verified primary email.
	FetchIdentity(ctx context.Context, accessToken string) (domainauth.Identity, error)
}

// UserStore persists user accounts and their provider connections. Each
// mutation is a single atomic statement returning the resulting document;
// callers never hold a long-lived mutable reference.
type UserStore interface {
	// FindBySSOIdentity looks up the single user matching either an existing
	// connection (provider + provider user id) or the verified email, in one
	// combined query. A connection match takes priority over an email match.
	FindBySSOIdentity(ctx context.Context, ref ConnectionRef, email string) (*model.User, error)

	// ReplaceConnection overwrites the user's connection for ref's provider.
	ReplaceConnection(ctx context.Context, userID string, conn domainauth.Connection) (*model.User, error)

	// AddConnection appends a connection to the user's sequence.
	AddConnection(ctx context.Context, userID string, conn domainauth.Connection) (*model.User, error)

	// CreateSSOUser creates a user from a first SSO login. Implementations
	// must be race-safe: two concurrent calls for the same email yield one
	// record, with the loser observing the winner's row.
	CreateSSOUser(ctx context.Context, email string, conn domainauth.Connection) (*model.User, error)

	// RecordSession stamps last_session_at on the user.
	RecordSession(ctx context.Context, userID string, at time.Time) error
}

// ConnectionRef identifies a provider connection for lookup.
type ConnectionRef struct {
	Provider       string
	ProviderUserID int64
}

// StateCache tracks consumed SSO state tokens so a state can authorize at
// most one login completion.
type StateCache interface {
	// MarkUsed records the state id and reports whether this call was the
	// first use. The entry expires with the state token itself.
	MarkUsed(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// ClientRepository persists API-client records.
type ClientRepository interface {
	Create(ctx context.Context, req *model.CreateClientRequest) (*model.APIClient, error)
	GetByID(ctx context.Context, id string) (*model.APIClient, error)
	List(ctx context.Context, opts model.ClientsListOptions) ([]*model.APIClient, int, error)
	Update(ctx context.Context, id string, req model.UpdateClientRequest) (*model.APIClient, error)
	Delete(ctx context.Context, id string) error
}
