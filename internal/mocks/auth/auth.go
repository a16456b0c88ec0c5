package auth

// Package auth contains simple hand-written test doubles for the SSO ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
	"github.com/quayside/authgate/internal/domain/model"
	apperrors "github.com/quayside/authgate/internal/errors"
	"github.com/quayside/authgate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.UserStore        = (*MemoryUserStore)(nil)
	_ ports.StateCache       = (*MemoryStateCache)(nil)
)

// MockIdentityProvider simulates the upstream provider with deterministic
// responses. Every method can be overridden per test via its Func field.
type MockIdentityProvider struct {
	ExchangeFunc func(ctx context.Context, code string) (string, error)
	FetchFunc    func(ctx context.Context, accessToken string) (domainauth.Identity, error)

	AuthURL         string
	AccessToken     string
	DefaultIdentity domainauth.Identity

	ExchangedCodes []string
	FetchedTokens  []string
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		AuthURL:     "https://mock-provider/login/oauth/authorize",
		AccessToken: "mock-access-token",
		DefaultIdentity: domainauth.Identity{
			ProviderUserID:   1,
			Login:            "mockuser",
			Email:            "mock.user@example.com",
			TwoFactorEnabled: true,
		},
	}
}

func (m *MockIdentityProvider) AuthCodeURL(state string) string {
	return fmt.Sprintf("%s?state=%s", m.AuthURL, state)
}

func (m *MockIdentityProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	m.ExchangedCodes = append(m.ExchangedCodes, code)
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return m.AccessToken, nil
}

func (m *MockIdentityProvider) FetchIdentity(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	m.FetchedTokens = append(m.FetchedTokens, accessToken)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, accessToken)
	}
	return m.DefaultIdentity, nil
}

// MemoryUserStore is an in-memory UserStore with the same matching semantics
// as the SQL repository: one combined lookup preferring the connection match.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User

	// Optional per-method error injection.
	FindErr    error
	ReplaceErr error
	AddErr     error
	CreateErr  error
	RecordErr  error

	RecordedSessions []string
}

// NewMemoryUserStore creates an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*model.User)}
}

// Seed inserts a user directly, bypassing the SSO creation path.
func (s *MemoryUserStore) Seed(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
}

// Count reports the number of stored users.
func (s *MemoryUserStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *MemoryUserStore) FindBySSOIdentity(_ context.Context, ref ports.ConnectionRef, email string) (*model.User, error) {
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var byEmail *model.User
	for _, u := range s.users {
		for _, c := range u.Connections {
			if c.Provider == ref.Provider && c.ProviderUserID == ref.ProviderUserID {
				cp := *u
				return &cp, nil
			}
		}
		if u.Email == email {
			byEmail = u
		}
	}
	if byEmail != nil {
		cp := *byEmail
		return &cp, nil
	}
	return nil, apperrors.NotFound("user not found")
}

func (s *MemoryUserStore) ReplaceConnection(_ context.Context, userID string, conn domainauth.Connection) (*model.User, error) {
	if s.ReplaceErr != nil {
		return nil, s.ReplaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	for i, c := range u.Connections {
		if c.Provider == conn.Provider {
			u.Connections[i] = conn
			break
		}
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) AddConnection(_ context.Context, userID string, conn domainauth.Connection) (*model.User, error) {
	if s.AddErr != nil {
		return nil, s.AddErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	u.Connections = append(u.Connections, conn)
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) CreateSSOUser(_ context.Context, email string, conn domainauth.Connection) (*model.User, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same race posture as the SQL repository: a concurrent insert for the
	// same email yields the existing row.
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}

	now := time.Now().UTC()
	u := &model.User{
		ID:          uuid.NewString(),
		Email:       email,
		Connections: []domainauth.Connection{conn},
		CanLogin:    true,
		Verified:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) RecordSession(_ context.Context, userID string, at time.Time) error {
	if s.RecordErr != nil {
		return s.RecordErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	t := at
	u.LastSessionAt = &t
	s.RecordedSessions = append(s.RecordedSessions, userID)
	return nil
}

// MemoryStateCache is an in-memory single-use state tracker.
type MemoryStateCache struct {
	mu     sync.Mutex
	used   map[string]struct{}
	MarkFn func(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// NewMemoryStateCache creates an empty MemoryStateCache.
func NewMemoryStateCache() *MemoryStateCache {
	return &MemoryStateCache{used: make(map[string]struct{})}
}

func (c *MemoryStateCache) MarkUsed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if c.MarkFn != nil {
		return c.MarkFn(ctx, id, ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.used[id]; ok {
		return false, nil
	}
	c.used[id] = struct{}{}
	return true, nil
}
