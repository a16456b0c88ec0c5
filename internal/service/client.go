package service

import (
	"context"
	"fmt"
	"log/slog"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
	"github.com/quayside/authgate/internal/domain/model"
	apperrors "github.com/quayside/authgate/internal/errors"
	"github.com/quayside/authgate/internal/ports"
)

// Caller identifies the authenticated principal performing an operation,
// as established by session-token verification.
type Caller struct {
	UserID string
	Scope  domainauth.ScopeSet
}

// ClientServiceOptions groups dependencies for ClientService.
type ClientServiceOptions struct {
	Repo   ports.ClientRepository // Required: API-client repository
	Logger *slog.Logger           // Optional: structured logger
}

// ClientService provides scope-gated operations on API-client records.
// Reads without client:read are confined to the caller's own clients;
// creating for another user, reassigning, unlocking, and deleting require
// client:write.
type ClientService struct {
	repo   ports.ClientRepository
	logger *slog.Logger
}

// NewClientService constructs a new ClientService.
func NewClientService(opts ClientServiceOptions) *ClientService {
	if opts.Repo == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("ClientRepository is required")
	}

	return &ClientService{
		repo:   opts.Repo,
		logger: opts.Logger,
	}
}

// Create creates an API client. Omitting UserID targets the caller; naming
// another user requires client:write.
func (s *ClientService) Create(ctx context.Context, caller Caller, req *model.CreateClientRequest) (*model.APIClient, error) {
	if req == nil {
		return nil, apperrors.Validation("create client request is required")
	}
	if req.UserID == "" {
		req.UserID = caller.UserID
	}
	if req.UserID != caller.UserID && !caller.Scope.Contains(domainauth.ScopeClientWrite) {
		return nil, apperrors.Forbidden("creating a client for another user requires client:write")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	client, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "api client created", "id", client.ID, "user_id", client.UserID)
	}
	return client, nil
}

// Get retrieves an API client. Without client:read, only the caller's own
// clients are visible; anything else reads as not found.
func (s *ClientService) Get(ctx context.Context, caller Caller, id string) (*model.APIClient, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get api client: %w", err)
	}
	if client.UserID != caller.UserID && !caller.Scope.Contains(domainauth.ScopeClientRead) {
		return nil, apperrors.NotFound("api client not found")
	}
	return client, nil
}

// List lists API clients. Without client:read the result is forced to the
// caller's own clients regardless of the requested filter.
func (s *ClientService) List(ctx context.Context, caller Caller, opts model.ClientsListOptions) ([]*model.APIClient, int, error) {
	if !caller.Scope.Contains(domainauth.ScopeClientRead) {
		own := caller.UserID
		opts.UserID = &own
	}
	clients, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list api clients: %w", err)
	}
	return clients, total, nil
}

// Update updates an API client. Owners may rename and rescope their own
// clients; reassignment and unlocking require client:write, as does touching
// a client the caller does not own.
func (s *ClientService) Update(ctx context.Context, caller Caller, id string, req model.UpdateClientRequest) (*model.APIClient, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get api client: %w", err)
	}

	canWrite := caller.Scope.Contains(domainauth.ScopeClientWrite)
	if existing.UserID != caller.UserID && !canWrite {
		return nil, apperrors.NotFound("api client not found")
	}
	if (req.UserID != nil || req.Unlocked != nil) && !canWrite {
		return nil, apperrors.Forbidden("reassigning or unlocking a client requires client:write")
	}

	client, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update api client: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "api client updated", "id", client.ID)
	}
	return client, nil
}

// Delete removes an API client. Requires client:write.
func (s *ClientService) Delete(ctx context.Context, caller Caller, id string) error {
	if !caller.Scope.Contains(domainauth.ScopeClientWrite) {
		return apperrors.Forbidden("deleting a client requires client:write")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete api client: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "api client deleted", "id", id)
	}
	return nil
}
