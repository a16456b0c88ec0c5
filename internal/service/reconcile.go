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

// ReconcilerOptions groups dependencies for Reconciler.
type ReconcilerOptions struct {
	Users  ports.UserStore // Required: user storage
	Policy *DomainPolicy   // Required: email-domain allowlist
	Logger *slog.Logger    // Optional: structured logger
}

// Reconciler maps an external identity onto exactly one local user: it
// finds, links, updates, or creates the user record for a verified SSO
// identity.
type Reconciler struct {
	users  ports.UserStore
	policy *DomainPolicy
	logger *slog.Logger
}

// NewReconciler constructs a new Reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	if opts.Users == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("UserStore is required")
	}
	if opts.Policy == nil {
		//nolint:forbidigo // Service construction must fail fast during wiring when dependencies are missing
		panic("DomainPolicy is required")
	}

	return &Reconciler{
		users:  opts.Users,
		policy: opts.Policy,
		logger: opts.Logger,
	}
}

// Reconcile resolves the identity to a local user. The lookup is a single
// combined query (connection match OR email match) so two concurrent logins
// for the same person cannot each miss and create a duplicate. The cases,
// in priority order:
//
//  1. connection match, unchanged: no write
//  2. connection match, drifted fields: connection replaced
//  3. email match without a connection for this provider: connection appended
//  4. no match: allowlist gate, then a new user is created
func (r *Reconciler) Reconcile(ctx context.Context, id domainauth.Identity) (*model.User, error) {
	ref := ports.ConnectionRef{
		Provider:       domainauth.ProviderGitHub,
		ProviderUserID: id.ProviderUserID,
	}
	desired := domainauth.ConnectionFromIdentity(id)

	user, err := r.users.FindBySSOIdentity(ctx, ref, id.Email)
	switch {
	case err == nil:
		return r.attach(ctx, user, desired)
	case apperrors.IsNotFound(err):
		return r.create(ctx, id.Email, desired)
	default:
		return nil, fmt.Errorf("find user by sso identity: %w", err)
	}
}

// attach ensures the matched user carries the current connection.
func (r *Reconciler) attach(ctx context.Context, user *model.User, desired domainauth.Connection) (*model.User, error) {
	existing, ok := user.ConnectionFor(desired.Provider)
	if !ok {
		updated, err := r.users.AddConnection(ctx, user.ID, desired)
		if err != nil {
			return nil, fmt.Errorf("add connection: %w", err)
		}
		if r.logger != nil {
			r.logger.InfoContext(ctx, "provider connection linked", "user_id", user.ID, "provider", desired.Provider)
		}
		return updated, nil
	}

	if existing == desired {
		return user, nil
	}

	updated, err := r.users.ReplaceConnection(ctx, user.ID, desired)
	if err != nil {
		return nil, fmt.Errorf("replace connection: %w", err)
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "provider connection refreshed", "user_id", user.ID, "provider", desired.Provider)
	}
	return updated, nil
}

// create admits a brand-new identity, gated by the domain allowlist.
func (r *Reconciler) create(ctx context.Context, email string, conn domainauth.Connection) (*model.User, error) {
	if err := r.policy.Check(email); err != nil {
		return nil, err
	}

	user, err := r.users.CreateSSOUser(ctx, email, conn)
	if err != nil {
		return nil, fmt.Errorf("create sso user: %w", err)
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "user created from sso login", "user_id", user.ID, "provider", conn.Provider)
	}
	return user, nil
}
