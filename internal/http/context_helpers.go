package httpx

import (
	"context"

	"github.com/quayside/authgate/internal/service"
	"github.com/quayside/authgate/internal/token"
)

// claimsKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type claimsKey struct{}

// SetClaimsInContext returns a child context carrying the verified session claims.
func SetClaimsInContext(ctx context.Context, claims token.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaimsFromContext returns the session claims from context and a boolean indicating presence.
func GetClaimsFromContext(ctx context.Context) (token.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(token.SessionClaims)
	return claims, ok
}

// CallerFromContext builds the service-layer caller from the verified claims.
func CallerFromContext(ctx context.Context) (service.Caller, bool) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return service.Caller{}, false
	}
	return service.Caller{UserID: claims.Subject, Scope: claims.Scope}, true
}
