package auth

// Scope is a named permission unit controlling access to an operation.
// Keep string form for easy embedding in tokens and persistence.
type Scope string

const (
	ScopeUserRead    Scope = "user:read"
	ScopeUserWrite   Scope = "user:write"
	ScopeClientRead  Scope = "client:read"
	ScopeClientWrite Scope = "client:write"
)

// ScopeSet is a set of scopes. Construction deduplicates; order is irrelevant.
type ScopeSet map[Scope]struct{}

// NewScopeSet builds a ScopeSet from the given scopes.
func NewScopeSet(scopes ...Scope) ScopeSet {
	set := make(ScopeSet, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

// Contains reports whether the set grants the required scope.
// It is the sole authorization primitive used by gated operations.
func (s ScopeSet) Contains(required Scope) bool {
	_, ok := s[required]
	return ok
}

// Strings returns the scopes as a sorted-free string slice for serialization.
func (s ScopeSet) Strings() []string {
	out := make([]string, 0, len(s))
	for scope := range s {
		out = append(out, string(scope))
	}
	return out
}

// ScopeSetFromStrings rebuilds a ScopeSet from its serialized form.
func ScopeSetFromStrings(values []string) ScopeSet {
	set := make(ScopeSet, len(values))
	for _, v := range values {
		set[Scope(v)] = struct{}{}
	}
	return set
}

// Role is an opaque role identifier stored on a user record.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAuditor Role = "auditor"
)

// roleScopes is the fixed role-to-scope table. Unknown roles contribute nothing.
var roleScopes = map[Role][]Scope{
	RoleAdmin:   {ScopeUserRead, ScopeUserWrite, ScopeClientRead, ScopeClientWrite},
	RoleAuditor: {ScopeUserRead, ScopeClientRead},
}

// ScopesForRoles maps stored roles to the scopes they grant.
// It is pure and total: unknown roles are ignored rather than rejected.
func ScopesForRoles(roles []Role) ScopeSet {
	set := make(ScopeSet)
	for _, r := range roles {
		for _, s := range roleScopes[r] {
			set[s] = struct{}{}
		}
	}
	return set
}
