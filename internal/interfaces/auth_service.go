package interfaces

import "net/http"

// Scope names the two access levels the API distinguishes.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
)

// AuthService is the pluggable request authentication check. Keys and
// passwords live in the KV store; a disabled service grants every scope.
type AuthService interface {
	// Authenticate resolves the caller identity from the request, trying
	// each enabled scheme in order.
	Authenticate(r *http.Request) (*Principal, error)

	// HasScope reports whether the request carries the given scope.
	HasScope(r *http.Request, scope Scope) bool

	// Enabled reports whether authentication is enforced.
	Enabled() bool
}

// Principal is an authenticated API caller.
type Principal struct {
	Name   string
	Scheme string // "api_key", "basic", "bearer"
	Scopes []Scope
}

// Allows reports whether the principal carries the scope. Write implies read.
func (p *Principal) Allows(scope Scope) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
		if scope == ScopeRead && s == ScopeWrite {
			return true
		}
	}
	return false
}
