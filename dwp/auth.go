package dwp

import (
	"context"
	"fmt"
	"slices"
)

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the authenticated member or tool.
	Subject string `json:"subject"`

	// Scopes defines what requests are permitted.
	// Examples: "cluster:read", "cluster:member", "*"
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope returns true if the identity has the given scope.
// A wildcard "*" scope grants all permissions.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == "*" || s == scope {
			return true
		}
	}
	return false
}

// Authenticator validates credentials and returns an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ErrUnauthorized indicates authentication failure.
var ErrUnauthorized = fmt.Errorf("dwp: unauthorized")

// ── API Key authenticator ───────────────────────────

// APIKeyEntry maps a token to an identity.
type APIKeyEntry struct {
	Token    string
	Identity Identity
}

// APIKeyAuthenticator validates API keys against a static list.
type APIKeyAuthenticator struct {
	keys map[string]*Identity
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(entries ...APIKeyEntry) *APIKeyAuthenticator {
	keys := make(map[string]*Identity, len(entries))
	for _, e := range entries {
		id := e.Identity
		keys[e.Token] = &id
	}
	return &APIKeyAuthenticator{keys: keys}
}

func (a *APIKeyAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	id, ok := a.keys[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return id, nil
}

// ── No-op authenticator ─────────────────────────────

// NoopAuthenticator accepts all tokens with a wildcard identity.
// Use for development only.
type NoopAuthenticator struct{}

func (a *NoopAuthenticator) Authenticate(_ context.Context, _ string) (*Identity, error) {
	return &Identity{
		Subject: "anonymous",
		Scopes:  []string{"*"},
	}, nil
}

// ── Composite authenticator ─────────────────────────

// CompositeAuthenticator tries multiple authenticators in order.
// The first successful authentication wins.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator chains multiple authenticators.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

func (c *CompositeAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	for _, auth := range c.authenticators {
		id, err := auth.Authenticate(ctx, token)
		if err == nil {
			return id, nil
		}
	}
	return nil, ErrUnauthorized
}

// ── Scopes ──────────────────────────────────────────

const (
	// ScopeRead permits the read-only request tags.
	ScopeRead = "cluster:read"
	// ScopeMember permits every request tag.
	ScopeMember = "cluster:member"
	ScopeAll    = "*"
)

// DefaultReadMethods are the request tags a ScopeRead identity may send.
var DefaultReadMethods = []string{"member.meta", "tasks.running"}

// RequiredScope returns the minimum scope required for method. readMethods
// lists the tags that only need ScopeRead.
func RequiredScope(method string, readMethods []string) string {
	switch {
	case method == MethodAuth:
		return "" // No scope needed for auth.
	case slices.Contains(readMethods, method):
		return ScopeRead
	default:
		return ScopeMember
	}
}

// permits reports whether id may send a request requiring scope. Member
// identities may also read.
func (id *Identity) permits(scope string) bool {
	if scope == "" || id.HasScope(scope) {
		return true
	}
	return scope == ScopeRead && id.HasScope(ScopeMember)
}
