package domain

import (
	"context"
	"fmt"
	"sync"
)

// PrincipalRef is a polymorphic reference to an authenticatable record: a
// registered kind tag (e.g. "users", "admins") plus the record's opaque id.
type PrincipalRef struct {
	Kind string
	ID   string
}

func (r PrincipalRef) String() string {
	return r.Kind + "/" + r.ID
}

// PrincipalResolver is the lookup capability a principal type must provide to
// participate in passwordless sign-in. FindByIdentifyingValue receives the
// value already trimmed and lower-cased; implementations must not apply their
// own normalization. Both methods return ErrPrincipalNotFound when no record
// matches.
type PrincipalResolver interface {
	FindByID(ctx context.Context, id string) (PrincipalRef, error)
	FindByIdentifyingValue(ctx context.Context, value string) (PrincipalRef, error)
}

// PrincipalRegistry maps principal kinds to their resolvers. Registration
// happens at boot; lookups are concurrent-safe.
type PrincipalRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]PrincipalResolver
}

// NewPrincipalRegistry creates an empty registry.
func NewPrincipalRegistry() *PrincipalRegistry {
	return &PrincipalRegistry{resolvers: make(map[string]PrincipalResolver)}
}

// Register binds a resolver to a principal kind. Registering the same kind
// twice panics: that is a programmer error, caught at startup.
func (r *PrincipalRegistry) Register(kind string, resolver PrincipalResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[kind]; exists {
		panic(fmt.Sprintf("principal kind %q registered twice", kind))
	}
	r.resolvers[kind] = resolver
}

// Resolver returns the resolver for kind, or ErrResolverNotRegistered.
func (r *PrincipalRegistry) Resolver(kind string) (PrincipalResolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.resolvers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResolverNotRegistered, kind)
	}
	return resolver, nil
}

// Kinds returns the registered kinds, in no particular order.
func (r *PrincipalRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.resolvers))
	for k := range r.resolvers {
		kinds = append(kinds, k)
	}
	return kinds
}
