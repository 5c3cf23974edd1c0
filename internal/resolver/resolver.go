// Package resolver implements the Subject Resolver Registry (spec §4.2):
// the mapping from a subject_type to the pair of functions the Session
// Service uses to load and sanitize the principal behind a verified token.
package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/orm"
)

// Subject is whatever a plugin's getById returns - an opaque principal the
// core never interprets beyond handing it to Sanitize.
type Subject map[string]any

// GetByID loads a subject by id, returning (nil, nil) when absent.
type GetByID func(ctx context.Context, id string, port orm.Port) (Subject, error)

// Sanitize scrubs a loaded subject before it is returned to a caller. A
// resolver registered without one defaults to the identity function.
type Sanitize func(subject Subject) any

// Resolver is the {getById, sanitize} pair a plugin registers for one
// subject_type (spec §4.2).
type Resolver struct {
	GetByID  GetByID
	Sanitize Sanitize
}

// ErrResolverMissing is returned by Resolve when subjectType has no
// registered resolver. Per spec §4.2 this is only ever surfaced for a
// verified token; the Session Service treats it as "return (nil, token)"
// rather than propagating it as a hard failure.
var ErrResolverMissing = coreerr.NotFound("no resolver registered for subject type")

// Registry is the process-wide subject_type -> Resolver map. It is built up
// during plugin initialization (I8: names are unique) and read thereafter,
// mirroring the engine's "mutated only during construction" lifecycle
// (spec §5).
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{resolvers: map[string]Resolver{}}
}

// Register adds a resolver for subjectType. It is an error (I8) to register
// the same subject_type twice; plugins are expected to call this exactly
// once per type during initialize.
func (r *Registry) Register(subjectType string, resolver Resolver) error {
	if subjectType == "" {
		return coreerr.InputValidation("subjectType", "subject type must not be empty")
	}
	if resolver.GetByID == nil {
		return coreerr.InputValidation("resolver.GetByID", "resolver must provide getById")
	}
	if resolver.Sanitize == nil {
		resolver.Sanitize = identitySanitize
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[subjectType]; exists {
		return coreerr.Conflict(fmt.Sprintf("resolver for subject type %q already registered", subjectType))
	}
	r.resolvers[subjectType] = resolver
	return nil
}

// Lookup returns the resolver for subjectType, or ErrResolverMissing.
func (r *Registry) Lookup(subjectType string) (Resolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.resolvers[subjectType]
	if !ok {
		return Resolver{}, ErrResolverMissing
	}
	return resolver, nil
}

// Resolve loads the subject by id via the registered resolver and returns
// its sanitized form. Callers that receive ErrResolverMissing must treat it
// as "no subject available", not as a propagated failure (spec §4.2).
func (r *Registry) Resolve(ctx context.Context, subjectType, id string, port orm.Port) (any, error) {
	resolver, err := r.Lookup(subjectType)
	if err != nil {
		return nil, err
	}
	subject, err := resolver.GetByID(ctx, id, port)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, nil
	}
	return resolver.Sanitize(subject), nil
}

// Types returns every registered subject_type, mainly for introspection.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.resolvers))
	for t := range r.resolvers {
		out = append(out, t)
	}
	return out
}

func identitySanitize(subject Subject) any { return subject }
