package fragtype

import "context"

// Resolver maps an archive identifier to its download URL.
// Implementations must be safe for concurrent use.
type Resolver interface {
	ResolveURL(ctx context.Context, archiveID string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, archiveID string) (string, error)

// ResolveURL calls f.
func (f ResolverFunc) ResolveURL(ctx context.Context, archiveID string) (string, error) {
	return f(ctx, archiveID)
}
