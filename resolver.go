package rangefetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ArchivePlaceholder is replaced by the archive id in URL templates.
const ArchivePlaceholder = "{archive}"

// TemplateResolver builds download URLs by substituting the archive id into
// a template such as "https://host/data/{archive}.zip".
type TemplateResolver struct {
	template string
}

// NewTemplateResolver returns a resolver for template. The template must
// contain [ArchivePlaceholder].
func NewTemplateResolver(template string) (*TemplateResolver, error) {
	if !strings.Contains(template, ArchivePlaceholder) {
		return nil, fmt.Errorf("%w: url template %q has no %s placeholder", ErrConfig, template, ArchivePlaceholder)
	}
	return &TemplateResolver{template: template}, nil
}

// ResolveURL implements [Resolver].
func (r *TemplateResolver) ResolveURL(_ context.Context, archiveID string) (string, error) {
	if archiveID == "" {
		return "", fmt.Errorf("%w: archive id is required", ErrConfig)
	}
	return strings.ReplaceAll(r.template, ArchivePlaceholder, url.PathEscape(archiveID)), nil
}

// CachingResolver memoises the URLs returned by another resolver.
//
// Concurrent lookups of the same archive share one call to the underlying
// resolver. Errors are not cached.
type CachingResolver struct {
	next  Resolver
	group singleflight.Group
	urls  sync.Map // archive id -> string
}

// NewCachingResolver wraps next.
func NewCachingResolver(next Resolver) *CachingResolver {
	return &CachingResolver{next: next}
}

// ResolveURL implements [Resolver].
//
// The shared lookup runs detached from the caller's cancellation, so one
// caller's expired deadline does not fail the others waiting on it. Each
// caller still returns as soon as its own ctx is done.
func (r *CachingResolver) ResolveURL(ctx context.Context, archiveID string) (string, error) {
	if v, ok := r.urls.Load(archiveID); ok {
		return v.(string), nil
	}
	lookupCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(archiveID, func() (any, error) {
		if v, ok := r.urls.Load(archiveID); ok {
			return v, nil
		}
		u, err := r.next.ResolveURL(lookupCtx, archiveID)
		if err != nil {
			return nil, err
		}
		r.urls.Store(archiveID, u)
		return u, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
