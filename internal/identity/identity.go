// Package identity resolves the local device's authenticated author identity.
package identity

import (
	"context"
	"sync"

	"github.com/chronicle-app/chronicle/internal/cache"
	"github.com/chronicle-app/chronicle/internal/logging"
	"github.com/chronicle-app/chronicle/internal/remote"
)

// Resolver exposes the device's author identity and display profile.
//
// CurrentAuthorID fails softly: an empty string means "unknown author" and
// callers proceed effectively unauthenticated. CurrentDisplayName reads the
// locally cached profile and never touches the network.
type Resolver interface {
	CurrentAuthorID(ctx context.Context) string
	CurrentDisplayName() string
}

// CloudResolver resolves the author identity from the remote store account
// and caches it for the process lifetime. Staleness after the first
// successful resolution is accepted.
type CloudResolver struct {
	store remote.RecordStore
	cache *cache.Store

	mu       sync.Mutex
	authorID string
	resolved bool
}

// NewCloudResolver creates a CloudResolver.
func NewCloudResolver(store remote.RecordStore, localCache *cache.Store) *CloudResolver {
	return &CloudResolver{
		store: store,
		cache: localCache,
	}
}

// CurrentAuthorID returns the resolved author identity, resolving it on
// first use. Resolution failure returns "" and is retried on the next call.
func (r *CloudResolver) CurrentAuthorID(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.authorID
	}

	userID, err := r.store.UserID(ctx)
	if err != nil {
		logging.Warn("Author identity unresolved", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}

	r.authorID = userID
	r.resolved = true
	return r.authorID
}

// CurrentDisplayName returns the display name from the locally cached
// profile, or "" if no profile has been persisted.
func (r *CloudResolver) CurrentDisplayName() string {
	profile, err := r.cache.LoadProfile()
	if err != nil {
		logging.Warn("Failed to load cached profile", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}
	if profile == nil {
		return ""
	}
	return profile.Name
}
