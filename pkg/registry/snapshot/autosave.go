package snapshot

import (
	"context"
	"sync"

	"github.com/tendant/media-registry/pkg/registry"
)

// Autosave is a registry.EventSink that rewrites the snapshot under key
// after every committed mutation. Saves are serialized and each one exports
// the store state at the time it runs, so the stored snapshot never moves
// backwards.
type Autosave struct {
	archive *Archive
	src     registry.Exporter
	key     string

	mu sync.Mutex
}

var _ registry.EventSink = (*Autosave)(nil)

// NewAutosave creates a sink that saves src to archive under key.
func NewAutosave(archive *Archive, src registry.Exporter, key string) *Autosave {
	return &Autosave{archive: archive, src: src, key: key}
}

func (a *Autosave) save(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	// committed changes are saved even after the caller has gone away
	return a.archive.Save(context.WithoutCancel(ctx), a.key, a.src)
}

func (a *Autosave) ContentRegistered(ctx context.Context, record *registry.ContentRecord) error {
	return a.save(ctx)
}

func (a *Autosave) ContentModified(ctx context.Context, record *registry.ContentRecord) error {
	return a.save(ctx)
}

func (a *Autosave) OwnershipTransferred(ctx context.Context, id uint64, from, to registry.Principal) error {
	return a.save(ctx)
}

func (a *Autosave) ContentDeleted(ctx context.Context, id uint64, owner registry.Principal) error {
	return a.save(ctx)
}

func (a *Autosave) PermissionSet(ctx context.Context, id uint64, principal registry.Principal, allowed bool) error {
	return a.save(ctx)
}
