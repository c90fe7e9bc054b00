package registry

import (
	"context"
)

// Store defines the interface for transactional registry persistence.
//
// Update runs fn inside a read-write transaction that commits only when fn
// returns nil; any error discards every write fn made. View runs fn inside
// a read-only transaction.
type Store interface {
	// Bootstrap records authority as the master authority the first time it
	// is called for a store and returns the authority that is in effect.
	Bootstrap(ctx context.Context, authority Principal) (Principal, error)

	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of registry state inside a store transaction.
type Tx interface {
	// Content vault operations
	GetContent(ctx context.Context, id uint64) (*ContentRecord, error)
	InsertContent(ctx context.Context, record *ContentRecord) error
	ReplaceContent(ctx context.Context, record *ContentRecord) error
	RemoveContent(ctx context.Context, id uint64) error

	// Sequence counter operations
	PeekSequence(ctx context.Context) (uint64, error)
	AdvanceSequence(ctx context.Context) (uint64, error)

	// Access matrix operations
	SetGrant(ctx context.Context, id uint64, principal Principal, allowed bool) error
	CheckGrant(ctx context.Context, id uint64, principal Principal) (bool, error)
	RevokeGrants(ctx context.Context, id uint64) error
}

// Exporter is implemented by stores that can dump their full state.
type Exporter interface {
	Export(ctx context.Context) (*Snapshot, error)
}

// Importer is implemented by stores that can be seeded from a snapshot.
type Importer interface {
	Import(ctx context.Context, snapshot *Snapshot) error
}

// Clock supplies the logical timestamp recorded as created_at.
type Clock interface {
	Now() uint64
}

// EventSink defines the interface for post-commit notifications.
// Sink errors are logged and never fail the operation.
type EventSink interface {
	// ContentRegistered is fired after a record is registered
	ContentRegistered(ctx context.Context, record *ContentRecord) error

	// ContentModified is fired after a record's fields are replaced
	ContentModified(ctx context.Context, record *ContentRecord) error

	// OwnershipTransferred is fired after a record changes owner
	OwnershipTransferred(ctx context.Context, id uint64, from, to Principal) error

	// ContentDeleted is fired after a record is removed
	ContentDeleted(ctx context.Context, id uint64, owner Principal) error

	// PermissionSet is fired after a grant is written
	PermissionSet(ctx context.Context, id uint64, principal Principal, allowed bool) error
}
