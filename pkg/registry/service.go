package registry

import "context"

// Registry defines the public surface of the media registry.
// Every caller-scoped operation receives the invoking principal explicitly.
type Registry interface {
	// Mutating operations
	Register(ctx context.Context, caller Principal, req RegisterRequest) (uint64, error)
	Modify(ctx context.Context, caller Principal, id uint64, req ModifyRequest) error
	TransferOwnership(ctx context.Context, caller Principal, id uint64, newOwner Principal) error
	Delete(ctx context.Context, caller Principal, id uint64) error
	SetPermission(ctx context.Context, caller Principal, id uint64, principal Principal, allowed bool) error

	// Read queries
	Retrieve(ctx context.Context, caller Principal, id uint64) (*ContentRecord, error)
	VaultStatistics(ctx context.Context) (Statistics, error)
	OwnerOf(ctx context.Context, id uint64) (Principal, error)
	CheckPermissions(ctx context.Context, id uint64, principal Principal) (PermissionReport, error)
}
