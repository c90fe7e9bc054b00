package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// registry implements the Registry interface
type registry struct {
	// mu serializes every operation; the store transaction makes each one
	// all-or-nothing.
	mu sync.Mutex

	store         Store
	clock         Clock
	eventSink     EventSink
	logger        *slog.Logger
	authority     Principal
	cascadeGrants bool
}

// Option represents a functional option for configuring the registry
type Option func(*registry)

// WithStore sets the backing store for the registry
func WithStore(store Store) Option {
	return func(r *registry) {
		r.store = store
	}
}

// WithClock sets the logical clock used for created_at
func WithClock(clock Clock) Option {
	return func(r *registry) {
		r.clock = clock
	}
}

// WithEventSink sets the event sink for the registry
func WithEventSink(sink EventSink) Option {
	return func(r *registry) {
		r.eventSink = sink
	}
}

// WithLogger sets the logger for the registry
func WithLogger(logger *slog.Logger) Option {
	return func(r *registry) {
		r.logger = logger
	}
}

// WithMasterAuthority sets the principal that initializes the registry.
// A store that was already bootstrapped keeps its recorded authority.
func WithMasterAuthority(authority Principal) Option {
	return func(r *registry) {
		r.authority = authority
	}
}

// WithGrantCascade makes Delete also remove the record's access grants.
func WithGrantCascade(enabled bool) Option {
	return func(r *registry) {
		r.cascadeGrants = enabled
	}
}

// New creates a new registry instance with the given options
func New(options ...Option) (Registry, error) {
	r := &registry{}

	for _, option := range options {
		option(r)
	}

	if r.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if r.authority == "" {
		return nil, fmt.Errorf("master authority is required")
	}
	if r.clock == nil {
		r.clock = NewUnixClock()
	}
	if r.eventSink == nil {
		r.eventSink = NewNoopEventSink()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	authority, err := r.store.Bootstrap(context.Background(), r.authority)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap store: %w", err)
	}
	if authority != r.authority {
		r.logger.Warn("store already bootstrapped with a different master authority",
			"configured", r.authority.String(), "recorded", authority.String())
	}
	r.authority = authority

	return r, nil
}

func (r *registry) update(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Update(ctx, fn)
}

func (r *registry) view(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.View(ctx, fn)
}

// ownedRecord loads id and checks that caller owns it.
func ownedRecord(ctx context.Context, tx Tx, id uint64, caller Principal) (*ContentRecord, error) {
	record, err := tx.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Owner != caller {
		return nil, ErrOwnershipMismatch
	}
	return record, nil
}

func (r *registry) warnSink(ctx context.Context, op string, err error) {
	if err != nil {
		r.logger.WarnContext(ctx, "event sink failed", "op", op, "error", err)
	}
}

// Mutating operations

func (r *registry) Register(ctx context.Context, caller Principal, req RegisterRequest) (uint64, error) {
	if err := ValidateMetadata(req.Title, req.SizeBytes, req.Description, req.Tags); err != nil {
		return 0, &ContentError{Op: "register", Err: err}
	}

	var record *ContentRecord
	err := r.update(ctx, func(tx Tx) error {
		id, err := tx.AdvanceSequence(ctx)
		if err != nil {
			return err
		}
		record = &ContentRecord{
			ID:          id,
			Title:       req.Title,
			Owner:       caller,
			SizeBytes:   req.SizeBytes,
			CreatedAt:   r.clock.Now(),
			Description: req.Description,
			Tags:        append([]string(nil), req.Tags...),
		}
		if err := tx.InsertContent(ctx, record); err != nil {
			return err
		}
		return tx.SetGrant(ctx, id, caller, true)
	})
	if err != nil {
		return 0, &ContentError{Op: "register", Err: err}
	}

	r.logger.DebugContext(ctx, "content registered", "content_id", record.ID, "owner", caller.String())
	r.warnSink(ctx, "register", r.eventSink.ContentRegistered(ctx, record.Clone()))

	return record.ID, nil
}

func (r *registry) Modify(ctx context.Context, caller Principal, id uint64, req ModifyRequest) error {
	var record *ContentRecord
	err := r.update(ctx, func(tx Tx) error {
		current, err := ownedRecord(ctx, tx, id, caller)
		if err != nil {
			return err
		}
		if err := ValidateMetadata(req.Title, req.SizeBytes, req.Description, req.Tags); err != nil {
			return err
		}
		record = current.Clone()
		record.Title = req.Title
		record.SizeBytes = req.SizeBytes
		record.Description = req.Description
		record.Tags = append([]string(nil), req.Tags...)
		return tx.ReplaceContent(ctx, record)
	})
	if err != nil {
		return &ContentError{ContentID: id, Op: "modify", Err: err}
	}

	r.logger.DebugContext(ctx, "content modified", "content_id", id)
	r.warnSink(ctx, "modify", r.eventSink.ContentModified(ctx, record.Clone()))

	return nil
}

func (r *registry) TransferOwnership(ctx context.Context, caller Principal, id uint64, newOwner Principal) error {
	err := r.update(ctx, func(tx Tx) error {
		current, err := ownedRecord(ctx, tx, id, caller)
		if err != nil {
			return err
		}
		record := current.Clone()
		record.Owner = newOwner
		return tx.ReplaceContent(ctx, record)
	})
	if err != nil {
		return &ContentError{ContentID: id, Op: "transfer_ownership", Err: err}
	}

	r.logger.DebugContext(ctx, "ownership transferred",
		"content_id", id, "from", caller.String(), "to", newOwner.String())
	r.warnSink(ctx, "transfer_ownership", r.eventSink.OwnershipTransferred(ctx, id, caller, newOwner))

	return nil
}

func (r *registry) Delete(ctx context.Context, caller Principal, id uint64) error {
	err := r.update(ctx, func(tx Tx) error {
		if _, err := ownedRecord(ctx, tx, id, caller); err != nil {
			return err
		}
		if err := tx.RemoveContent(ctx, id); err != nil {
			return err
		}
		if r.cascadeGrants {
			return tx.RevokeGrants(ctx, id)
		}
		return nil
	})
	if err != nil {
		return &ContentError{ContentID: id, Op: "delete", Err: err}
	}

	r.logger.DebugContext(ctx, "content deleted", "content_id", id, "cascade_grants", r.cascadeGrants)
	r.warnSink(ctx, "delete", r.eventSink.ContentDeleted(ctx, id, caller))

	return nil
}

func (r *registry) SetPermission(ctx context.Context, caller Principal, id uint64, principal Principal, allowed bool) error {
	err := r.update(ctx, func(tx Tx) error {
		if _, err := ownedRecord(ctx, tx, id, caller); err != nil {
			return err
		}
		return tx.SetGrant(ctx, id, principal, allowed)
	})
	if err != nil {
		return &ContentError{ContentID: id, Op: "set_permission", Err: err}
	}

	r.logger.DebugContext(ctx, "permission set",
		"content_id", id, "principal", principal.String(), "allowed", allowed)
	r.warnSink(ctx, "set_permission", r.eventSink.PermissionSet(ctx, id, principal, allowed))

	return nil
}

// Read queries

func (r *registry) Retrieve(ctx context.Context, caller Principal, id uint64) (*ContentRecord, error) {
	var record *ContentRecord
	err := r.view(ctx, func(tx Tx) error {
		current, err := tx.GetContent(ctx, id)
		if err != nil {
			return err
		}
		granted, err := tx.CheckGrant(ctx, id, caller)
		if err != nil {
			return err
		}
		if !granted && current.Owner != caller {
			return ErrViewingRestricted
		}
		record = current.Clone()
		return nil
	})
	if err != nil {
		return nil, &ContentError{ContentID: id, Op: "retrieve", Err: err}
	}
	return record, nil
}

func (r *registry) VaultStatistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	err := r.view(ctx, func(tx Tx) error {
		total, err := tx.PeekSequence(ctx)
		if err != nil {
			return err
		}
		stats = Statistics{TotalRegistered: total, MasterAuthority: r.authority}
		return nil
	})
	if err != nil {
		return Statistics{}, fmt.Errorf("vault statistics: %w", err)
	}
	return stats, nil
}

func (r *registry) OwnerOf(ctx context.Context, id uint64) (Principal, error) {
	var owner Principal
	err := r.view(ctx, func(tx Tx) error {
		record, err := tx.GetContent(ctx, id)
		if err != nil {
			return err
		}
		owner = record.Owner
		return nil
	})
	if err != nil {
		return "", &ContentError{ContentID: id, Op: "owner_of", Err: err}
	}
	return owner, nil
}

func (r *registry) CheckPermissions(ctx context.Context, id uint64, principal Principal) (PermissionReport, error) {
	var report PermissionReport
	err := r.view(ctx, func(tx Tx) error {
		record, err := tx.GetContent(ctx, id)
		if err != nil {
			return err
		}
		granted, err := tx.CheckGrant(ctx, id, principal)
		if err != nil {
			return err
		}
		report = PermissionReport{
			HasExplicitPermission: granted,
			IsOwner:               record.Owner == principal,
		}
		report.CanAccess = report.HasExplicitPermission || report.IsOwner
		return nil
	})
	if err != nil {
		return PermissionReport{}, &ContentError{ContentID: id, Op: "check_permissions", Err: err}
	}
	return report, nil
}
