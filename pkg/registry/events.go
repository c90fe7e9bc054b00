package registry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ContentRegistered(ctx context.Context, record *ContentRecord) error {
	return nil
}

func (n *NoopEventSink) ContentModified(ctx context.Context, record *ContentRecord) error {
	return nil
}

func (n *NoopEventSink) OwnershipTransferred(ctx context.Context, id uint64, from, to Principal) error {
	return nil
}

func (n *NoopEventSink) ContentDeleted(ctx context.Context, id uint64, owner Principal) error {
	return nil
}

func (n *NoopEventSink) PermissionSet(ctx context.Context, id uint64, principal Principal, allowed bool) error {
	return nil
}

// MultiEventSink fans each event out to several sinks and joins their errors.
type MultiEventSink []EventSink

func (m MultiEventSink) ContentRegistered(ctx context.Context, record *ContentRecord) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ContentRegistered(ctx, record))
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ContentModified(ctx context.Context, record *ContentRecord) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ContentModified(ctx, record))
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) OwnershipTransferred(ctx context.Context, id uint64, from, to Principal) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.OwnershipTransferred(ctx, id, from, to))
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ContentDeleted(ctx context.Context, id uint64, owner Principal) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ContentDeleted(ctx, id, owner))
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) PermissionSet(ctx context.Context, id uint64, principal Principal, allowed bool) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.PermissionSet(ctx, id, principal, allowed))
	}
	return errors.Join(errs...)
}

// LogEventSink writes one audit line per committed mutation.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates an audit sink writing to logger, or to
// slog.Default when logger is nil.
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger.With("component", "audit")}
}

func (l *LogEventSink) audit(ctx context.Context, event string, attrs ...any) {
	attrs = append([]any{"event_id", uuid.NewString(), "event", event}, attrs...)
	l.logger.InfoContext(ctx, "registry event", attrs...)
}

func (l *LogEventSink) ContentRegistered(ctx context.Context, record *ContentRecord) error {
	l.audit(ctx, "content_registered",
		"content_id", record.ID,
		"owner", record.Owner.String(),
		"size_bytes", record.SizeBytes,
		"created_at", record.CreatedAt)
	return nil
}

func (l *LogEventSink) ContentModified(ctx context.Context, record *ContentRecord) error {
	l.audit(ctx, "content_modified", "content_id", record.ID, "owner", record.Owner.String())
	return nil
}

func (l *LogEventSink) OwnershipTransferred(ctx context.Context, id uint64, from, to Principal) error {
	l.audit(ctx, "ownership_transferred", "content_id", id, "from", from.String(), "to", to.String())
	return nil
}

func (l *LogEventSink) ContentDeleted(ctx context.Context, id uint64, owner Principal) error {
	l.audit(ctx, "content_deleted", "content_id", id, "owner", owner.String())
	return nil
}

func (l *LogEventSink) PermissionSet(ctx context.Context, id uint64, principal Principal, allowed bool) error {
	l.audit(ctx, "permission_set", "content_id", id, "principal", principal.String(), "allowed", allowed)
	return nil
}
