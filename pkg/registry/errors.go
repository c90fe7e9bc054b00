package registry

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by registry operations
var (
	// ErrContentMissing indicates no record exists for the identifier
	ErrContentMissing = errors.New("content missing")

	// ErrContentAlreadyExists indicates an insert collided with an existing identifier
	ErrContentAlreadyExists = errors.New("content already exists")

	// ErrInvalidMetadata indicates a title or description is out of bounds
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrFileSizeViolation indicates size_bytes is outside [1, 1e9)
	ErrFileSizeViolation = errors.New("file size violation")

	// ErrUnauthorizedAccess is reserved; no operation returns it today
	ErrUnauthorizedAccess = errors.New("unauthorized access")

	// ErrOwnershipMismatch indicates the caller does not own the record
	ErrOwnershipMismatch = errors.New("ownership mismatch")

	// ErrAdminPrivilegesRequired is reserved; no operation returns it today
	ErrAdminPrivilegesRequired = errors.New("admin privileges required")

	// ErrViewingRestricted indicates the caller has neither a grant nor ownership
	ErrViewingRestricted = errors.New("viewing restricted")

	// ErrTagValidationFailed indicates the tag collection is malformed
	ErrTagValidationFailed = errors.New("tag validation failed")
)

// Stable codes for each error kind, used by transports.
const (
	CodeContentMissing          = "content_missing"
	CodeContentAlreadyExists    = "content_already_exists"
	CodeInvalidMetadata         = "invalid_metadata"
	CodeFileSizeViolation       = "file_size_violation"
	CodeUnauthorizedAccess      = "unauthorized_access"
	CodeOwnershipMismatch       = "ownership_mismatch"
	CodeAdminPrivilegesRequired = "admin_privileges_required"
	CodeViewingRestricted       = "viewing_restricted"
	CodeTagValidationFailed     = "tag_validation_failed"
	CodeInternal                = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrContentMissing, CodeContentMissing},
	{ErrContentAlreadyExists, CodeContentAlreadyExists},
	{ErrInvalidMetadata, CodeInvalidMetadata},
	{ErrFileSizeViolation, CodeFileSizeViolation},
	{ErrUnauthorizedAccess, CodeUnauthorizedAccess},
	{ErrOwnershipMismatch, CodeOwnershipMismatch},
	{ErrAdminPrivilegesRequired, CodeAdminPrivilegesRequired},
	{ErrViewingRestricted, CodeViewingRestricted},
	{ErrTagValidationFailed, CodeTagValidationFailed},
}

// ErrorCode returns the stable code of the error kind wrapped by err,
// or CodeInternal when err is not a registry error kind.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// ContentError represents an error related to an operation on one record
type ContentError struct {
	ContentID uint64
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %d: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContentMissing)
}
