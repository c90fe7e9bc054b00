package registry

// Request DTOs

// RegisterRequest contains the metadata for a new content record
type RegisterRequest struct {
	Title       string
	SizeBytes   uint64
	Description string
	Tags        []string
}

// ModifyRequest replaces the mutable fields of an existing record.
// Owner and creation time cannot be changed through it.
type ModifyRequest struct {
	Title       string
	SizeBytes   uint64
	Description string
	Tags        []string
}
