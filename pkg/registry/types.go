package registry

// Principal is an opaque caller identity (account, address, subject).
type Principal string

// String returns the principal as a plain string.
func (p Principal) String() string {
	return string(p)
}

// Field bounds for content records.
const (
	MinTitleLength       = 1
	MaxTitleLength       = 64
	MinDescriptionLength = 1
	MaxDescriptionLength = 128
	MinTagLength         = 1
	MaxTagLength         = 32
	MinTagCount          = 1
	MaxTagCount          = 10
	MinSizeBytes         = 1
	// MaxSizeBytes is exclusive.
	MaxSizeBytes = 1_000_000_000
)

// ContentRecord is the metadata entry describing one registered media asset.
type ContentRecord struct {
	ID          uint64    `json:"content_id"`
	Title       string    `json:"title"`
	Owner       Principal `json:"owner"`
	SizeBytes   uint64    `json:"size_bytes"`
	CreatedAt   uint64    `json:"created_at"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
}

// Clone returns a deep copy so callers never share the stored tag slice.
func (r *ContentRecord) Clone() *ContentRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Tags = append([]string(nil), r.Tags...)
	return &c
}

// Statistics summarizes the registry as a whole.
type Statistics struct {
	// TotalRegistered counts every successful registration ever made,
	// including records that were deleted since.
	TotalRegistered uint64    `json:"total_registered"`
	MasterAuthority Principal `json:"master_authority"`
}

// PermissionReport describes how a principal relates to a record.
type PermissionReport struct {
	HasExplicitPermission bool `json:"has_explicit_permission"`
	IsOwner               bool `json:"is_owner"`
	CanAccess             bool `json:"can_access"`
}

// AccessGrant is one entry of the access matrix.
type AccessGrant struct {
	ContentID uint64    `json:"content_id"`
	Principal Principal `json:"principal"`
	Allowed   bool      `json:"allowed"`
}

// Snapshot is a point-in-time copy of the full registry state, used to
// persist the in-memory store and to export a Postgres store.
type Snapshot struct {
	Version         int              `json:"version"`
	MasterAuthority Principal        `json:"master_authority"`
	Sequence        uint64           `json:"sequence"`
	Records         []*ContentRecord `json:"records"`
	Grants          []AccessGrant    `json:"grants"`
}

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1
