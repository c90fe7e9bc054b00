package registry

import (
	"errors"
	"fmt"
)

// CheckSnapshot verifies that a snapshot can be loaded into a store. Every
// record id lies in [1, Sequence] and appears once, every record has an
// owner and valid metadata, and every grant targets an id in [1, Sequence].
func CheckSnapshot(snapshot *Snapshot) error {
	if snapshot == nil {
		return errors.New("snapshot is nil")
	}
	if snapshot.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	if snapshot.MasterAuthority == "" {
		return errors.New("snapshot has no master authority")
	}

	seen := make(map[uint64]struct{}, len(snapshot.Records))
	for _, record := range snapshot.Records {
		if record == nil {
			return errors.New("snapshot contains a nil record")
		}
		if record.ID == 0 || record.ID > snapshot.Sequence {
			return fmt.Errorf("record %d is outside sequence %d", record.ID, snapshot.Sequence)
		}
		if _, dup := seen[record.ID]; dup {
			return fmt.Errorf("record %d: %w", record.ID, ErrContentAlreadyExists)
		}
		if record.Owner == "" {
			return fmt.Errorf("record %d has no owner", record.ID)
		}
		if err := ValidateMetadata(record.Title, record.SizeBytes, record.Description, record.Tags); err != nil {
			return fmt.Errorf("record %d: %w", record.ID, err)
		}
		seen[record.ID] = struct{}{}
	}

	for _, grant := range snapshot.Grants {
		if grant.ContentID == 0 || grant.ContentID > snapshot.Sequence {
			return fmt.Errorf("grant for %q on %d is outside sequence %d",
				grant.Principal, grant.ContentID, snapshot.Sequence)
		}
		if grant.Principal == "" {
			return fmt.Errorf("grant on %d has no principal", grant.ContentID)
		}
	}
	return nil
}
