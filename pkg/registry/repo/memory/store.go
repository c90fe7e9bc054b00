package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tendant/media-registry/pkg/registry"
)

var errReadOnly = errors.New("write in read-only transaction")

type grantKey struct {
	id        uint64
	principal registry.Principal
}

var (
	_ registry.Store    = (*Store)(nil)
	_ registry.Exporter = (*Store)(nil)
	_ registry.Importer = (*Store)(nil)
)

// Store implements registry.Store using in-memory maps
type Store struct {
	mu        sync.RWMutex
	authority registry.Principal
	sequence  uint64
	records   map[uint64]*registry.ContentRecord
	grants    map[grantKey]bool
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[uint64]*registry.ContentRecord),
		grants:  make(map[grantKey]bool),
	}
}

func (s *Store) Bootstrap(ctx context.Context, authority registry.Principal) (registry.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authority == "" {
		s.authority = authority
	}
	return s.authority, nil
}

// Update stages every write made by fn and applies them only if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx registry.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := newTx(s, true)
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx registry.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(newTx(s, false))
}

// Export returns a copy of the full store state ordered by content id.
func (s *Store) Export(ctx context.Context) (*registry.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &registry.Snapshot{
		Version:         registry.SnapshotVersion,
		MasterAuthority: s.authority,
		Sequence:        s.sequence,
		Records:         make([]*registry.ContentRecord, 0, len(s.records)),
		Grants:          make([]registry.AccessGrant, 0, len(s.grants)),
	}
	for _, record := range s.records {
		snap.Records = append(snap.Records, record.Clone())
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].ID < snap.Records[j].ID
	})
	for key, allowed := range s.grants {
		snap.Grants = append(snap.Grants, registry.AccessGrant{
			ContentID: key.id,
			Principal: key.principal,
			Allowed:   allowed,
		})
	}
	sort.Slice(snap.Grants, func(i, j int) bool {
		if snap.Grants[i].ContentID != snap.Grants[j].ContentID {
			return snap.Grants[i].ContentID < snap.Grants[j].ContentID
		}
		return snap.Grants[i].Principal < snap.Grants[j].Principal
	})
	return snap, nil
}

// Import replaces the store state with snapshot. Snapshots that fail
// registry.CheckSnapshot leave the store untouched.
func (s *Store) Import(ctx context.Context, snapshot *registry.Snapshot) error {
	if err := registry.CheckSnapshot(snapshot); err != nil {
		return err
	}

	records := make(map[uint64]*registry.ContentRecord, len(snapshot.Records))
	for _, record := range snapshot.Records {
		records[record.ID] = record.Clone()
	}
	grants := make(map[grantKey]bool, len(snapshot.Grants))
	for _, g := range snapshot.Grants {
		grants[grantKey{id: g.ContentID, principal: g.Principal}] = g.Allowed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.authority = snapshot.MasterAuthority
	s.sequence = snapshot.Sequence
	s.records = records
	s.grants = grants
	return nil
}

// tx overlays staged writes on top of the store maps.
type tx struct {
	store    *Store
	writable bool

	sequence uint64
	// staged records; a nil value marks a removal
	records map[uint64]*registry.ContentRecord
	grants  map[grantKey]bool
	revoked map[uint64]bool
}

func newTx(s *Store, writable bool) *tx {
	return &tx{
		store:    s,
		writable: writable,
		sequence: s.sequence,
		records:  make(map[uint64]*registry.ContentRecord),
		grants:   make(map[grantKey]bool),
		revoked:  make(map[uint64]bool),
	}
}

func (t *tx) commit() {
	s := t.store
	s.sequence = t.sequence
	for id, record := range t.records {
		if record == nil {
			delete(s.records, id)
			continue
		}
		s.records[id] = record
	}
	for id := range t.revoked {
		for key := range s.grants {
			if key.id == id {
				delete(s.grants, key)
			}
		}
	}
	for key, allowed := range t.grants {
		s.grants[key] = allowed
	}
}

func (t *tx) lookup(id uint64) (*registry.ContentRecord, bool) {
	if record, staged := t.records[id]; staged {
		return record, record != nil
	}
	record, ok := t.store.records[id]
	return record, ok
}

// Content vault operations

func (t *tx) GetContent(ctx context.Context, id uint64) (*registry.ContentRecord, error) {
	record, ok := t.lookup(id)
	if !ok {
		return nil, registry.ErrContentMissing
	}
	return record.Clone(), nil
}

func (t *tx) InsertContent(ctx context.Context, record *registry.ContentRecord) error {
	if !t.writable {
		return errReadOnly
	}
	if _, ok := t.lookup(record.ID); ok {
		return registry.ErrContentAlreadyExists
	}
	t.records[record.ID] = record.Clone()
	return nil
}

func (t *tx) ReplaceContent(ctx context.Context, record *registry.ContentRecord) error {
	if !t.writable {
		return errReadOnly
	}
	if _, ok := t.lookup(record.ID); !ok {
		return registry.ErrContentMissing
	}
	t.records[record.ID] = record.Clone()
	return nil
}

func (t *tx) RemoveContent(ctx context.Context, id uint64) error {
	if !t.writable {
		return errReadOnly
	}
	t.records[id] = nil
	return nil
}

// Sequence counter operations

func (t *tx) PeekSequence(ctx context.Context) (uint64, error) {
	return t.sequence, nil
}

func (t *tx) AdvanceSequence(ctx context.Context) (uint64, error) {
	if !t.writable {
		return 0, errReadOnly
	}
	t.sequence++
	return t.sequence, nil
}

// Access matrix operations

func (t *tx) SetGrant(ctx context.Context, id uint64, principal registry.Principal, allowed bool) error {
	if !t.writable {
		return errReadOnly
	}
	t.grants[grantKey{id: id, principal: principal}] = allowed
	return nil
}

func (t *tx) CheckGrant(ctx context.Context, id uint64, principal registry.Principal) (bool, error) {
	key := grantKey{id: id, principal: principal}
	if allowed, staged := t.grants[key]; staged {
		return allowed, nil
	}
	if t.revoked[id] {
		return false, nil
	}
	return t.store.grants[key], nil
}

func (t *tx) RevokeGrants(ctx context.Context, id uint64) error {
	if !t.writable {
		return errReadOnly
	}
	t.revoked[id] = true
	for key := range t.grants {
		if key.id == id {
			delete(t.grants, key)
		}
	}
	return nil
}

// GrantCount returns the number of entries in the access matrix.
func (s *Store) GrantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.grants)
}
