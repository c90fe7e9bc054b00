// Package snapshot persists full registry snapshots as JSON blobs.
//
// An Archive pairs a BlobStore with the registry's Exporter and Importer so
// the in-memory store can survive restarts and a PostgreSQL store can be
// dumped for backup.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tendant/media-registry/pkg/registry"
)

// ErrNotFound is returned by a BlobStore when no object exists under a key.
var ErrNotFound = errors.New("object not found")

// BlobStore defines the interface for snapshot object storage
type BlobStore interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader) error
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectKey string) error
}

// Archive saves and restores registry snapshots under object keys.
type Archive struct {
	store  BlobStore
	logger *slog.Logger
}

// NewArchive creates an archive over store.
func NewArchive(store BlobStore, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{store: store, logger: logger.With("component", "snapshot")}
}

// Save exports the full state of src and uploads it under key.
func (a *Archive) Save(ctx context.Context, key string, src registry.Exporter) error {
	snap, err := src.Export(ctx)
	if err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := a.store.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}

	a.logger.InfoContext(ctx, "snapshot saved",
		"key", key,
		"records", len(snap.Records),
		"grants", len(snap.Grants),
		"sequence", snap.Sequence,
		"bytes", len(data))
	return nil
}

// Read downloads and decodes the snapshot stored under key.
func (a *Archive) Read(ctx context.Context, key string) (*registry.Snapshot, error) {
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var snap registry.Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// Load restores dst from the snapshot under key. It reports false without
// error when no snapshot has been saved yet.
func (a *Archive) Load(ctx context.Context, key string, dst registry.Importer) (bool, error) {
	snap, err := a.Read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		a.logger.InfoContext(ctx, "no snapshot found, starting empty", "key", key)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := dst.Import(ctx, snap); err != nil {
		return false, fmt.Errorf("failed to import snapshot %s: %w", key, err)
	}

	a.logger.InfoContext(ctx, "snapshot loaded",
		"key", key,
		"records", len(snap.Records),
		"sequence", snap.Sequence)
	return true, nil
}

// Delete removes the snapshot stored under key. It returns ErrNotFound
// when nothing is stored there.
func (a *Archive) Delete(ctx context.Context, key string) error {
	if err := a.store.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	a.logger.InfoContext(ctx, "snapshot deleted", "key", key)
	return nil
}
